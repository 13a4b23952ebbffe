package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
)

func seedShipment(t *testing.T, store *MemoryStore, id string, score float64) {
	t.Helper()
	require.NoError(t, store.UpsertShipment(context.Background(), contracts.Shipment{
		ID:              id,
		OriginPort:      "Shanghai",
		DestinationPort: "Rotterdam",
		RiskScore:       score,
	}))
}

func TestMemoryStoreShipments(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedShipment(t, store, "b", 0.2)
	seedShipment(t, store, "a", 0.9)

	active, err := store.ActiveShipments(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, contracts.StatusOnTrack, active[0].Status)
	assert.NotNil(t, active[0].RiskFactors)

	require.NoError(t, store.UpdateShipmentRisk(ctx, "b", 0.95, []string{"Simulated Typhoon"}, contracts.StatusAtRisk))

	got, err := store.GetShipment(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0.95, got.RiskScore)
	assert.Equal(t, contracts.StatusAtRisk, got.Status)
	assert.Equal(t, []string{"Simulated Typhoon"}, got.RiskFactors)

	atRisk, err := store.ListShipments(ctx, contracts.StatusAtRisk, 10)
	require.NoError(t, err)
	require.Len(t, atRisk, 1)
	assert.Equal(t, "b", atRisk[0].ID)

	all, err := store.ListShipments(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)
}

func TestMemoryStoreUnknownShipment(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetShipment(ctx, "missing")
	assert.True(t, errors.Is(err, ErrShipmentNotFound))

	err = store.UpdateShipmentRisk(ctx, "missing", 0.5, nil, contracts.StatusOnTrack)
	assert.True(t, IsNotFound(err))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.UpsertShipment(ctx, contracts.Shipment{ID: "x", RiskFactors: []string{"storm"}}))

	got, err := store.GetShipment(ctx, "x")
	require.NoError(t, err)
	got.RiskFactors[0] = "mutated"

	again, err := store.GetShipment(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "storm", again.RiskFactors[0])
}

func TestMemoryStoreHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	firstID, err := store.SaveRouteAlternatives(ctx, contracts.RoutePlan{ShipmentID: "s1", Recommendation: "first"})
	require.NoError(t, err)
	assert.NotEmpty(t, firstID)
	_, err = store.SaveRouteAlternatives(ctx, contracts.RoutePlan{ShipmentID: "s2", Recommendation: "other"})
	require.NoError(t, err)
	_, err = store.SaveRouteAlternatives(ctx, contracts.RoutePlan{ShipmentID: "s1", Recommendation: "second"})
	require.NoError(t, err)

	plans, err := store.RouteHistory(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "second", plans[0].Recommendation)
	assert.Equal(t, firstID, plans[1].ID)
	assert.False(t, plans[0].CreatedAt.IsZero())

	everything, err := store.RouteHistory(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, everything, 3)

	_, err = store.SaveAuditReport(ctx, contracts.AuditReport{ShipmentID: "s1", Compliant: true})
	require.NoError(t, err)
	_, err = store.SaveAuditReport(ctx, contracts.AuditReport{ShipmentID: "s1"})
	require.NoError(t, err)

	reports, err := store.AuditReports(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.False(t, reports[0].Compliant)
	assert.NotEqual(t, reports[0].ID, reports[1].ID)
}

func TestMemoryStoreDisruptions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.LogDisruption(ctx, contracts.DisruptionEvent{EventType: "TYPHOON", Severity: "CRITICAL"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	events, err := store.Disruptions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.False(t, events[0].DetectedAt.IsZero())
}

func TestPersistenceErrorMatches(t *testing.T) {
	cause := errors.New("connection reset")
	err := wrap("insert audit report", cause)

	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "insert audit report: connection reset", err.Error())
	assert.Nil(t, wrap("noop", nil))
}
