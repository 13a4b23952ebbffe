//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
)

func startPostgres(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "pgvector/pgvector:pg16",
		tcpostgres.WithDatabase("ecoroute"),
		tcpostgres.WithUsername("ecoroute"),
		tcpostgres.WithPassword("ecoroute"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	require.NoError(t, RunMigrations(ctx, pool), "migrations must be re-runnable")
	return NewRepository(pool)
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertShipment(ctx, contracts.Shipment{
		ID:              "e2e-test-shipment",
		VesselName:      "Ever Given",
		OriginPort:      "Shanghai",
		DestinationPort: "Rotterdam",
		CargoWeightTons: 1000,
	}))
	require.NoError(t, repo.UpdateShipmentRisk(ctx, "e2e-test-shipment", 0.95,
		[]string{"Simulated Typhoon", "Port Closure"}, contracts.StatusAtRisk))

	got, err := repo.GetShipment(ctx, "e2e-test-shipment")
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusAtRisk, got.Status)
	assert.Equal(t, []string{"Simulated Typhoon", "Port Closure"}, got.RiskFactors)

	err = repo.UpdateShipmentRisk(ctx, "missing", 0.1, nil, contracts.StatusOnTrack)
	assert.ErrorIs(t, err, ErrShipmentNotFound)

	planID, err := repo.SaveRouteAlternatives(ctx, contracts.RoutePlan{
		ShipmentID:     "e2e-test-shipment",
		Recommendation: "Standard Route",
		Options: []contracts.RouteOption{{
			RouteName:  "Standard Route",
			Path:       []string{"Shanghai", "Singapore", "Rotterdam"},
			DistanceKm: 19030,
		}},
	})
	require.NoError(t, err)

	plans, err := repo.RouteHistory(ctx, "e2e-test-shipment", 10)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, planID, plans[0].ID)
	assert.True(t, plans[0].WellFormed())

	_, err = repo.SaveAuditReport(ctx, contracts.AuditReport{
		ShipmentID:       "e2e-test-shipment",
		PlanID:           planID,
		Compliant:        true,
		RecommendedRoute: "Standard Route",
	})
	require.NoError(t, err)

	reports, err := repo.AuditReports(ctx, "e2e-test-shipment", 10)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "Standard Route", reports[0].RecommendedRoute)

	id, err := repo.LogDisruption(ctx, contracts.DisruptionEvent{EventType: "TYPHOON", Severity: "CRITICAL"})
	require.NoError(t, err)
	events, err := repo.Disruptions(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
}
