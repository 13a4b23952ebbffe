package app

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/routegraph"
)

func TestGenerateShipments(t *testing.T) {
	g, err := routegraph.Default()
	require.NoError(t, err)

	shipments := GenerateShipments(g, 40, rand.New(rand.NewPCG(1, 2)))
	require.Len(t, shipments, 40)

	ids := map[string]bool{}
	for _, s := range shipments {
		assert.NotEqual(t, s.OriginPort, s.DestinationPort)
		assert.True(t, g.Has(s.OriginPort))
		assert.True(t, g.Has(s.DestinationPort))
		assert.Positive(t, s.CargoWeightTons)
		if s.Status == contracts.StatusAtRisk {
			assert.Greater(t, s.RiskScore, 0.7)
		}
		ids[s.ID] = true
	}
	assert.Len(t, ids, 40)
}

func TestSeed(t *testing.T) {
	rt, store := newTestRuntime(t)

	require.NoError(t, rt.Seed(context.Background(), 5))

	all, err := store.ActiveShipments(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 6)

	s, err := store.GetShipment(context.Background(), "e2e-test-shipment")
	require.NoError(t, err)
	assert.Equal(t, "Rotterdam", s.DestinationPort)
}

func TestRunScenario(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Pipeline(ctx) }()

	res, err := rt.RunScenario(ctx, 10*time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, res.Plan.ID, res.Report.PlanID)
	assert.True(t, res.Plan.WellFormed())

	// A second run waits for a new plan rather than reusing the first one.
	again, err := rt.RunScenario(ctx, 10*time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	assert.NotEqual(t, res.Plan.ID, again.Plan.ID)
	assert.NotEqual(t, res.Report.ID, again.Report.ID)
}

func TestRunScenarioTimesOutWithoutPlanner(t *testing.T) {
	rt, _ := newTestRuntime(t)

	_, err := rt.RunScenario(context.Background(), 200*time.Millisecond, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route planner timed out")
}
