package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/logging"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
	"github.com/shiroonigami23-ui/ecoroute/internal/orchestrator"
	"github.com/shiroonigami23-ui/ecoroute/internal/reasoning"
	"github.com/shiroonigami23-ui/ecoroute/internal/storage"
)

const highPriority = "event:queue:high_priority"

type scriptedAssessor map[string]float64

func (a scriptedAssessor) AssessRisk(_ context.Context, s contracts.Shipment) (reasoning.RiskAssessment, error) {
	score, ok := a[s.ID]
	if !ok {
		return reasoning.RiskAssessment{}, errors.New("model unavailable")
	}
	return reasoning.RiskAssessment{Score: score, Factors: []string{"Simulated Typhoon"}}, nil
}

type fixture struct {
	stage *Stage
	store *storage.MemoryStore
	queue *mq.RedisQueue
}

func newFixture(t *testing.T, scores scriptedAssessor, ids ...string) fixture {
	t.Helper()
	srv := miniredis.RunT(t)
	q := mq.NewRedisQueue(mq.NewRedisClient(srv.Addr(), "", 0))
	t.Cleanup(func() { _ = q.Close() })

	store := storage.NewMemoryStore()
	for _, id := range ids {
		require.NoError(t, store.UpsertShipment(context.Background(), contracts.Shipment{ID: id, OriginPort: "Shanghai", DestinationPort: "Rotterdam"}))
	}

	stage := NewStage(store, scores, orchestrator.NewPublisher(q, nil), Config{
		Threshold: 0.7,
		Topic:     highPriority,
	}, logging.Discard(), nil)
	return fixture{stage: stage, store: store, queue: q}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, contracts.StatusAtRisk, Classify(0.95, 0.7))
	assert.Equal(t, contracts.StatusOnTrack, Classify(0.5, 0.7))
	assert.Equal(t, contracts.StatusOnTrack, Classify(0.7, 0.7))
}

func TestScanOnceClassifiesAndRaises(t *testing.T) {
	f := newFixture(t, scriptedAssessor{"hot": 0.95, "calm": 0.5, "edge": 0.7}, "hot", "calm", "edge")
	ctx := context.Background()

	res, err := f.stage.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Active: 3, Scored: 3, Raised: 1}, res)

	hot, err := f.store.GetShipment(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusAtRisk, hot.Status)
	assert.Equal(t, 0.95, hot.RiskScore)

	for _, id := range []string{"calm", "edge"} {
		s, err := f.store.GetShipment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, contracts.StatusOnTrack, s.Status, id)
	}

	msg, err := f.queue.BlockingPop(ctx, time.Second, highPriority)
	require.NoError(t, err)
	require.NotNil(t, msg)
	ev, err := mq.ParseMessageJSON[contracts.HighRiskEvent](msg)
	require.NoError(t, err)
	assert.Equal(t, "hot", ev.ShipmentID)
	assert.Equal(t, 0.95, ev.RiskScore)
	assert.False(t, ev.DetectedAt.IsZero())

	msg, err = f.queue.BlockingPop(ctx, time.Second, highPriority)
	require.NoError(t, err)
	assert.Nil(t, msg, "only one event expected")
}

func TestScanOnceRepublishesOnEveryCrossing(t *testing.T) {
	f := newFixture(t, scriptedAssessor{"hot": 0.9}, "hot")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := f.stage.ScanOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Raised)
	}

	for i := 0; i < 2; i++ {
		msg, err := f.queue.BlockingPop(ctx, time.Second, highPriority)
		require.NoError(t, err)
		require.NotNil(t, msg)
	}
}

func TestScanOnceIsolatesFailures(t *testing.T) {
	f := newFixture(t, scriptedAssessor{"ok": 0.3}, "broken", "ok")

	res, err := f.stage.ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Active: 2, Scored: 1}, res)
}

func TestScanOnceClampsScores(t *testing.T) {
	f := newFixture(t, scriptedAssessor{"over": 1.7, "under": -0.2}, "over", "under")
	ctx := context.Background()

	_, err := f.stage.ScanOnce(ctx)
	require.NoError(t, err)

	over, _ := f.store.GetShipment(ctx, "over")
	under, _ := f.store.GetShipment(ctx, "under")
	assert.Equal(t, 1.0, over.RiskScore)
	assert.Equal(t, 0.0, under.RiskScore)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, scriptedAssessor{})
	f.stage.cfg.EmptyDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.stage.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("risk stage did not stop")
	}
}
