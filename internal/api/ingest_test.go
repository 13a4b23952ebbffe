package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/logging"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
	"github.com/shiroonigami23-ui/ecoroute/internal/orchestrator"
	"github.com/shiroonigami23-ui/ecoroute/internal/storage"
)

const (
	highTopic   = "event:queue:high_priority"
	normalTopic = "event:queue:normal_priority"
)

type ingestFixture struct {
	srv   *httptest.Server
	queue *mq.RedisQueue
	redis *miniredis.Miniredis
	in    Ingest
}

func newIngestFixture(t *testing.T) ingestFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	q := mq.NewRedisQueue(mq.NewRedisClient(mr.Addr(), "", 0))
	t.Cleanup(func() { _ = q.Close() })

	store := storage.NewMemoryStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.UpsertShipment(context.Background(), contracts.Shipment{ID: id, OriginPort: "Shanghai", DestinationPort: "Rotterdam"}))
	}

	in := Ingest{
		Publisher:      orchestrator.NewPublisher(q, nil),
		Shipments:      store,
		HighPriority:   highTopic,
		NormalPriority: normalTopic,
		Logger:         logging.Discard(),
	}
	srv := httptest.NewServer(NewIngestRouter(in, nil))
	t.Cleanup(srv.Close)
	return ingestFixture{srv: srv, queue: q, redis: mr, in: in}
}

func post(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestIngestHighRisk(t *testing.T) {
	f := newIngestFixture(t)

	code := post(t, f.srv.URL+"/v1/events/high-risk", `{"shipment_id":"e2e-test-shipment","risk_score":0.95,"risk_factors":["Simulated Typhoon"]}`)
	require.Equal(t, http.StatusAccepted, code)

	msg, err := f.queue.BlockingPop(context.Background(), time.Second, highTopic)
	require.NoError(t, err)
	require.NotNil(t, msg)
	ev, err := mq.ParseMessageJSON[contracts.HighRiskEvent](msg)
	require.NoError(t, err)
	assert.Equal(t, contracts.EventHighRiskDetected, ev.EventType)
	assert.Equal(t, 0.95, ev.RiskScore)
	assert.False(t, ev.DetectedAt.IsZero())
}

func TestIngestHighRiskRejectsInvalid(t *testing.T) {
	f := newIngestFixture(t)

	assert.Equal(t, http.StatusBadRequest, post(t, f.srv.URL+"/v1/events/high-risk", `{"risk_score":0.9}`))
	assert.Equal(t, http.StatusBadRequest, post(t, f.srv.URL+"/v1/events/high-risk", `{"shipment_id":"x","risk_score":1.5}`))
	assert.Equal(t, http.StatusBadRequest, post(t, f.srv.URL+"/v1/events/high-risk", `{"shipment_id":"x","unknown":true}`))
	assert.Equal(t, http.StatusBadRequest, post(t, f.srv.URL+"/v1/events/high-risk", ``))

	assert.False(t, f.redis.Exists(highTopic))
}

func TestIngestDisruption(t *testing.T) {
	f := newIngestFixture(t)

	assert.Equal(t, http.StatusBadRequest, post(t, f.srv.URL+"/v1/events/disruption", `{"description":"no type"}`))

	code := post(t, f.srv.URL+"/v1/events/disruption", `{"event_type":"suez_canal_blockage","description":"Blocked","affected_shipments":["a"]}`)
	require.Equal(t, http.StatusAccepted, code)

	msg, err := f.queue.BlockingPop(context.Background(), time.Second, normalTopic)
	require.NoError(t, err)
	require.NotNil(t, msg)
	notice, err := mq.ParseMessageJSON[contracts.DisruptionNotice](msg)
	require.NoError(t, err)
	assert.Equal(t, "SUEZ_CANAL_BLOCKAGE", notice.Disruption.EventType)
	assert.Equal(t, sourceIngest, notice.Disruption.DataSource)
	assert.NotEmpty(t, notice.Disruption.ID)
	assert.Equal(t, []string{"a"}, notice.Disruption.AffectedShipments)
}

func TestIngestSimulate(t *testing.T) {
	f := newIngestFixture(t)

	require.Equal(t, http.StatusAccepted, post(t, f.srv.URL+"/v1/simulate", `{"count":3}`))

	items, err := f.redis.List(normalTopic)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	msg, err := f.queue.BlockingPop(context.Background(), time.Second, normalTopic)
	require.NoError(t, err)
	notice, err := mq.ParseMessageJSON[contracts.DisruptionNotice](msg)
	require.NoError(t, err)
	assert.Equal(t, sourceSimulator, notice.Disruption.DataSource)
	assert.Len(t, notice.Disruption.AffectedShipments, 3)
}

func TestRandomDisruption(t *testing.T) {
	d := RandomDisruption(nil)
	assert.NotEmpty(t, d.EventType)
	assert.Empty(t, d.AffectedShipments)

	d = RandomDisruption([]string{"only"})
	assert.Equal(t, []string{"only"}, d.AffectedShipments)
}

func TestRunSimulatorStopsOnCancel(t *testing.T) {
	f := newIngestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.in.RunSimulator(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.redis.Exists(normalTopic) }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop")
	}
}
