package api

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/httpx"
	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
	"github.com/shiroonigami23-ui/ecoroute/internal/orchestrator"
)

const (
	sourceIngest    = "ingest"
	sourceSimulator = "simulator"
	maxSimulated    = 50
)

type ShipmentLister interface {
	ActiveShipments(ctx context.Context) ([]contracts.Shipment, error)
}

type Ingest struct {
	Publisher      *orchestrator.Publisher
	Shipments      ShipmentLister
	HighPriority   string
	NormalPriority string
	Logger         *slog.Logger
}

type scenario struct {
	kind        string
	severity    string
	description string
	lat, lon    float64
}

var scenarios = []scenario{
	{"SUEZ_CANAL_BLOCKAGE", "CRITICAL", "Grounded vessel blocks the Suez Canal in both directions", 30.5852, 32.2654},
	{"RED_SEA_SECURITY", "HIGH", "Attacks on merchant vessels reported in the Red Sea", 15.5527, 41.5000},
	{"PANAMA_DROUGHT", "MEDIUM", "Low water levels restrict Panama Canal transits", 9.0768, -79.7196},
	{"TYPHOON", "HIGH", "Typhoon approaching the Singapore anchorage", 1.3521, 103.8198},
	{"PORT_STRIKE", "MEDIUM", "Dock workers strike at Rotterdam", 51.9225, 4.0500},
	{"HORMUZ_TENSION", "HIGH", "Naval incidents in the Strait of Hormuz", 26.5667, 56.2500},
}

func NewIngestRouter(in Ingest, m *metrics.Metrics) http.Handler {
	router := newRouter("ingest", m)

	router.Post("/v1/events/high-risk", func(w http.ResponseWriter, r *http.Request) {
		var ev contracts.HighRiskEvent
		if err := httpx.DecodeJSON(r, &ev); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if ev.EventType == "" {
			ev.EventType = contracts.EventHighRiskDetected
		}
		if ev.DetectedAt.IsZero() {
			ev.DetectedAt = time.Now().UTC()
		}
		if err := httpx.Validate(ev); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		if err := in.Publisher.Publish(r.Context(), in.HighPriority, ev); err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, err)
			return
		}
		httpx.WriteJSON(w, http.StatusAccepted, ev)
	})

	router.Post("/v1/events/disruption", func(w http.ResponseWriter, r *http.Request) {
		var d contracts.DisruptionEvent
		if err := httpx.DecodeJSON(r, &d); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if strings.TrimSpace(d.EventType) == "" {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "event_type is required"})
			return
		}

		notice := newNotice(d, sourceIngest)
		if err := in.Publisher.Publish(r.Context(), in.NormalPriority, notice); err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, err)
			return
		}
		httpx.WriteJSON(w, http.StatusAccepted, notice)
	})

	router.Post("/v1/simulate", func(w http.ResponseWriter, r *http.Request) {
		type req struct {
			Count int `json:"count"`
		}
		body := req{Count: 1}
		_ = httpx.DecodeJSON(r, &body)
		body.Count = min(max(body.Count, 1), maxSimulated)

		sent, err := in.Simulate(r.Context(), body.Count)
		if err != nil && sent == 0 {
			httpx.WriteError(w, http.StatusServiceUnavailable, err)
			return
		}
		httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"requested": body.Count, "published": sent})
	})

	return router
}

// Simulate publishes count random disruptions against the active shipments.
func (in Ingest) Simulate(ctx context.Context, count int) (int, error) {
	var ids []string
	if in.Shipments != nil {
		shipments, err := in.Shipments.ActiveShipments(ctx)
		if err != nil {
			return 0, err
		}
		for _, s := range shipments {
			ids = append(ids, s.ID)
		}
	}

	sent := 0
	for range count {
		notice := newNotice(RandomDisruption(ids), sourceSimulator)
		if err := in.Publisher.Publish(ctx, in.NormalPriority, notice); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (in Ingest) RunSimulator(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := in.Simulate(ctx, 1); err != nil && ctx.Err() == nil {
				in.logger().Warn("simulator publish failed", "error", err)
			}
		}
	}
}

func (in Ingest) logger() *slog.Logger {
	if in.Logger == nil {
		return slog.Default()
	}
	return in.Logger
}

// RandomDisruption picks a scenario and up to three affected shipments.
func RandomDisruption(shipmentIDs []string) contracts.DisruptionEvent {
	sc := scenarios[rand.IntN(len(scenarios))]

	var affected []string
	if len(shipmentIDs) > 0 {
		picked := rand.Perm(len(shipmentIDs))[:min(3, len(shipmentIDs))]
		for _, i := range picked {
			affected = append(affected, shipmentIDs[i])
		}
	}

	return contracts.DisruptionEvent{
		EventType:         sc.kind,
		Severity:          sc.severity,
		Latitude:          sc.lat,
		Longitude:         sc.lon,
		Description:       sc.description,
		AffectedShipments: affected,
	}
}

func newNotice(d contracts.DisruptionEvent, source string) contracts.DisruptionNotice {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now().UTC()
	}
	if d.DataSource == "" {
		d.DataSource = source
	}
	d.EventType = strings.ToUpper(strings.TrimSpace(d.EventType))
	return contracts.DisruptionNotice{EventType: contracts.EventDisruptionDetected, Disruption: d}
}
