package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/httpx"
	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
	"github.com/shiroonigami23-ui/ecoroute/internal/routegraph"
	"github.com/shiroonigami23-ui/ecoroute/internal/storage"
)

type QueryStore interface {
	ListShipments(ctx context.Context, status contracts.ShipmentStatus, limit int) ([]contracts.Shipment, error)
	GetShipment(ctx context.Context, id string) (contracts.Shipment, error)
	RouteHistory(ctx context.Context, shipmentID string, limit int) ([]contracts.RoutePlan, error)
	AuditReports(ctx context.Context, shipmentID string, limit int) ([]contracts.AuditReport, error)
	Disruptions(ctx context.Context, limit int) ([]contracts.DisruptionEvent, error)
}

type Query struct {
	Store    QueryStore
	Graph    *routegraph.Graph
	SpeedKmh float64
}

type routeResponse struct {
	routegraph.Route
	EstimatedDays float64 `json:"estimated_days"`
}

// NewQueryRouter exposes persisted records and ad-hoc route queries.
func NewQueryRouter(q Query, m *metrics.Metrics) http.Handler {
	router := newRouter("query-api", m)

	router.Get("/v1/shipments", func(w http.ResponseWriter, r *http.Request) {
		status := contracts.ShipmentStatus(strings.ToUpper(r.URL.Query().Get("status")))
		limit := httpx.ParseLimit(r.URL.Query().Get("limit"), 100)

		items, err := q.Store.ListShipments(r.Context(), status, limit)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
	})

	router.Get("/v1/shipments/{id}", func(w http.ResponseWriter, r *http.Request) {
		shipment, err := q.Store.GetShipment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, shipment)
	})

	router.Get("/v1/shipments/{id}/routes", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := q.Store.GetShipment(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		plans, err := q.Store.RouteHistory(r.Context(), id, httpx.ParseLimit(r.URL.Query().Get("limit"), 20))
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": plans})
	})

	router.Get("/v1/shipments/{id}/audits", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := q.Store.GetShipment(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		reports, err := q.Store.AuditReports(r.Context(), id, httpx.ParseLimit(r.URL.Query().Get("limit"), 20))
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": reports})
	})

	router.Get("/v1/disruptions", func(w http.ResponseWriter, r *http.Request) {
		events, err := q.Store.Disruptions(r.Context(), httpx.ParseLimit(r.URL.Query().Get("limit"), 100))
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": events})
	})

	router.Get("/v1/routes", func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.URL.Query().Get("origin"))
		destination := strings.TrimSpace(r.URL.Query().Get("destination"))
		if origin == "" || destination == "" {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "origin and destination are required"})
			return
		}

		route, err := q.Graph.FindRoute(origin, destination, splitList(r.URL.Query().Get("avoid")))
		switch {
		case errors.Is(err, routegraph.ErrUnknownPort):
			m.RouteQuery("unknown_port")
			httpx.WriteError(w, http.StatusNotFound, err)
			return
		case errors.Is(err, routegraph.ErrNoPathFound):
			m.RouteQuery("no_path")
			httpx.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		case err != nil:
			m.RouteQuery("error")
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}

		m.RouteQuery("ok")
		httpx.WriteJSON(w, http.StatusOK, routeResponse{
			Route:         route,
			EstimatedDays: routegraph.TransitDays(route.DistanceKm, q.SpeedKmh),
		})
	})

	router.Get("/v1/ports", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": q.Graph.Ports()})
	})

	return router
}

func writeStoreError(w http.ResponseWriter, err error) {
	if storage.IsNotFound(err) {
		httpx.WriteError(w, http.StatusNotFound, err)
		return
	}
	httpx.WriteError(w, http.StatusInternalServerError, err)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
