package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
)

// MemoryStore keeps everything in process. It backs local runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	shipments   map[string]contracts.Shipment
	disruptions []contracts.DisruptionEvent
	plans       []contracts.RoutePlan
	reports     []contracts.AuditReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{shipments: make(map[string]contracts.Shipment)}
}

func (m *MemoryStore) ActiveShipments(_ context.Context) ([]contracts.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]contracts.Shipment, 0, len(m.shipments))
	for _, s := range m.shipments {
		out = append(out, cloneShipment(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetShipment(_ context.Context, id string) (contracts.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shipments[id]
	if !ok {
		return contracts.Shipment{}, fmt.Errorf("%w: %s", ErrShipmentNotFound, id)
	}
	return cloneShipment(s), nil
}

func (m *MemoryStore) ListShipments(ctx context.Context, status contracts.ShipmentStatus, limit int) ([]contracts.Shipment, error) {
	all, _ := m.ActiveShipments(ctx)
	sort.SliceStable(all, func(i, j int) bool { return all[i].RiskScore > all[j].RiskScore })

	out := make([]contracts.Shipment, 0, len(all))
	for _, s := range all {
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, s)
		if len(out) == clampLimit(limit) {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertShipment(_ context.Context, s contracts.Shipment) error {
	if s.Status == "" {
		s.Status = contracts.StatusOnTrack
	}
	s.RiskFactors = nonNil(s.RiskFactors)
	s.LastUpdated = time.Now().UTC()

	m.mu.Lock()
	m.shipments[s.ID] = cloneShipment(s)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) UpdateShipmentRisk(_ context.Context, id string, score float64, factors []string, status contracts.ShipmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shipments[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrShipmentNotFound, id)
	}
	s.RiskScore = score
	s.RiskFactors = append([]string{}, factors...)
	s.Status = status
	s.LastUpdated = time.Now().UTC()
	m.shipments[id] = s
	return nil
}

func (m *MemoryStore) LogDisruption(_ context.Context, event contracts.DisruptionEvent) (string, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.DetectedAt.IsZero() {
		event.DetectedAt = time.Now().UTC()
	}
	event.AffectedShipments = append([]string{}, event.AffectedShipments...)

	m.mu.Lock()
	m.disruptions = append(m.disruptions, event)
	m.mu.Unlock()
	return event.ID, nil
}

func (m *MemoryStore) Disruptions(_ context.Context, limit int) ([]contracts.DisruptionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.disruptions, "", limit, func(contracts.DisruptionEvent) string { return "" }), nil
}

func (m *MemoryStore) SaveRouteAlternatives(_ context.Context, plan contracts.RoutePlan) (string, error) {
	plan = stampPlan(plan)

	m.mu.Lock()
	m.plans = append(m.plans, plan)
	m.mu.Unlock()
	return plan.ID, nil
}

func (m *MemoryStore) RouteHistory(_ context.Context, shipmentID string, limit int) ([]contracts.RoutePlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.plans, shipmentID, limit, func(p contracts.RoutePlan) string { return p.ShipmentID }), nil
}

func (m *MemoryStore) SaveAuditReport(_ context.Context, report contracts.AuditReport) (string, error) {
	report = stampReport(report)

	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.mu.Unlock()
	return report.ID, nil
}

func (m *MemoryStore) AuditReports(_ context.Context, shipmentID string, limit int) ([]contracts.AuditReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.reports, shipmentID, limit, func(r contracts.AuditReport) string { return r.ShipmentID }), nil
}

// newestFirst walks records backwards, keeping those whose key matches (all when key is empty).
func newestFirst[T any](records []T, key string, limit int, keyOf func(T) string) []T {
	limit = clampLimit(limit)
	out := make([]T, 0)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		if key != "" && keyOf(records[i]) != key {
			continue
		}
		out = append(out, records[i])
	}
	return out
}

func cloneShipment(s contracts.Shipment) contracts.Shipment {
	s.RiskFactors = append([]string{}, s.RiskFactors...)
	return s
}
