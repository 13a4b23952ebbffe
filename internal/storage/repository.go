package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
)

// Store is the persistence surface shared by every stage.
type Store interface {
	ActiveShipments(ctx context.Context) ([]contracts.Shipment, error)
	GetShipment(ctx context.Context, id string) (contracts.Shipment, error)
	ListShipments(ctx context.Context, status contracts.ShipmentStatus, limit int) ([]contracts.Shipment, error)
	UpsertShipment(ctx context.Context, s contracts.Shipment) error
	UpdateShipmentRisk(ctx context.Context, id string, score float64, factors []string, status contracts.ShipmentStatus) error
	LogDisruption(ctx context.Context, event contracts.DisruptionEvent) (string, error)
	Disruptions(ctx context.Context, limit int) ([]contracts.DisruptionEvent, error)
	SaveRouteAlternatives(ctx context.Context, plan contracts.RoutePlan) (string, error)
	RouteHistory(ctx context.Context, shipmentID string, limit int) ([]contracts.RoutePlan, error)
	SaveAuditReport(ctx context.Context, report contracts.AuditReport) (string, error)
	AuditReports(ctx context.Context, shipmentID string, limit int) ([]contracts.AuditReport, error)
}

const approvedByPlanner = "ROUTE_PLANNER"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const shipmentColumns = `id, vessel_name, current_lat, current_lon, origin_port, destination_port,
            eta, cargo_weight_tons, status, risk_score, risk_factors, last_updated`

func (r *Repository) ActiveShipments(ctx context.Context) ([]contracts.Shipment, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+shipmentColumns+`
        FROM active_shipments
        ORDER BY id
    `)
	if err != nil {
		return nil, wrap("query active shipments", err)
	}
	return collectShipments(rows)
}

func (r *Repository) GetShipment(ctx context.Context, id string) (contracts.Shipment, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+shipmentColumns+`
        FROM active_shipments
        WHERE id = $1
    `, id)
	if err != nil {
		return contracts.Shipment{}, wrap("query shipment", err)
	}
	out, err := collectShipments(rows)
	if err != nil {
		return contracts.Shipment{}, err
	}
	if len(out) == 0 {
		return contracts.Shipment{}, fmt.Errorf("%w: %s", ErrShipmentNotFound, id)
	}
	return out[0], nil
}

func (r *Repository) ListShipments(ctx context.Context, status contracts.ShipmentStatus, limit int) ([]contracts.Shipment, error) {
	limit = clampLimit(limit)
	rows, err := r.pool.Query(ctx, `
        SELECT `+shipmentColumns+`
        FROM active_shipments
        WHERE ($1 = '' OR status = $1)
        ORDER BY risk_score DESC, id
        LIMIT $2
    `, string(status), limit)
	if err != nil {
		return nil, wrap("list shipments", err)
	}
	return collectShipments(rows)
}

func collectShipments(rows pgx.Rows) ([]contracts.Shipment, error) {
	defer rows.Close()

	results := make([]contracts.Shipment, 0)
	for rows.Next() {
		var s contracts.Shipment
		var eta *time.Time
		var status string
		if err := rows.Scan(
			&s.ID,
			&s.VesselName,
			&s.Latitude,
			&s.Longitude,
			&s.OriginPort,
			&s.DestinationPort,
			&eta,
			&s.CargoWeightTons,
			&status,
			&s.RiskScore,
			&s.RiskFactors,
			&s.LastUpdated,
		); err != nil {
			return nil, wrap("scan shipment", err)
		}
		if eta != nil {
			s.ETA = *eta
		}
		s.Status = contracts.ShipmentStatus(status)
		results = append(results, s)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("iterate shipments", err)
	}
	return results, nil
}

func (r *Repository) UpsertShipment(ctx context.Context, s contracts.Shipment) error {
	if s.Status == "" {
		s.Status = contracts.StatusOnTrack
	}
	var eta *time.Time
	if !s.ETA.IsZero() {
		eta = &s.ETA
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO active_shipments
            (id, vessel_name, current_lat, current_lon, origin_port, destination_port,
             eta, cargo_weight_tons, status, risk_score, risk_factors, last_updated)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
        ON CONFLICT (id) DO UPDATE SET
            vessel_name = EXCLUDED.vessel_name,
            current_lat = EXCLUDED.current_lat,
            current_lon = EXCLUDED.current_lon,
            origin_port = EXCLUDED.origin_port,
            destination_port = EXCLUDED.destination_port,
            eta = EXCLUDED.eta,
            cargo_weight_tons = EXCLUDED.cargo_weight_tons,
            status = EXCLUDED.status,
            risk_score = EXCLUDED.risk_score,
            risk_factors = EXCLUDED.risk_factors,
            last_updated = NOW()
    `, s.ID, s.VesselName, s.Latitude, s.Longitude, s.OriginPort, s.DestinationPort,
		eta, s.CargoWeightTons, string(s.Status), s.RiskScore, nonNil(s.RiskFactors))
	return wrap("upsert shipment", err)
}

func (r *Repository) UpdateShipmentRisk(ctx context.Context, id string, score float64, factors []string, status contracts.ShipmentStatus) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE active_shipments
        SET risk_score = $2, risk_factors = $3, status = $4, last_updated = NOW()
        WHERE id = $1
    `, id, score, nonNil(factors), string(status))
	if err != nil {
		return wrap("update shipment risk", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrShipmentNotFound, id)
	}
	return nil
}

func (r *Repository) LogDisruption(ctx context.Context, event contracts.DisruptionEvent) (string, error) {
	if _, err := uuid.Parse(event.ID); err != nil {
		event.ID = uuid.NewString()
	}
	if event.DetectedAt.IsZero() {
		event.DetectedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO disruption_events
            (id, event_type, severity, lat, lon, description, affected_shipments, data_source, detected_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING
    `, event.ID, event.EventType, event.Severity, event.Latitude, event.Longitude, event.Description,
		nonNil(event.AffectedShipments), event.DataSource, event.DetectedAt)
	if err != nil {
		return "", wrap("insert disruption event", err)
	}
	return event.ID, nil
}

func (r *Repository) Disruptions(ctx context.Context, limit int) ([]contracts.DisruptionEvent, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id::text, event_type, severity, lat, lon, description, affected_shipments, data_source, detected_at
        FROM disruption_events
        ORDER BY detected_at DESC
        LIMIT $1
    `, clampLimit(limit))
	if err != nil {
		return nil, wrap("query disruption events", err)
	}
	defer rows.Close()

	results := make([]contracts.DisruptionEvent, 0)
	for rows.Next() {
		var e contracts.DisruptionEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Severity, &e.Latitude, &e.Longitude,
			&e.Description, &e.AffectedShipments, &e.DataSource, &e.DetectedAt); err != nil {
			return nil, wrap("scan disruption event", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate disruption events", err)
	}
	return results, nil
}

func (r *Repository) SaveRouteAlternatives(ctx context.Context, plan contracts.RoutePlan) (string, error) {
	plan = stampPlan(plan)
	body, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("marshal route plan: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
        INSERT INTO route_history
            (id, shipment_id, recommendation, plan, approved_by, created_at)
        VALUES
            ($1, $2, $3, $4::jsonb, $5, $6)
    `, plan.ID, plan.ShipmentID, plan.Recommendation, string(body), approvedByPlanner, plan.CreatedAt)
	if err != nil {
		return "", wrap("insert route history", err)
	}
	return plan.ID, nil
}

func (r *Repository) RouteHistory(ctx context.Context, shipmentID string, limit int) ([]contracts.RoutePlan, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT plan
        FROM route_history
        WHERE ($1 = '' OR shipment_id = $1)
        ORDER BY created_at DESC
        LIMIT $2
    `, shipmentID, clampLimit(limit))
	if err != nil {
		return nil, wrap("query route history", err)
	}
	return collectJSON[contracts.RoutePlan](rows, "route plan")
}

func (r *Repository) SaveAuditReport(ctx context.Context, report contracts.AuditReport) (string, error) {
	report = stampReport(report)
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal audit report: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
        INSERT INTO audit_reports
            (id, shipment_id, plan_id, compliant, recommended_route, audit_details, created_at)
        VALUES
            ($1, $2, $3, $4, $5, $6::jsonb, $7)
    `, report.ID, report.ShipmentID, report.PlanID, report.Compliant, report.RecommendedRoute, string(body), report.CreatedAt)
	if err != nil {
		return "", wrap("insert audit report", err)
	}
	return report.ID, nil
}

func (r *Repository) AuditReports(ctx context.Context, shipmentID string, limit int) ([]contracts.AuditReport, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT audit_details
        FROM audit_reports
        WHERE ($1 = '' OR shipment_id = $1)
        ORDER BY created_at DESC
        LIMIT $2
    `, shipmentID, clampLimit(limit))
	if err != nil {
		return nil, wrap("query audit reports", err)
	}
	return collectJSON[contracts.AuditReport](rows, "audit report")
}

func collectJSON[T any](rows pgx.Rows, what string) ([]T, error) {
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, wrap("scan "+what, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", what, err)
		}
		results = append(results, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate "+what, err)
	}
	return results, nil
}

// IsNotFound reports whether err means the shipment does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrShipmentNotFound)
}

func stampPlan(plan contracts.RoutePlan) contracts.RoutePlan {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	return plan
}

func stampReport(report contracts.AuditReport) contracts.AuditReport {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	return report
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
