package contracts

import "time"

type ShipmentStatus string

const (
	StatusOnTrack ShipmentStatus = "ON_TRACK"
	StatusAtRisk  ShipmentStatus = "AT_RISK"
)

// Queue message discriminators. Events carry event_type, tasks carry task_type.
const (
	EventHighRiskDetected   = "HIGH_RISK_DETECTED"
	EventDisruptionDetected = "DISRUPTION_DETECTED"
	EventWeatherAlert       = "WEATHER_ALERT"

	TaskPlanNewRoute = "PLAN_NEW_ROUTE"
	TaskCarbonAudit  = "CARBON_AUDIT"
)

type Shipment struct {
	ID              string         `json:"id"`
	VesselName      string         `json:"vessel_name"`
	Latitude        float64        `json:"latitude"`
	Longitude       float64        `json:"longitude"`
	OriginPort      string         `json:"origin_port"`
	DestinationPort string         `json:"destination_port"`
	ETA             time.Time      `json:"eta"`
	CargoWeightTons float64        `json:"cargo_weight_tons"`
	Status          ShipmentStatus `json:"status"`
	RiskScore       float64        `json:"risk_score"`
	RiskFactors     []string       `json:"risk_factors"`
	LastUpdated     time.Time      `json:"last_updated"`
}

type DisruptionEvent struct {
	ID                string    `json:"id"`
	EventType         string    `json:"event_type"`
	Severity          string    `json:"severity"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Description       string    `json:"description"`
	AffectedShipments []string  `json:"affected_shipments"`
	DataSource        string    `json:"data_source"`
	DetectedAt        time.Time `json:"detected_at"`
}

type RouteOption struct {
	RouteName           string   `json:"route_name"`
	Path                []string `json:"path"`
	DistanceKm          float64  `json:"distance_km"`
	EstimatedDays       float64  `json:"estimated_days"`
	CarbonKg            float64  `json:"carbon_kg"`
	SustainabilityScore float64  `json:"sustainability_score"`
	RiskAnalysis        string   `json:"risk_analysis"`
}

type RoutePlan struct {
	ID             string        `json:"id"`
	ShipmentID     string        `json:"shipment_id"`
	Options        []RouteOption `json:"options"`
	Recommendation string        `json:"recommendation"`
	Avoided        []string      `json:"avoided,omitempty"`
	Notes          []string      `json:"notes,omitempty"`
	RawOutput      string        `json:"raw_output,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// WellFormed reports whether the plan can be handed to the auditor.
func (p RoutePlan) WellFormed() bool {
	return len(p.Options) > 0
}

type OptionAssessment struct {
	RouteName           string  `json:"route_name"`
	DistanceKm          float64 `json:"distance_km"`
	CarbonKg            float64 `json:"carbon_kg"`
	SustainabilityScore float64 `json:"sustainability_score"`
	Compliant           bool    `json:"compliant"`
	EstimateSource      string  `json:"estimate_source"`
}

type AuditReport struct {
	ID               string             `json:"id"`
	ShipmentID       string             `json:"shipment_id"`
	PlanID           string             `json:"plan_id,omitempty"`
	Compliant        bool               `json:"compliant"`
	RecommendedRoute string             `json:"recommended_route"`
	Rationale        string             `json:"rationale"`
	Assessments      []OptionAssessment `json:"assessments"`
	Sources          []string           `json:"sources,omitempty"`
	RawOutput        string             `json:"raw_output,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

type HighRiskEvent struct {
	EventType   string    `json:"event_type" validate:"required,eq=HIGH_RISK_DETECTED"`
	ShipmentID  string    `json:"shipment_id" validate:"required"`
	RiskScore   float64   `json:"risk_score" validate:"gte=0,lte=1"`
	RiskFactors []string  `json:"risk_factors"`
	DetectedAt  time.Time `json:"detected_at"`
}

type DisruptionNotice struct {
	EventType  string          `json:"event_type" validate:"required,eq=DISRUPTION_DETECTED"`
	Disruption DisruptionEvent `json:"disruption"`
}

type DisruptionReason struct {
	EventType   string    `json:"event_type"`
	Disruption  string    `json:"disruption_type,omitempty"`
	Description string    `json:"description,omitempty"`
	RiskScore   float64   `json:"risk_score"`
	RiskFactors []string  `json:"risk_factors,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
}

type PlanRouteTask struct {
	TaskType   string           `json:"task_type" validate:"required,eq=PLAN_NEW_ROUTE"`
	ShipmentID string           `json:"shipment_id" validate:"required"`
	Reason     DisruptionReason `json:"reason"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Key identifies the planning request by shipment and triggering disruption.
func (t PlanRouteTask) Key() string {
	kind := t.Reason.Disruption
	if kind == "" {
		kind = t.Reason.EventType
	}
	return t.ShipmentID + "|" + kind
}

type CarbonAuditTask struct {
	TaskType        string        `json:"task_type" validate:"required,eq=CARBON_AUDIT"`
	ShipmentID      string        `json:"shipment_id" validate:"required"`
	PlanID          string        `json:"plan_id,omitempty"`
	CargoWeightTons float64       `json:"cargo_weight_tons"`
	RouteOptions    []RouteOption `json:"route_options" validate:"required,min=1"`
	Recommendation  string        `json:"recommendation,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

type Envelope struct {
	EventType  string `json:"event_type"`
	TaskType   string `json:"task_type"`
	ShipmentID string `json:"shipment_id"`
}

// Kind returns the discriminator of the message, preferring task_type.
func (e Envelope) Kind() string {
	if e.TaskType != "" {
		return e.TaskType
	}
	return e.EventType
}
