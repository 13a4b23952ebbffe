// Package reasoning turns shipment and route context into risk scores, plan
// recommendations and audit rationales.
package reasoning

import (
	"context"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
)

type RiskAssessment struct {
	Score             float64  `json:"risk_score"`
	Factors           []string `json:"risk_factors"`
	RecommendedAction string   `json:"recommended_action"`
	Reasoning         string   `json:"reasoning"`
}

type PlanRequest struct {
	Shipment contracts.Shipment
	Reason   contracts.DisruptionReason
	Avoided  []string
	Options  []contracts.RouteOption
	Notes    []string
}

type PlanAdvice struct {
	Options        []contracts.RouteOption `json:"options"`
	Recommendation string                  `json:"recommendation"`
	Raw            string                  `json:"-"`
}

type AuditRequest struct {
	ShipmentID  string
	Assessments []contracts.OptionAssessment
	Recommended string
	Compliant   bool
	CapKg       float64
	Context     []string
	Sources     []string
}

type Reasoner interface {
	AssessRisk(ctx context.Context, shipment contracts.Shipment) (RiskAssessment, error)
	AdvisePlan(ctx context.Context, req PlanRequest) (PlanAdvice, error)
	ExplainAudit(ctx context.Context, req AuditRequest) (string, error)
}
