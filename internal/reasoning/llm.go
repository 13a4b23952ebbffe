package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/llm"
)

type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error)
}

// LLM is a Reasoner backed by a hosted chat model.
type LLM struct {
	Client      Generator
	Model       string
	MaxTokens   int
	Temperature float64
}

const (
	riskSystem = `You are a maritime risk analyst. Assess the shipment and answer with one JSON object:
{"risk_score": number between 0 and 1, "risk_factors": [string], "recommended_action": string, "reasoning": string}`

	planSystem = `You are a maritime logistics planner. Candidate routes were computed on the port graph.
Refer to them by route_name only. Paths, distances and emissions are fixed; only risk_analysis and the
recommendation are taken from your answer, and a recommendation must name one of the candidates.
Answer with one JSON object: {"options": [{"route_name", "risk_analysis"}], "recommendation": string}`

	auditSystem = `You are a carbon compliance auditor for shipping. Using the regulatory context and the
assessed options, explain the verdict in at most five sentences of plain text.`
)

func (r *LLM) generate(ctx context.Context, stage, system, prompt string) (string, error) {
	resp, err := r.Client.Generate(ctx, llm.GenerateRequest{
		Model:       r.Model,
		System:      system,
		Prompt:      prompt,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		Stage:       stage,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (r *LLM) AssessRisk(ctx context.Context, s contracts.Shipment) (RiskAssessment, error) {
	shipment, err := json.Marshal(s)
	if err != nil {
		return RiskAssessment{}, err
	}
	text, err := r.generate(ctx, "risk", riskSystem, "Shipment:\n"+string(shipment))
	if err != nil {
		return RiskAssessment{}, err
	}
	return DecodeJSON[RiskAssessment](text)
}

func (r *LLM) AdvisePlan(ctx context.Context, req PlanRequest) (PlanAdvice, error) {
	payload, err := json.Marshal(map[string]any{
		"shipment_id":      req.Shipment.ID,
		"origin":           req.Shipment.OriginPort,
		"destination":      req.Shipment.DestinationPort,
		"disruption":       req.Reason,
		"avoided_nodes":    req.Avoided,
		"candidate_routes": req.Options,
		"notes":            req.Notes,
	})
	if err != nil {
		return PlanAdvice{}, err
	}

	text, err := r.generate(ctx, "plan", planSystem, "Context:\n"+string(payload))
	if err != nil {
		return PlanAdvice{Raw: text}, err
	}

	advice, err := DecodeJSON[PlanAdvice](text)
	advice.Raw = text
	if err != nil {
		return advice, err
	}
	if len(advice.Options) == 0 {
		return advice, &ParseError{Raw: text, Err: errors.New("no route options in response")}
	}
	return advice, nil
}

func (r *LLM) ExplainAudit(ctx context.Context, req AuditRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Shipment %s. Emissions cap per voyage: %.0f kg CO2.\n", req.ShipmentID, req.CapKg)
	fmt.Fprintf(&b, "Verdict: recommended=%q compliant=%t\n", req.Recommended, req.Compliant)
	for _, a := range req.Assessments {
		fmt.Fprintf(&b, "- %s: %.0f km, %.0f kg CO2, score %.1f, compliant=%t\n",
			a.RouteName, a.DistanceKm, a.CarbonKg, a.SustainabilityScore, a.Compliant)
	}
	if len(req.Context) > 0 {
		b.WriteString("Regulatory context:\n")
		for _, c := range req.Context {
			b.WriteString("* ")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}

	text, err := r.generate(ctx, "audit", auditSystem, b.String())
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ParseError{Raw: text, Err: errors.New("empty rationale")}
	}
	return text, nil
}
