package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/orchestrator"
)

type ScenarioResult struct {
	Plan   contracts.RoutePlan
	Report contracts.AuditReport
}

// RunScenario seeds the scenario shipment, injects a HIGH_RISK_DETECTED event
// for it and waits for the new route plan and then the audit report that
// references it.
func (rt *Runtime) RunScenario(ctx context.Context, timeout, poll time.Duration) (ScenarioResult, error) {
	shipment := ScenarioShipment()
	if err := rt.Store.UpsertShipment(ctx, shipment); err != nil {
		return ScenarioResult{}, fmt.Errorf("seed scenario shipment: %w", err)
	}

	plansBefore, err := rt.Store.RouteHistory(ctx, shipment.ID, 1)
	if err != nil {
		return ScenarioResult{}, err
	}

	event := contracts.HighRiskEvent{
		EventType:   contracts.EventHighRiskDetected,
		ShipmentID:  shipment.ID,
		RiskScore:   0.95,
		RiskFactors: []string{"Simulated Typhoon", "Port Closure"},
		DetectedAt:  time.Now().UTC(),
	}
	if err := rt.Publisher().Publish(ctx, rt.Config.QueueHighPriority, event); err != nil {
		return ScenarioResult{}, fmt.Errorf("inject high risk event: %w", err)
	}
	rt.Logger.Info("high risk event injected", "shipment_id", shipment.ID, "risk_score", event.RiskScore)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res ScenarioResult
	for {
		if res.Plan.ID == "" {
			plans, err := rt.Store.RouteHistory(ctx, shipment.ID, 1)
			if err == nil && len(plans) > 0 && (len(plansBefore) == 0 || plans[0].ID != plansBefore[0].ID) {
				res.Plan = plans[0]
				rt.Logger.Info("route planner produced alternatives", "plan_id", res.Plan.ID, "options", len(res.Plan.Options))
			}
		}
		if res.Plan.ID != "" {
			reports, err := rt.Store.AuditReports(ctx, shipment.ID, 10)
			if err == nil {
				for _, r := range reports {
					if r.PlanID == res.Plan.ID {
						res.Report = r
						rt.Logger.Info("carbon auditor produced report", "report_id", r.ID, "compliant", r.Compliant)
						return res, nil
					}
				}
			}
		}

		if !orchestrator.Sleep(ctx, poll) {
			if res.Plan.ID == "" {
				return res, fmt.Errorf("route planner timed out: %w", ctx.Err())
			}
			return res, fmt.Errorf("carbon auditor timed out: %w", ctx.Err())
		}
	}
}
