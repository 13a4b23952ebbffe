package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/emissions"
	"github.com/shiroonigami23-ui/ecoroute/internal/knowledge"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
	"github.com/shiroonigami23-ui/ecoroute/internal/reasoning"
)

// SourcePlan marks an assessment that reuses the planner's own figure because
// no estimate could be made.
const SourcePlan = "route_plan"

type ReportStore interface {
	SaveAuditReport(ctx context.Context, report contracts.AuditReport) (string, error)
}

type Explainer interface {
	ExplainAudit(ctx context.Context, req reasoning.AuditRequest) (string, error)
}

type Config struct {
	CapKg            float64
	Query            string
	TopK             int
	DefaultCargoTons float64
}

type Stage struct {
	estimator emissions.Estimator
	retriever knowledge.Retriever
	explainer Explainer
	store     ReportStore
	cfg       Config
	logger    *slog.Logger
}

// NewStage wires the audit stage. A nil retriever audits without compliance context.
func NewStage(estimator emissions.Estimator, retriever knowledge.Retriever, explainer Explainer, store ReportStore, cfg Config, logger *slog.Logger) *Stage {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.DefaultCargoTons <= 0 {
		cfg.DefaultCargoTons = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		estimator: estimator,
		retriever: retriever,
		explainer: explainer,
		store:     store,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle is the queue handler for CARBON_AUDIT tasks. A task that fails
// validation but names a shipment still leaves a non-compliant report behind.
func (s *Stage) Handle(ctx context.Context, msg *mq.Message) error {
	task, err := mq.ParseMessageJSON[contracts.CarbonAuditTask](msg)
	if err != nil {
		if task.ShipmentID != "" {
			s.saveRejected(ctx, task, msg, err)
		}
		return err
	}
	_, err = s.Audit(ctx, task)
	return err
}

// Audit assesses every option, builds the verdict and persists exactly one report.
func (s *Stage) Audit(ctx context.Context, task contracts.CarbonAuditTask) (contracts.AuditReport, error) {
	logger := s.logger.With("shipment_id", task.ShipmentID, "plan_id", task.PlanID)

	tons := task.CargoWeightTons
	if tons <= 0 {
		tons = s.cfg.DefaultCargoTons
	}

	assessments := make([]contracts.OptionAssessment, 0, len(task.RouteOptions))
	for _, o := range task.RouteOptions {
		a, err := s.assess(ctx, o, tons)
		if err != nil {
			if ctx.Err() != nil {
				return contracts.AuditReport{}, ctx.Err()
			}
			logger.Warn("emissions estimate failed, using plan figure", "route", o.RouteName, "error", err)
		}
		assessments = append(assessments, a)
	}
	verdict := Evaluate(assessments, s.cfg.CapKg)

	docs, retrievalErr := s.retrieve(ctx)
	if retrievalErr != nil {
		logger.Warn("compliance retrieval failed", "error", retrievalErr)
	}

	req := reasoning.AuditRequest{
		ShipmentID:  task.ShipmentID,
		Assessments: verdict.Assessments,
		Recommended: verdict.Recommended,
		Compliant:   verdict.Compliant,
		CapKg:       s.cfg.CapKg,
	}
	for _, d := range docs {
		req.Context = append(req.Context, d.Content)
		req.Sources = append(req.Sources, d.Source)
	}

	report := contracts.AuditReport{
		ShipmentID:       task.ShipmentID,
		PlanID:           task.PlanID,
		Compliant:        verdict.Compliant,
		RecommendedRoute: verdict.Recommended,
		Assessments:      verdict.Assessments,
		Sources:          req.Sources,
		CreatedAt:        time.Now().UTC(),
	}

	rationale, err := s.explain(ctx, req)
	switch {
	case err != nil:
		logger.Warn("audit rationale unavailable, using generated text", "error", err)
		report.Rationale = reasoning.DescribeAudit(req)
		report.RawOutput = rawOutput(err)
	case retrievalErr != nil:
		report.Rationale = rationale + " Compliance context could not be retrieved for this audit."
	default:
		report.Rationale = rationale
	}

	id, err := s.store.SaveAuditReport(ctx, report)
	if err != nil {
		return contracts.AuditReport{}, fmt.Errorf("save audit report: %w", err)
	}
	report.ID = id

	logger.Info("audit report stored", "report_id", id, "compliant", report.Compliant,
		"recommended_route", report.RecommendedRoute, "sources", len(report.Sources))
	return report, nil
}

func (s *Stage) assess(ctx context.Context, o contracts.RouteOption, tons float64) (contracts.OptionAssessment, error) {
	a := contracts.OptionAssessment{
		RouteName:  o.RouteName,
		DistanceKm: o.DistanceKm,
	}

	est, err := s.estimator.Estimate(ctx, o.DistanceKm, tons)
	if err != nil {
		a.CarbonKg = o.CarbonKg
		a.SustainabilityScore = emissions.SustainabilityScore(o.CarbonKg)
		a.EstimateSource = SourcePlan
		return a, err
	}
	a.CarbonKg = est.KgCO2
	a.SustainabilityScore = est.SustainabilityScore
	a.EstimateSource = est.Source
	return a, nil
}

func (s *Stage) retrieve(ctx context.Context) ([]knowledge.Document, error) {
	if s.retriever == nil {
		return nil, nil
	}
	return s.retriever.Query(ctx, s.cfg.Query, s.cfg.TopK)
}

func (s *Stage) explain(ctx context.Context, req reasoning.AuditRequest) (string, error) {
	if s.explainer == nil {
		return reasoning.DescribeAudit(req), nil
	}
	return s.explainer.ExplainAudit(ctx, req)
}

func (s *Stage) saveRejected(ctx context.Context, task contracts.CarbonAuditTask, msg *mq.Message, cause error) {
	report := contracts.AuditReport{
		ShipmentID: task.ShipmentID,
		PlanID:     task.PlanID,
		Rationale:  "Audit task was rejected before assessment; no verdict could be reached.",
		RawOutput:  fmt.Sprintf("%v\n%s", cause, msg.Body),
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.store.SaveAuditReport(ctx, report); err != nil {
		s.logger.Error("save rejected audit report", "shipment_id", task.ShipmentID, "error", err)
	}
}

func rawOutput(err error) string {
	var perr *reasoning.ParseError
	if errors.As(err, &perr) && perr.Raw != "" {
		return perr.Raw
	}
	return "rationale unavailable: " + err.Error()
}
