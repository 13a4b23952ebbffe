package planning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
	"github.com/shiroonigami23-ui/ecoroute/internal/orchestrator"
	"github.com/shiroonigami23-ui/ecoroute/internal/reasoning"
	"github.com/shiroonigami23-ui/ecoroute/internal/routegraph"
)

type PlanStore interface {
	GetShipment(ctx context.Context, id string) (contracts.Shipment, error)
	SaveRouteAlternatives(ctx context.Context, plan contracts.RoutePlan) (string, error)
}

type Advisor interface {
	AdvisePlan(ctx context.Context, req reasoning.PlanRequest) (reasoning.PlanAdvice, error)
}

type Config struct {
	AuditTopic       string
	DefaultCargoTons float64
}

type Stage struct {
	planner   *Planner
	table     []AvoidRule
	store     PlanStore
	advisor   Advisor
	publisher *orchestrator.Publisher
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewStage(planner *Planner, store PlanStore, advisor Advisor, publisher *orchestrator.Publisher, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Stage {
	if cfg.DefaultCargoTons <= 0 {
		cfg.DefaultCargoTons = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		planner:   planner,
		table:     AvoidanceTable(planner.Graph.Nodes()),
		store:     store,
		advisor:   advisor,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
}

func (s *Stage) Handle(ctx context.Context, msg *mq.Message) error {
	task, err := mq.ParseMessageJSON[contracts.PlanRouteTask](msg)
	if err != nil {
		return err
	}
	_, err = s.Plan(ctx, task)
	return err
}

func (s *Stage) Plan(ctx context.Context, task contracts.PlanRouteTask) (contracts.RoutePlan, error) {
	logger := s.logger.With("shipment_id", task.ShipmentID, "task_key", task.Key())

	shipment, err := s.store.GetShipment(ctx, task.ShipmentID)
	if err != nil {
		return contracts.RoutePlan{}, fmt.Errorf("load shipment: %w", err)
	}

	tons := shipment.CargoWeightTons
	if tons <= 0 {
		tons = s.cfg.DefaultCargoTons
	}

	avoid := DeriveAvoidance(s.table, task.Reason)
	cands, err := s.planner.Candidates(shipment.OriginPort, shipment.DestinationPort, avoid, tons)
	if err != nil {
		s.metrics.RouteQuery(routeOutcome(err))
		return contracts.RoutePlan{}, fmt.Errorf("standard route %s to %s: %w", shipment.OriginPort, shipment.DestinationPort, err)
	}
	s.metrics.RouteQuery("ok")

	plan := contracts.RoutePlan{
		ShipmentID: shipment.ID,
		Avoided:    cands.Avoided,
		Notes:      cands.Notes,
		CreatedAt:  time.Now().UTC(),
	}

	advice, err := s.advisor.AdvisePlan(ctx, reasoning.PlanRequest{
		Shipment: shipment,
		Reason:   task.Reason,
		Avoided:  cands.Avoided,
		Options:  cands.Options,
		Notes:    cands.Notes,
	})
	switch {
	case errors.Is(err, reasoning.ErrReasoningParse):
		logger.Warn("route advice unparseable, plan stored without options", "error", err)
		plan.RawOutput = rawOf(err, advice.Raw)
	case err != nil:
		if ctx.Err() != nil {
			return contracts.RoutePlan{}, ctx.Err()
		}
		logger.Warn("route advisor unavailable, using computed candidates", "error", err)
		plan.Options = cands.Options
		plan.Recommendation = cands.Options[0].RouteName
		plan.Notes = append(plan.Notes, "Advisor unavailable; recommendation is the standard route.")
	case len(advice.Options) == 0:
		logger.Warn("route advice had no options, plan stored without options")
		plan.RawOutput = rawOf(errNoAdvisedOptions, advice.Raw)
	default:
		plan.Options = mergeAdvice(cands.Options, advice.Options)
		plan.Recommendation = pickRecommendation(plan.Options, advice.Recommendation)
		if dropped := unknownRoutes(cands.Options, advice.Options); len(dropped) > 0 {
			logger.Warn("route advice named routes outside the graph candidates", "routes", dropped)
		}
	}

	id, err := s.store.SaveRouteAlternatives(ctx, plan)
	if err != nil {
		return contracts.RoutePlan{}, fmt.Errorf("save route plan: %w", err)
	}
	plan.ID = id

	if !plan.WellFormed() {
		logger.Warn("route plan has no options, audit not requested", "plan_id", id)
		return plan, nil
	}

	audit := contracts.CarbonAuditTask{
		TaskType:        contracts.TaskCarbonAudit,
		ShipmentID:      shipment.ID,
		PlanID:          id,
		CargoWeightTons: tons,
		RouteOptions:    plan.Options,
		Recommendation:  plan.Recommendation,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, s.cfg.AuditTopic, audit); err != nil {
		return plan, fmt.Errorf("publish audit task: %w", err)
	}

	logger.Info("route plan stored", "plan_id", id, "options", len(plan.Options),
		"recommendation", plan.Recommendation, "avoided", plan.Avoided)
	return plan, nil
}

var errNoAdvisedOptions = errors.New("route advice contained no options")

// mergeAdvice keeps the graph candidates as computed. Advice can only replace
// the risk analysis of a candidate it names.
func mergeAdvice(cands, advised []contracts.RouteOption) []contracts.RouteOption {
	out := slices.Clone(cands)
	for _, a := range advised {
		i := slices.IndexFunc(out, func(o contracts.RouteOption) bool { return o.RouteName == a.RouteName })
		if i >= 0 && strings.TrimSpace(a.RiskAnalysis) != "" {
			out[i].RiskAnalysis = a.RiskAnalysis
		}
	}
	return out
}

func unknownRoutes(cands, advised []contracts.RouteOption) []string {
	var out []string
	for _, a := range advised {
		if !slices.ContainsFunc(cands, func(o contracts.RouteOption) bool { return o.RouteName == a.RouteName }) {
			out = append(out, a.RouteName)
		}
	}
	return out
}

func pickRecommendation(options []contracts.RouteOption, proposed string) string {
	if len(options) == 0 {
		return ""
	}
	if slices.ContainsFunc(options, func(o contracts.RouteOption) bool { return o.RouteName == proposed }) {
		return proposed
	}
	return options[0].RouteName
}

func rawOf(err error, fallback string) string {
	var perr *reasoning.ParseError
	if errors.As(err, &perr) && perr.Raw != "" {
		return perr.Raw
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}

func routeOutcome(err error) string {
	switch {
	case errors.Is(err, routegraph.ErrUnknownPort):
		return "unknown_port"
	case errors.Is(err, routegraph.ErrNoPathFound):
		return "no_path"
	default:
		return "error"
	}
}
