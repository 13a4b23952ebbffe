package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/mq"
)

const highRiskType = "HIGH_RISK"

type DisruptionLog interface {
	LogDisruption(ctx context.Context, event contracts.DisruptionEvent) (string, error)
}

type Router struct {
	Disruptions DisruptionLog
	Publisher   *Publisher
	PlanTopic   string
	Threshold   float64
	Logger      *slog.Logger
}

func (r *Router) Handle(ctx context.Context, msg *mq.Message) error {
	env, err := mq.PeekEnvelope(msg)
	if err != nil {
		return err
	}

	switch env.EventType {
	case contracts.EventHighRiskDetected:
		ev, err := mq.ParseMessageJSON[contracts.HighRiskEvent](msg)
		if err != nil {
			return err
		}
		return r.onHighRisk(ctx, ev)
	case contracts.EventDisruptionDetected:
		notice, err := mq.ParseMessageJSON[contracts.DisruptionNotice](msg)
		if err != nil {
			return err
		}
		if notice.Disruption.EventType == "" {
			return fmt.Errorf("%w: disruption without event_type", mq.ErrMalformed)
		}
		return r.onDisruption(ctx, notice.Disruption)
	case contracts.EventWeatherAlert:
		r.Logger.Info("weather alert received", "shipment_id", env.ShipmentID)
		return nil
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrSkipped, env.Kind())
	}
}

func (r *Router) onHighRisk(ctx context.Context, ev contracts.HighRiskEvent) error {
	if ev.DetectedAt.IsZero() {
		ev.DetectedAt = time.Now().UTC()
	}

	disruption := contracts.DisruptionEvent{
		EventType:         DisruptionType(ev.RiskFactors),
		Severity:          Severity(ev.RiskScore),
		Description:       strings.Join(ev.RiskFactors, "; "),
		AffectedShipments: []string{ev.ShipmentID},
		DataSource:        "risk-engine",
		DetectedAt:        ev.DetectedAt,
	}
	if _, err := r.Disruptions.LogDisruption(ctx, disruption); err != nil {
		r.Logger.Warn("log disruption failed", "shipment_id", ev.ShipmentID, "error", err)
	}

	if ev.RiskScore <= r.Threshold {
		return fmt.Errorf("%w: score %.2f not above threshold %.2f", ErrSkipped, ev.RiskScore, r.Threshold)
	}

	task := contracts.PlanRouteTask{
		TaskType:   contracts.TaskPlanNewRoute,
		ShipmentID: ev.ShipmentID,
		Reason: contracts.DisruptionReason{
			EventType:   ev.EventType,
			Disruption:  disruption.EventType,
			Description: disruption.Description,
			RiskScore:   ev.RiskScore,
			RiskFactors: ev.RiskFactors,
			DetectedAt:  ev.DetectedAt,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := r.Publisher.Publish(ctx, r.PlanTopic, task); err != nil {
		return fmt.Errorf("publish plan task for %s: %w", ev.ShipmentID, err)
	}

	r.Logger.Info("route planning requested", "shipment_id", ev.ShipmentID, "task_key", task.Key(), "risk_score", ev.RiskScore)
	return nil
}

func (r *Router) onDisruption(ctx context.Context, d contracts.DisruptionEvent) error {
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now().UTC()
	}
	if _, err := r.Disruptions.LogDisruption(ctx, d); err != nil {
		r.Logger.Warn("log disruption failed", "disruption_type", d.EventType, "error", err)
	}

	var errs []error
	for _, id := range d.AffectedShipments {
		task := contracts.PlanRouteTask{
			TaskType:   contracts.TaskPlanNewRoute,
			ShipmentID: id,
			Reason: contracts.DisruptionReason{
				EventType:   contracts.EventDisruptionDetected,
				Disruption:  d.EventType,
				Description: d.Description,
				DetectedAt:  d.DetectedAt,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := r.Publisher.Publish(ctx, r.PlanTopic, task); err != nil {
			errs = append(errs, fmt.Errorf("publish plan task for %s: %w", id, err))
			continue
		}
		r.Logger.Info("route planning requested", "shipment_id", id, "task_key", task.Key())
	}
	return errors.Join(errs...)
}

// DisruptionType names a disruption after its leading risk factor.
func DisruptionType(factors []string) string {
	for _, f := range factors {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		return strings.ToUpper(strings.Join(strings.Fields(f), "_"))
	}
	return highRiskType
}

func Severity(score float64) string {
	switch {
	case score >= 0.9:
		return "CRITICAL"
	case score >= 0.8:
		return "HIGH"
	default:
		return "MEDIUM"
	}
}
