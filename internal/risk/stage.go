// Package risk periodically scores in-transit shipments and raises
// HIGH_RISK_DETECTED events for those crossing the threshold.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
	"github.com/shiroonigami23-ui/ecoroute/internal/orchestrator"
	"github.com/shiroonigami23-ui/ecoroute/internal/reasoning"
)

const stageName = "risk-engine"

type ShipmentStore interface {
	ActiveShipments(ctx context.Context) ([]contracts.Shipment, error)
	UpdateShipmentRisk(ctx context.Context, id string, score float64, factors []string, status contracts.ShipmentStatus) error
}

type Assessor interface {
	AssessRisk(ctx context.Context, shipment contracts.Shipment) (reasoning.RiskAssessment, error)
}

type Config struct {
	Threshold     float64
	Topic         string
	ShipmentDelay time.Duration
	CycleDelay    time.Duration
	EmptyDelay    time.Duration
}

type Stage struct {
	store     ShipmentStore
	assessor  Assessor
	publisher *orchestrator.Publisher
	cfg       Config
	limiter   *rate.Limiter
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type ScanResult struct {
	Active int
	Scored int
	Raised int
}

func NewStage(store ShipmentStore, assessor Assessor, publisher *orchestrator.Publisher, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Stage {
	limit := rate.Inf
	if cfg.ShipmentDelay > 0 {
		limit = rate.Every(cfg.ShipmentDelay)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		store:     store,
		assessor:  assessor,
		publisher: publisher,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		metrics:   m,
	}
}

// Classify is AT_RISK only when score is strictly above threshold.
func Classify(score, threshold float64) contracts.ShipmentStatus {
	if score > threshold {
		return contracts.StatusAtRisk
	}
	return contracts.StatusOnTrack
}

func (s *Stage) Run(ctx context.Context) error {
	s.logger.Info("risk scan started", "threshold", s.cfg.Threshold, "cycle_delay", s.cfg.CycleDelay)

	for ctx.Err() == nil {
		res, err := s.ScanOnce(ctx)
		switch {
		case ctx.Err() != nil:
		case err != nil:
			s.logger.Error("risk scan failed", "error", err)
			orchestrator.Sleep(ctx, s.cfg.CycleDelay)
		case res.Active == 0:
			s.logger.Info("no active shipments", "retry_in", s.cfg.EmptyDelay)
			orchestrator.Sleep(ctx, s.cfg.EmptyDelay)
		default:
			s.logger.Info("risk scan complete", "active", res.Active, "scored", res.Scored, "raised", res.Raised)
			orchestrator.Sleep(ctx, s.cfg.CycleDelay)
		}
	}

	s.logger.Info("risk scan stopped")
	return nil
}

// ScanOnce runs one sweep over the active shipments. Only a failure to list
// shipments is returned; per-shipment failures are logged and skipped.
func (s *Stage) ScanOnce(ctx context.Context) (ScanResult, error) {
	shipments, err := s.store.ActiveShipments(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("fetch active shipments: %w", err)
	}

	var res ScanResult
	for _, sh := range shipments {
		if sh.Status != contracts.StatusOnTrack && sh.Status != contracts.StatusAtRisk {
			continue
		}
		res.Active++

		if err := s.limiter.Wait(ctx); err != nil {
			return res, nil
		}

		raised, ok := s.scoreOne(ctx, sh)
		if ok {
			res.Scored++
		}
		if raised {
			res.Raised++
		}
	}
	return res, nil
}

func (s *Stage) scoreOne(ctx context.Context, sh contracts.Shipment) (raised, ok bool) {
	start := time.Now()
	logger := s.logger.With("shipment_id", sh.ID)

	assessment, err := s.assessor.AssessRisk(ctx, sh)
	if err != nil {
		logger.Warn("risk assessment failed", "error", err)
		s.metrics.ObserveTask(stageName, metrics.OutcomeFailed, time.Since(start))
		return false, false
	}

	score := clamp(assessment.Score)
	status := Classify(score, s.cfg.Threshold)
	s.metrics.RiskScore(score)

	if err := s.store.UpdateShipmentRisk(ctx, sh.ID, score, assessment.Factors, status); err != nil {
		logger.Error("persist risk score failed", "error", err)
		s.metrics.ObserveTask(stageName, metrics.OutcomeFailed, time.Since(start))
		return false, false
	}
	logger.Debug("shipment scored", "risk_score", score, "status", status)

	if status == contracts.StatusAtRisk {
		event := contracts.HighRiskEvent{
			EventType:   contracts.EventHighRiskDetected,
			ShipmentID:  sh.ID,
			RiskScore:   score,
			RiskFactors: assessment.Factors,
			DetectedAt:  time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, s.cfg.Topic, event); err != nil {
			logger.Error("publish high-risk event failed", "error", err)
		} else {
			raised = true
			logger.Warn("high risk detected", "risk_score", score, "risk_factors", assessment.Factors)
		}
	}

	s.metrics.ObserveTask(stageName, metrics.OutcomeOK, time.Since(start))
	return raised, true
}

func clamp(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(1, score))
}
