package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/weather"
)

const factorWeatherUnavailable = "weather data unavailable"

// Recommended actions attached to a risk assessment.
const (
	ActionReroute  = "REROUTE"
	ActionMonitor  = "MONITOR"
	ActionContinue = "CONTINUE"
)

type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64, days int) (weather.Forecast, error)
}

// Rules is a deterministic Reasoner driven by the marine forecast at the
// vessel's position.
type Rules struct {
	Weather Forecaster
	Logger  *slog.Logger
}

func NewRules(forecaster Forecaster, logger *slog.Logger) *Rules {
	return &Rules{Weather: forecaster, Logger: logger}
}

func (r *Rules) AssessRisk(ctx context.Context, s contracts.Shipment) (RiskAssessment, error) {
	if r.Weather == nil {
		return RiskAssessment{Score: 0.1, Factors: []string{factorWeatherUnavailable}, RecommendedAction: ActionContinue}, nil
	}

	fc, err := r.Weather.Forecast(ctx, s.Latitude, s.Longitude, 3)
	if err != nil {
		if ctx.Err() != nil {
			return RiskAssessment{}, ctx.Err()
		}
		if r.Logger != nil {
			r.Logger.Warn("weather lookup failed", "shipment_id", s.ID, "error", err)
		}
		return RiskAssessment{
			Score:             0.1,
			Factors:           []string{factorWeatherUnavailable},
			RecommendedAction: ActionContinue,
			Reasoning:         "no forecast available, baseline risk assumed",
		}, nil
	}

	score := windScore(fc.MaxWindSpeedMS)
	var factors []string
	if fc.RiskLevel != weather.LevelLow {
		factors = append(factors, fmt.Sprintf("%s wind risk: %.1f m/s", fc.RiskLevel, fc.MaxWindSpeedMS))
	}
	if fc.MaxWaveHeightM >= 4 {
		factors = append(factors, fmt.Sprintf("Wave height %.1f m", fc.MaxWaveHeightM))
	}

	return RiskAssessment{
		Score:             score,
		Factors:           factors,
		RecommendedAction: actionFor(score),
		Reasoning:         fc.Summary,
	}, nil
}

func windScore(windMS float64) float64 {
	switch weather.Assess(windMS) {
	case weather.LevelCritical:
		return 0.95
	case weather.LevelHigh:
		return 0.8
	case weather.LevelMedium:
		return 0.5
	default:
		return 0.2
	}
}

func actionFor(score float64) string {
	switch {
	case score > 0.7:
		return ActionReroute
	case score > 0.4:
		return ActionMonitor
	default:
		return ActionContinue
	}
}

// AdvisePlan keeps the candidate options and prefers the constrained route,
// which is the one that actually steers around the disruption.
func (r *Rules) AdvisePlan(_ context.Context, req PlanRequest) (PlanAdvice, error) {
	options := append([]contracts.RouteOption(nil), req.Options...)
	if len(options) == 0 {
		return PlanAdvice{}, nil
	}

	recommended := options[0].RouteName
	for _, o := range options {
		if strings.HasPrefix(o.RouteName, "Constrained") {
			recommended = o.RouteName
			break
		}
	}
	return PlanAdvice{Options: options, Recommendation: recommended}, nil
}

func (r *Rules) ExplainAudit(_ context.Context, req AuditRequest) (string, error) {
	return DescribeAudit(req), nil
}

// DescribeAudit renders a rationale from the verdict without any model call.
func DescribeAudit(req AuditRequest) string {
	var b strings.Builder

	var chosen *contracts.OptionAssessment
	for i := range req.Assessments {
		if req.Assessments[i].RouteName == req.Recommended {
			chosen = &req.Assessments[i]
			break
		}
	}

	switch {
	case chosen == nil:
		b.WriteString("No route options were available to assess.")
	case req.Compliant:
		fmt.Fprintf(&b, "%s is the lowest-emission compliant option at %.0f kg CO2 (cap %.0f kg, sustainability %.1f/100).",
			chosen.RouteName, chosen.CarbonKg, req.CapKg, chosen.SustainabilityScore)
	default:
		fmt.Fprintf(&b, "No option meets the %.0f kg CO2 cap; %s has the lowest emissions at %.0f kg CO2.",
			req.CapKg, chosen.RouteName, chosen.CarbonKg)
	}

	compliant := 0
	for _, a := range req.Assessments {
		if a.Compliant {
			compliant++
		}
	}
	fmt.Fprintf(&b, " %d of %d options compliant.", compliant, len(req.Assessments))

	if len(req.Sources) > 0 {
		fmt.Fprintf(&b, " Compliance context: %s.", strings.Join(req.Sources, ", "))
	} else {
		b.WriteString(" No compliance context was retrieved.")
	}
	return b.String()
}
