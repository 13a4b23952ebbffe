// Package emissions estimates voyage CO2 and scores it for sustainability.
package emissions

import (
	"context"
	"math"
)

const (
	// DefaultFactor is kg CO2 per ton-km for a container vessel.
	DefaultFactor = 0.015
	// ScoreBaselineKg is the emission level that scores zero.
	ScoreBaselineKg = 100000.0

	SourceModel           = "model"
	SourceCarbonInterface = "carbon_interface"
)

type Estimate struct {
	KgCO2               float64 `json:"total_emissions_kg_co2"`
	PerTonKm            float64 `json:"per_ton_km"`
	SustainabilityScore float64 `json:"sustainability_score"`
	Source              string  `json:"source"`
}

type Estimator interface {
	Estimate(ctx context.Context, distanceKm, cargoWeightTons float64) (Estimate, error)
}

type Model struct {
	Factor float64
}

func NewModel(factor float64) Model {
	if factor <= 0 {
		factor = DefaultFactor
	}
	return Model{Factor: factor}
}

func (m Model) factor() float64 {
	if m.Factor <= 0 {
		return DefaultFactor
	}
	return m.Factor
}

func (m Model) EmissionsKg(distanceKm, cargoWeightTons float64) float64 {
	return distanceKm * cargoWeightTons * m.factor()
}

func (m Model) Estimate(_ context.Context, distanceKm, cargoWeightTons float64) (Estimate, error) {
	return newEstimate(m.EmissionsKg(distanceKm, cargoWeightTons), distanceKm, cargoWeightTons, SourceModel), nil
}

// SustainabilityScore maps emissions onto 0..100, higher is cleaner.
func SustainabilityScore(kgCO2 float64) float64 {
	penalty := math.Min(100, (kgCO2/ScoreBaselineKg)*100)
	return math.Max(0, math.Min(100, 100-penalty))
}

func newEstimate(kg, distanceKm, tons float64, source string) Estimate {
	perTonKm := 0.0
	if distanceKm*tons > 0 {
		perTonKm = kg / (distanceKm * tons)
	}
	return Estimate{
		KgCO2:               kg,
		PerTonKm:            perTonKm,
		SustainabilityScore: SustainabilityScore(kg),
		Source:              source,
	}
}
