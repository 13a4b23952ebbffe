// Package audit checks re-planned routes against the emissions cap and
// records a compliance verdict for every audit task.
package audit

import "github.com/shiroonigami23-ui/ecoroute/internal/contracts"

type Verdict struct {
	Compliant   bool
	Recommended string
	Assessments []contracts.OptionAssessment
}

// Evaluate marks each option compliant iff its emissions are within capKg and
// recommends the lowest-emission compliant option. When nothing is compliant
// the lowest-emission option overall is recommended with Compliant false.
// Ties keep input order.
func Evaluate(options []contracts.OptionAssessment, capKg float64) Verdict {
	out := Verdict{Assessments: make([]contracts.OptionAssessment, len(options))}

	best, bestCompliant := -1, -1
	for i, o := range options {
		o.Compliant = o.CarbonKg <= capKg
		out.Assessments[i] = o

		if best < 0 || o.CarbonKg < options[best].CarbonKg {
			best = i
		}
		if o.Compliant && (bestCompliant < 0 || o.CarbonKg < options[bestCompliant].CarbonKg) {
			bestCompliant = i
		}
	}

	switch {
	case bestCompliant >= 0:
		out.Compliant = true
		out.Recommended = out.Assessments[bestCompliant].RouteName
	case best >= 0:
		out.Recommended = out.Assessments[best].RouteName
	}
	return out
}
