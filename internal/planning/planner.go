package planning

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/emissions"
	"github.com/shiroonigami23-ui/ecoroute/internal/routegraph"
)

const (
	StandardRoute    = "Standard Route"
	ConstrainedRoute = "Constrained Route"
)

// DefaultHubs are tried in order for the alternative-hub option.
var DefaultHubs = []string{"Cape of Good Hope", "Panama Canal"}

type Planner struct {
	Graph    *routegraph.Graph
	Model    emissions.Model
	SpeedKmh float64
	Hubs     []string
}

type Candidates struct {
	Options []contracts.RouteOption
	Avoided []string
	Notes   []string
}

// Candidates returns the standard route, the constrained route when avoidance
// changes it, and one alternative-hub route. It fails only when the standard
// route itself cannot be computed.
func (p *Planner) Candidates(origin, destination string, avoid []string, tons float64) (Candidates, error) {
	standard, err := p.Graph.FindRoute(origin, destination, nil)
	if err != nil {
		return Candidates{}, err
	}

	var out Candidates
	for _, node := range avoid {
		if node == origin || node == destination {
			out.Notes = append(out.Notes, fmt.Sprintf("%s is an endpoint of the voyage and cannot be avoided", node))
			continue
		}
		if p.Graph.Has(node) {
			out.Avoided = append(out.Avoided, node)
		}
	}

	exposed := intersect(standard.Path, out.Avoided)
	standardNote := "Shortest path; not exposed to the reported disruption."
	if len(exposed) > 0 {
		standardNote = fmt.Sprintf("Shortest path; exposed to disruption at %s.", strings.Join(exposed, ", "))
	}
	out.Options = append(out.Options, p.option(StandardRoute, standard, tons, standardNote))

	var constrained *routegraph.Route
	if len(out.Avoided) > 0 {
		r, err := p.Graph.FindRoute(origin, destination, out.Avoided)
		switch {
		case errors.Is(err, routegraph.ErrNoPathFound):
			out.Notes = append(out.Notes, fmt.Sprintf("No route from %s to %s avoids %s.", origin, destination, strings.Join(out.Avoided, ", ")))
		case err != nil:
			return Candidates{}, err
		case !slices.Equal(r.Path, standard.Path):
			constrained = &r
			out.Options = append(out.Options, p.option(ConstrainedRoute, r, tons,
				fmt.Sprintf("Avoids %s; %s versus standard.", strings.Join(out.Avoided, ", "), delta(r.DistanceKm, standard.DistanceKm))))
		}
	}

	if hub, r, ok := p.viaHub(origin, destination, standard, constrained, out.Avoided); ok {
		out.Options = append(out.Options, p.option("Via "+hub, r, tons,
			fmt.Sprintf("Routes via %s; %s versus standard.", hub, delta(r.DistanceKm, standard.DistanceKm))))
	}

	return out, nil
}

func (p *Planner) viaHub(origin, destination string, standard routegraph.Route, constrained *routegraph.Route, avoided []string) (string, routegraph.Route, bool) {
	hubs := p.Hubs
	if hubs == nil {
		hubs = DefaultHubs
	}

	for _, hub := range hubs {
		if !p.Graph.Has(hub) || hub == origin || hub == destination ||
			slices.Contains(avoided, hub) || slices.Contains(standard.Path, hub) {
			continue
		}

		first, err := p.Graph.FindRoute(origin, hub, avoided)
		if err != nil {
			continue
		}
		second, err := p.Graph.FindRoute(hub, destination, avoided)
		if err != nil {
			continue
		}

		path := append(append([]string(nil), first.Path...), second.Path[1:]...)
		if hasRepeats(path) {
			continue
		}
		if constrained != nil && slices.Equal(path, constrained.Path) {
			continue
		}
		return hub, routegraph.Route{Path: path, DistanceKm: first.DistanceKm + second.DistanceKm, Avoided: avoided}, true
	}
	return "", routegraph.Route{}, false
}

func (p *Planner) option(name string, r routegraph.Route, tons float64, analysis string) contracts.RouteOption {
	carbon := p.Model.EmissionsKg(r.DistanceKm, tons)
	return contracts.RouteOption{
		RouteName:           name,
		Path:                r.Path,
		DistanceKm:          r.DistanceKm,
		EstimatedDays:       round1(routegraph.TransitDays(r.DistanceKm, p.SpeedKmh)),
		CarbonKg:            carbon,
		SustainabilityScore: emissions.SustainabilityScore(carbon),
		RiskAnalysis:        analysis,
	}
}

func intersect(path, nodes []string) []string {
	var out []string
	for _, n := range nodes {
		if slices.Contains(path, n) {
			out = append(out, n)
		}
	}
	return out
}

func hasRepeats(path []string) bool {
	seen := make(map[string]bool, len(path))
	for _, n := range path {
		if seen[n] {
			return true
		}
		seen[n] = true
	}
	return false
}

func delta(km, baseline float64) string {
	d := km - baseline
	if d >= 0 {
		return fmt.Sprintf("+%.0f km", d)
	}
	return fmt.Sprintf("%.0f km", d)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
