package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
	"github.com/shiroonigami23-ui/ecoroute/internal/knowledge"
	"github.com/shiroonigami23-ui/ecoroute/internal/routegraph"
)

var (
	vesselPrefixes = []string{"MSC", "Maersk", "CMA CGM", "Hapag-Lloyd", "Evergreen", "ONE", "COSCO", "Hyundai"}
	vesselNames    = []string{"Pearl", "Diamond", "Titan", "Spirit", "Hope", "Glory", "Star", "Ocean", "Blue", "Green"}
)

// GenerateShipments places n vessels somewhere between two distinct ports of
// the graph. About one in five starts out at risk.
func GenerateShipments(graph *routegraph.Graph, n int, rng *rand.Rand) []contracts.Shipment {
	ports := graph.Ports()
	if len(ports) < 2 {
		return nil
	}

	out := make([]contracts.Shipment, 0, n)
	for range n {
		origin := ports[rng.IntN(len(ports))]
		dest := ports[rng.IntN(len(ports))]
		for dest.Name == origin.Name {
			dest = ports[rng.IntN(len(ports))]
		}

		progress := rng.Float64()
		s := contracts.Shipment{
			ID:              uuid.NewString(),
			VesselName:      fmt.Sprintf("%s %s %d", vesselPrefixes[rng.IntN(len(vesselPrefixes))], vesselNames[rng.IntN(len(vesselNames))], 100+rng.IntN(900)),
			Latitude:        origin.Lat + (dest.Lat-origin.Lat)*progress + rng.Float64()*2 - 1,
			Longitude:       origin.Lon + (dest.Lon-origin.Lon)*progress + rng.Float64()*2 - 1,
			OriginPort:      origin.Name,
			DestinationPort: dest.Name,
			ETA:             time.Now().UTC().Add(5 * 24 * time.Hour),
			CargoWeightTons: float64(500 + rng.IntN(4500)),
			Status:          contracts.StatusOnTrack,
		}
		if rng.Float64() < 0.2 {
			s.Status = contracts.StatusAtRisk
			s.RiskScore = 0.7 + rng.Float64()*0.25
		}
		out = append(out, s)
	}
	return out
}

func ScenarioShipment() contracts.Shipment {
	return contracts.Shipment{
		ID:              "e2e-test-shipment",
		VesselName:      "Simulated Vessel",
		OriginPort:      "Shanghai",
		DestinationPort: "Rotterdam",
		Status:          contracts.StatusOnTrack,
	}
}

// Seed stores the scenario shipment, n generated shipments and the compliance corpus.
func (rt *Runtime) Seed(ctx context.Context, n int) error {
	graph, err := rt.Graph()
	if err != nil {
		return fmt.Errorf("load port graph: %w", err)
	}

	shipments := append([]contracts.Shipment{ScenarioShipment()},
		GenerateShipments(graph, n, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))...)
	for _, s := range shipments {
		if err := rt.Store.UpsertShipment(ctx, s); err != nil {
			return fmt.Errorf("seed shipment %s: %w", s.ID, err)
		}
	}

	if err := knowledge.Seed(ctx, rt.Knowledge(), knowledge.ComplianceCorpus); err != nil {
		return fmt.Errorf("seed knowledge base: %w", err)
	}

	rt.Logger.Info("seed complete", "shipments", len(shipments), "documents", len(knowledge.ComplianceCorpus))
	return nil
}
