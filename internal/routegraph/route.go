package routegraph

import (
	"container/heap"
	"fmt"
	"math"
)

// DefaultSpeedKmh is the average speed over ground used for transit estimates,
// port calls included (720 km per day).
const DefaultSpeedKmh = 30.0

type Route struct {
	Path       []string `json:"route"`
	DistanceKm float64  `json:"total_distance_km"`
	// Avoided lists the requested avoidance names that exist in the graph.
	Avoided []string `json:"avoided,omitempty"`
}

// FindRoute returns the minimum-distance path from origin to destination that
// visits none of the avoided ports. Avoidance names not present in the graph
// are ignored.
func (g *Graph) FindRoute(origin, destination string, avoid []string) (Route, error) {
	src, ok := g.index[origin]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownPort, origin)
	}
	dst, ok := g.index[destination]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrUnknownPort, destination)
	}

	removed := make(map[int]bool, len(avoid))
	var avoided []string
	for _, name := range avoid {
		i, known := g.index[name]
		if !known || removed[i] {
			continue
		}
		removed[i] = true
		avoided = append(avoided, name)
	}

	if removed[src] || removed[dst] {
		return Route{}, fmt.Errorf("%w: %s to %s avoiding %v", ErrNoPathFound, origin, destination, avoided)
	}
	if src == dst {
		return Route{Path: []string{origin}, DistanceKm: 0, Avoided: avoided}, nil
	}

	adj := g.adj
	if len(removed) > 0 {
		adj = g.without(removed)
	}

	path, dist, found := shortestPath(adj, src, dst)
	if !found {
		if len(avoided) > 0 {
			return Route{}, fmt.Errorf("%w: %s to %s avoiding %v", ErrNoPathFound, origin, destination, avoided)
		}
		return Route{}, fmt.Errorf("%w: %s to %s", ErrNoPathFound, origin, destination)
	}

	names := make([]string, len(path))
	for i, n := range path {
		names[i] = g.ports[n].Name
	}
	return Route{Path: names, DistanceKm: dist, Avoided: avoided}, nil
}

func TransitDays(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return distanceKm / (speedKmh * 24)
}

func shortestPath(adj []map[int]float64, src, dst int) ([]int, float64, bool) {
	dist := make([]float64, len(adj))
	prev := make([]int, len(adj))
	done := make([]bool, len(adj))
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[src] = 0

	pq := &frontier{{node: src, dist: 0}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(item)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		if cur.node == dst {
			break
		}
		for next, km := range adj[cur.node] {
			if done[next] {
				continue
			}
			if d := cur.dist + km; d < dist[next] {
				dist[next] = d
				prev[next] = cur.node
				heap.Push(pq, item{node: next, dist: d})
			}
		}
	}

	if math.IsInf(dist[dst], 1) {
		return nil, 0, false
	}

	var path []int
	for n := dst; n != -1; n = prev[n] {
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[dst], true
}

type item struct {
	node int
	dist float64
}

// frontier is a min-heap on distance; equal distances pop in table order.
type frontier []item

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].dist != f[j].dist {
		return f[i].dist < f[j].dist
	}
	return f[i].node < f[j].node
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)   { *f = append(*f, x.(item)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	it := old[n-1]
	*f = old[:n-1]
	return it
}
