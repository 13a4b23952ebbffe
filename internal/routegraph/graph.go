// Package routegraph holds the static maritime network of ports, canals and
// straits and answers shortest-path queries over it.
//
// A Graph is immutable once built. Queries that exclude nodes work on a
// private copy, so one Graph can serve any number of goroutines.
package routegraph

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownPort = errors.New("unknown port")
	ErrNoPathFound = errors.New("no path found")
)

//go:embed ports.yaml
var defaultTable []byte

type Port struct {
	Name string  `yaml:"name" json:"name"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lon  float64 `yaml:"lon" json:"lon"`
}

type Edge struct {
	From string  `yaml:"from" json:"from"`
	To   string  `yaml:"to" json:"to"`
	Km   float64 `yaml:"km" json:"km"`
}

type Table struct {
	Ports []Port `yaml:"ports"`
	Edges []Edge `yaml:"edges"`
}

type Graph struct {
	ports []Port
	index map[string]int
	adj   []map[int]float64
}

// New builds a graph from a port table. Duplicate edges keep the shortest distance.
func New(t Table) (*Graph, error) {
	g := &Graph{
		ports: make([]Port, 0, len(t.Ports)),
		index: make(map[string]int, len(t.Ports)),
	}
	for _, p := range t.Ports {
		if p.Name == "" {
			return nil, errors.New("port with empty name")
		}
		if _, dup := g.index[p.Name]; dup {
			return nil, fmt.Errorf("duplicate port %q", p.Name)
		}
		g.index[p.Name] = len(g.ports)
		g.ports = append(g.ports, p)
		g.adj = append(g.adj, make(map[int]float64))
	}

	for _, e := range t.Edges {
		u, ok := g.index[e.From]
		if !ok {
			return nil, fmt.Errorf("edge %s-%s: %w: %s", e.From, e.To, ErrUnknownPort, e.From)
		}
		v, ok := g.index[e.To]
		if !ok {
			return nil, fmt.Errorf("edge %s-%s: %w: %s", e.From, e.To, ErrUnknownPort, e.To)
		}
		if e.Km < 0 {
			return nil, fmt.Errorf("edge %s-%s: negative distance %.1f", e.From, e.To, e.Km)
		}
		if u == v {
			continue
		}
		if cur, exists := g.adj[u][v]; exists && cur <= e.Km {
			continue
		}
		g.adj[u][v] = e.Km
		g.adj[v][u] = e.Km
	}

	return g, nil
}

func Default() (*Graph, error) {
	return Parse(defaultTable)
}

func Load(path string) (*Graph, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read port table: %w", err)
	}
	return Parse(body)
}

func Parse(body []byte) (*Graph, error) {
	var t Table
	if err := yaml.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode port table: %w", err)
	}
	return New(t)
}

func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Nodes returns port names in table order.
func (g *Graph) Nodes() []string {
	names := make([]string, len(g.ports))
	for i, p := range g.ports {
		names[i] = p.Name
	}
	return names
}

func (g *Graph) Ports() []Port {
	out := make([]Port, len(g.ports))
	copy(out, g.ports)
	return out
}

func (g *Graph) Coordinates(name string) (lat, lon float64, ok bool) {
	i, found := g.index[name]
	if !found {
		return 0, 0, false
	}
	return g.ports[i].Lat, g.ports[i].Lon, true
}

func (g *Graph) Neighbors(name string) map[string]float64 {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(g.adj[i]))
	for j, km := range g.adj[i] {
		out[g.ports[j].Name] = km
	}
	return out
}

// without returns a copy of the adjacency with the given nodes and their
// incident edges removed. The receiver is left untouched.
func (g *Graph) without(removed map[int]bool) []map[int]float64 {
	adj := make([]map[int]float64, len(g.adj))
	for u, edges := range g.adj {
		if removed[u] {
			adj[u] = map[int]float64{}
			continue
		}
		cp := make(map[int]float64, len(edges))
		for v, km := range edges {
			if !removed[v] {
				cp[v] = km
			}
		}
		adj[u] = cp
	}
	return adj
}
