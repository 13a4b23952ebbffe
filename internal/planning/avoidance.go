// Package planning re-plans shipment routes around reported disruptions.
package planning

import (
	"strings"

	"github.com/shiroonigami23-ui/ecoroute/internal/contracts"
)

// AvoidRule maps a disruption keyword to the graph node it takes out of service.
type AvoidRule struct {
	Keyword string
	Node    string
}

var chokepoints = []AvoidRule{
	{Keyword: "suez", Node: "Suez Canal"},
	{Keyword: "red sea", Node: "Suez Canal"},
	{Keyword: "bab-el-mandeb", Node: "Suez Canal"},
	{Keyword: "panama", Node: "Panama Canal"},
	{Keyword: "malacca", Node: "Malacca Strait"},
	{Keyword: "cape of good hope", Node: "Cape of Good Hope"},
	{Keyword: "strait of hormuz", Node: "Dubai"},
}

// AvoidanceTable returns the chokepoint rules followed by one rule per port,
// so that a disruption naming a port closes that port.
func AvoidanceTable(ports []string) []AvoidRule {
	table := append([]AvoidRule(nil), chokepoints...)
	for _, p := range ports {
		table = append(table, AvoidRule{Keyword: strings.ToLower(p), Node: p})
	}
	return table
}

// DeriveAvoidance matches the table against the disruption type, description
// and risk factors. Nodes come back in table order without duplicates.
func DeriveAvoidance(table []AvoidRule, reason contracts.DisruptionReason) []string {
	parts := []string{
		strings.ReplaceAll(reason.Disruption, "_", " "),
		reason.Description,
	}
	parts = append(parts, reason.RiskFactors...)
	text := strings.ToLower(strings.Join(parts, " | "))

	var nodes []string
	seen := make(map[string]bool)
	for _, rule := range table {
		if rule.Keyword == "" || seen[rule.Node] || !strings.Contains(text, rule.Keyword) {
			continue
		}
		seen[rule.Node] = true
		nodes = append(nodes, rule.Node)
	}
	return nodes
}
