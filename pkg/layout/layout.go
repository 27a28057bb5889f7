// Package layout computes node positions for the network view.
//
// The AOP network reads left to right as a causal chain, so nodes are placed
// in category tiers (chemical, MIE, KE, AO) with organ and gene nodes in
// side bands. Within the KE tier, nodes follow the topological order of the
// visible subgraph so upstream events appear before downstream ones.
package layout

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/aopview/pkg/model"
)

// Tier indexes for the category bands, top to bottom.
const (
	TierChemical = iota
	TierMIE
	TierKE
	TierAO
	TierOrgan
	TierGene
)

// Position is a node's grid coordinate: Y is the tier, X the column.
type Position struct {
	X float64
	Y float64
}

// Layout maps node ids to positions.
type Layout struct {
	Positions map[string]Position
	// Columns is the widest tier's column count, for scaling.
	Columns int
	// Tiers is the number of occupied tiers.
	Tiers int
}

// Stats summarizes the structure of an element set.
type Stats struct {
	Nodes     int
	Edges     int
	Density   float64
	InDegree  map[string]int
	OutDegree map[string]int
}

// TierFor returns the layout tier for a node.
func TierFor(el model.Element) int {
	switch {
	case el.HasCategory(model.CategoryChemical):
		return TierChemical
	case el.HasCategory(model.CategoryMIE):
		return TierMIE
	case el.HasCategory(model.CategoryAO):
		return TierAO
	case el.HasCategory(model.CategoryOrgan):
		return TierOrgan
	case el.IsGene():
		return TierGene
	default:
		return TierKE
	}
}

// Compute lays out the node elements of els. Edge elements contribute
// ordering constraints only. Elements the caller filtered out (hidden ones)
// simply get no position.
func Compute(els []model.Element) Layout {
	ids := make([]string, 0, len(els))
	index := make(map[string]int64)
	byID := make(map[string]model.Element)
	for _, el := range els {
		if !el.IsNode() {
			continue
		}
		if _, ok := index[el.ID()]; ok {
			continue
		}
		index[el.ID()] = int64(len(ids))
		ids = append(ids, el.ID())
		byID[el.ID()] = el
	}

	g := simple.NewDirectedGraph()
	for _, id := range ids {
		g.AddNode(simple.Node(index[id]))
	}
	for _, el := range els {
		if !el.IsEdge() {
			continue
		}
		from, okF := index[el.Data.Source]
		to, okT := index[el.Data.Target]
		if !okF || !okT || from == to {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
	}

	// Topological rank for in-tier ordering; cyclic graphs (feedback loops
	// exist in some pathways) fall back to insertion order.
	rank := make(map[string]int, len(ids))
	if sorted, err := topo.SortStabilized(g, nil); err == nil {
		for i, n := range sorted {
			rank[ids[n.ID()]] = i
		}
	} else {
		for i, id := range ids {
			rank[id] = i
		}
	}

	tiers := make(map[int][]string)
	for _, id := range ids {
		t := TierFor(byID[id])
		tiers[t] = append(tiers[t], id)
	}

	out := Layout{Positions: make(map[string]Position, len(ids))}
	for t, members := range tiers {
		sort.Slice(members, func(i, j int) bool {
			ri, rj := rank[members[i]], rank[members[j]]
			if ri != rj {
				return ri < rj
			}
			return members[i] < members[j]
		})
		for col, id := range members {
			out.Positions[id] = Position{X: float64(col), Y: float64(t)}
		}
		if len(members) > out.Columns {
			out.Columns = len(members)
		}
	}
	out.Tiers = len(tiers)
	return out
}

// ComputeStats returns degree and density figures for the element set.
func ComputeStats(els []model.Element) Stats {
	stats := Stats{
		InDegree:  make(map[string]int),
		OutDegree: make(map[string]int),
	}
	nodes := make(map[string]bool)
	for _, el := range els {
		if el.IsNode() {
			nodes[el.ID()] = true
			stats.Nodes++
		}
	}
	for _, el := range els {
		if !el.IsEdge() {
			continue
		}
		if !nodes[el.Data.Source] || !nodes[el.Data.Target] {
			continue
		}
		stats.Edges++
		stats.OutDegree[el.Data.Source]++
		stats.InDegree[el.Data.Target]++
	}
	if stats.Nodes > 1 {
		stats.Density = float64(stats.Edges) / float64(stats.Nodes*(stats.Nodes-1))
	}
	return stats
}
