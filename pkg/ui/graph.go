package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/aopview/pkg/layout"
	"github.com/vanderheijden86/aopview/pkg/model"
)

var tierLabels = map[int]string{
	layout.TierChemical: "chemicals",
	layout.TierMIE:      "molecular initiating events",
	layout.TierKE:       "key events",
	layout.TierAO:       "adverse outcomes",
	layout.TierOrgan:    "organs",
	layout.TierGene:     "genes",
}

// RenderGraphPane renders the visible network as tier bands, one band per
// category, nodes ordered by the causal flow of the visible subgraph.
// labelWidth caps each node label; it tracks the +/- label size keys.
func RenderGraphPane(t Theme, els []model.Element, width, labelWidth int) string {
	if labelWidth <= 0 {
		labelWidth = 32
	}
	nodes := make(map[string]model.Element)
	for _, el := range els {
		if el.IsNode() {
			nodes[el.ID()] = el
		}
	}
	if len(nodes) == 0 {
		return t.MutedText.Italic(true).Render("nothing visible, toggle a category to begin")
	}

	grid := layout.Compute(els)
	stats := layout.ComputeStats(els)

	// Bucket node ids by tier, ordered by column.
	type placed struct {
		id  string
		col float64
	}
	tiers := make(map[int][]placed)
	for id, pos := range grid.Positions {
		tier := int(pos.Y)
		tiers[tier] = append(tiers[tier], placed{id: id, col: pos.X})
	}

	var lines []string
	for tier := layout.TierChemical; tier <= layout.TierGene; tier++ {
		members := tiers[tier]
		if len(members) == 0 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].col < members[j].col })

		label := t.SecondaryText.Render(padRight(tierLabels[tier], 28))
		var parts []string
		for _, p := range members {
			el := nodes[p.id]
			cat := primaryCategory(el)
			icon, color := t.CategoryIcon(cat)
			name := truncate(el.DisplayLabel(), labelWidth)
			parts = append(parts, t.Renderer.NewStyle().Foreground(color).Render(icon+" "+name))
		}
		line := label + strings.Join(parts, t.MutedText.Render("  ·  "))
		// MaxWidth is ANSI-aware, plain truncation would cut escape codes.
		lines = append(lines, t.Renderer.NewStyle().MaxWidth(width).Render(line))
	}

	footer := t.MutedText.Render(fmt.Sprintf("%d nodes, %d relationships, density %.3f",
		stats.Nodes, stats.Edges, stats.Density))
	lines = append(lines, "", footer)

	return strings.Join(lines, "\n")
}

func primaryCategory(el model.Element) string {
	switch {
	case el.HasCategory(model.CategoryChemical):
		return model.CategoryChemical
	case el.HasCategory(model.CategoryMIE):
		return model.CategoryMIE
	case el.HasCategory(model.CategoryAO):
		return model.CategoryAO
	case el.HasCategory(model.CategoryOrgan):
		return model.CategoryOrgan
	case el.IsGene():
		return model.CategoryUniprot
	default:
		return model.CategoryKE
	}
}
