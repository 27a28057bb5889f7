// Package export renders static snapshots of the network view.
package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/aopview/pkg/layout"
	"github.com/vanderheijden86/aopview/pkg/model"
)

// SnapshotOptions controls snapshot export behaviour.
type SnapshotOptions struct {
	Path     string          // Output path; format inferred from extension when Format empty
	Format   string          // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title    string          // Optional title rendered in the summary block
	Elements []model.Element // Elements to render (already filtered to the visible set)
}

// SaveSnapshot renders a static snapshot (SVG or PNG) of the given elements
// with a short summary block. Elements are placed in their category tiers so
// the causal chain reads left to right.
func SaveSnapshot(opts SnapshotOptions) error {
	if len(opts.Elements) == 0 {
		return fmt.Errorf("no elements to export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg" // safe default
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	scene := buildScene(opts)

	switch format {
	case "svg":
		return renderSVG(opts.Path, scene)
	case "png":
		return renderPNG(opts.Path, scene)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- scene computation -----------------------------------------------------

type sceneNode struct {
	ID       string
	Label    string
	Curie    string
	Category string
	X, Y     float64
	NodeW    float64
	NodeH    float64
}

type sceneEdge struct {
	From string
	To   string
}

type scene struct {
	Nodes   []sceneNode
	Edges   []sceneEdge
	Width   int
	Height  int
	Header  float64
	Summary summaryInfo
}

type summaryInfo struct {
	Title     string
	NodeCount int
	EdgeCount int
	Density   float64
}

func buildScene(opts SnapshotOptions) scene {
	const (
		nodeW        = 170.0
		nodeH        = 56.0
		colGap       = 60.0
		rowGap       = 48.0
		padding      = 36.0
		headerHeight = 96.0
	)

	grid := layout.Compute(opts.Elements)
	stats := layout.ComputeStats(opts.Elements)

	byID := make(map[string]model.Element, len(opts.Elements))
	var nodes []sceneNode
	for _, el := range opts.Elements {
		if !el.IsNode() {
			continue
		}
		if _, seen := byID[el.ID()]; seen {
			continue
		}
		byID[el.ID()] = el
		pos := grid.Positions[el.ID()]
		nodes = append(nodes, sceneNode{
			ID:       el.ID(),
			Label:    truncate(el.DisplayLabel(), 40),
			Curie:    el.Data.Curie,
			Category: primaryCategory(el),
			X:        padding + pos.X*(nodeW+colGap),
			Y:        padding + headerHeight + pos.Y*(nodeH+rowGap),
			NodeW:    nodeW,
			NodeH:    nodeH,
		})
	}

	var edges []sceneEdge
	for _, el := range opts.Elements {
		if !el.IsEdge() {
			continue
		}
		if _, ok := byID[el.Data.Source]; !ok {
			continue
		}
		if _, ok := byID[el.Data.Target]; !ok {
			continue
		}
		edges = append(edges, sceneEdge{From: el.Data.Source, To: el.Data.Target})
	}

	width := int(padding*2 + float64(grid.Columns)*(nodeW+colGap) + nodeW)
	if width < 640 {
		width = 640
	}
	height := int(padding*2 + headerHeight + float64(layout.TierGene)*(nodeH+rowGap) + nodeH)
	if height < 480 {
		height = 480
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "AOP Network Snapshot"
	}

	return scene{
		Nodes:  nodes,
		Edges:  edges,
		Width:  width,
		Height: height,
		Header: headerHeight,
		Summary: summaryInfo{
			Title:     title,
			NodeCount: stats.Nodes,
			EdgeCount: stats.Edges,
			Density:   stats.Density,
		},
	}
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

// --- rendering -------------------------------------------------------------

var (
	colorChemical = color.RGBA{0xff, 0xf3, 0xe0, 0xff}
	colorMIE      = color.RGBA{0xc8, 0xe6, 0xc9, 0xff}
	colorKE       = color.RGBA{0xbb, 0xde, 0xfb, 0xff}
	colorAO       = color.RGBA{0xff, 0xcd, 0xd2, 0xff}
	colorOrgan    = color.RGBA{0xe1, 0xbe, 0xe7, 0xff}
	colorGene     = color.RGBA{0xcf, 0xd8, 0xdc, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge     = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorLegendBG = color.RGBA{0xee, 0xee, 0xee, 0xff}
)

func categoryColor(cat string) color.RGBA {
	switch cat {
	case model.CategoryChemical:
		return colorChemical
	case model.CategoryMIE:
		return colorMIE
	case model.CategoryAO:
		return colorAO
	case model.CategoryOrgan:
		return colorOrgan
	case model.CategoryUniprot, model.CategoryEnsembl:
		return colorGene
	default:
		return colorKE
	}
}

func renderPNG(path string, sc scene) error {
	dc := gg.NewContext(sc.Width, sc.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(sc.Width)-32, sc.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	drawSummaryBlock(dc, sc)
	drawLegend(dc, sc)

	nodePos := make(map[string]sceneNode, len(sc.Nodes))
	for _, n := range sc.Nodes {
		nodePos[n.ID] = n
	}
	dc.SetColor(colorEdge)
	dc.SetLineWidth(2)
	for _, e := range sc.Edges {
		from := nodePos[e.From]
		to := nodePos[e.To]
		x1 := from.X + from.NodeW
		y1 := from.Y + from.NodeH/2
		x2 := to.X
		y2 := to.Y + to.NodeH/2
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
		drawArrow(dc, x2, y2)
	}

	for _, n := range sc.Nodes {
		drawNode(dc, n)
	}

	return dc.SavePNG(path)
}

func renderSVG(path string, sc scene) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderSVGToWriter(file, sc)
}

func renderSVGToWriter(w io.Writer, sc scene) error {
	canvas := svg.New(w)
	canvas.Start(sc.Width, sc.Height)
	canvas.Rect(0, 0, sc.Width, sc.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, sc.Width-32, int(sc.Header-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	drawSummaryBlockSVG(canvas, sc)
	drawLegendSVG(canvas, sc)

	nodePos := make(map[string]sceneNode, len(sc.Nodes))
	for _, n := range sc.Nodes {
		nodePos[n.ID] = n
	}

	for _, e := range sc.Edges {
		from := nodePos[e.From]
		to := nodePos[e.To]
		x1 := int(from.X + from.NodeW)
		y1 := int(from.Y + from.NodeH/2)
		x2 := int(to.X)
		y2 := int(to.Y + to.NodeH/2)
		canvas.Line(x1, y1, x2, y2, fmt.Sprintf("stroke:%s;stroke-width:2", css(colorEdge)))
		// simple arrow head
		canvas.Polygon(
			[]int{x2, x2 + 8, x2 + 8},
			[]int{y2, y2 + 4, y2 - 4},
			fmt.Sprintf("fill:%s", css(colorEdge)),
		)
	}

	for _, n := range sc.Nodes {
		x := int(n.X)
		y := int(n.Y)
		canvas.Roundrect(x, y, int(n.NodeW), int(n.NodeH), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(categoryColor(n.Category)), css(colorStroke)))
		canvas.Text(x+10, y+20, n.Label, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
		sub := n.Curie
		if sub == "" {
			sub = n.Category
		}
		canvas.Text(x+10, y+40, truncate(sub, 36), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
	}

	canvas.End()
	return nil
}

func drawNode(dc *gg.Context, n sceneNode) {
	dc.SetColor(categoryColor(n.Category))
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1.2)
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored(n.Label, n.X+10, n.Y+18, 0, 0.5)
	sub := n.Curie
	if sub == "" {
		sub = n.Category
	}
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(truncate(sub, 36), n.X+10, n.Y+38, 0, 0.5)
}

func drawArrow(dc *gg.Context, x, y float64) {
	dc.SetColor(colorEdge)
	dc.NewSubPath()
	dc.MoveTo(x, y)
	dc.LineTo(x-8, y+4)
	dc.LineTo(x-8, y-4)
	dc.ClosePath()
	dc.Fill()
}

func drawSummaryBlock(dc *gg.Context, sc scene) {
	dc.SetColor(colorText)
	dc.DrawStringAnchored(sc.Summary.Title, 32, 44, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("nodes: %d  edges: %d", sc.Summary.NodeCount, sc.Summary.EdgeCount), 32, 64, 0, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("density: %.3f", sc.Summary.Density), 32, 84, 0, 0.5)
}

func drawLegend(dc *gg.Context, sc scene) {
	boxW := 180.0
	boxH := 112.0
	x := float64(sc.Width) - boxW - 20
	y := 24.0
	dc.SetColor(colorLegendBG)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored("Legend", x+12, y+18, 0, 0.5)
	drawLegendRow(dc, x+12, y+36, colorChemical, "Chemical")
	drawLegendRow(dc, x+12, y+52, colorMIE, "MIE")
	drawLegendRow(dc, x+12, y+68, colorKE, "Key Event")
	drawLegendRow(dc, x+12, y+84, colorAO, "Adverse Outcome")
	drawLegendRow(dc, x+12, y+100, colorOrgan, "Organ / Gene")
}

func drawLegendRow(dc *gg.Context, x, y float64, c color.RGBA, label string) {
	dc.SetColor(c)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Stroke()
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(label, x+20, y, 0, 0.5)
}

func drawSummaryBlockSVG(canvas *svg.SVG, sc scene) {
	canvas.Text(32, 44, sc.Summary.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(32, 64, fmt.Sprintf("nodes: %d  edges: %d", sc.Summary.NodeCount, sc.Summary.EdgeCount), fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	canvas.Text(32, 84, fmt.Sprintf("density: %.3f", sc.Summary.Density), fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
}

func drawLegendSVG(canvas *svg.SVG, sc scene) {
	boxW := 180
	boxH := 112
	x := sc.Width - boxW - 20
	y := 24
	canvas.Roundrect(x, y, boxW, boxH, 10, 10, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorLegendBG), css(colorStroke)))
	canvas.Text(x+12, y+18, "Legend", fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
	drawLegendRowSVG(canvas, x+12, y+36, colorChemical, "Chemical")
	drawLegendRowSVG(canvas, x+12, y+52, colorMIE, "MIE")
	drawLegendRowSVG(canvas, x+12, y+68, colorKE, "Key Event")
	drawLegendRowSVG(canvas, x+12, y+84, colorAO, "Adverse Outcome")
	drawLegendRowSVG(canvas, x+12, y+100, colorOrgan, "Organ / Gene")
}

func drawLegendRowSVG(canvas *svg.SVG, x, y int, c color.RGBA, label string) {
	canvas.Roundrect(x, y-8, 14, 14, 3, 3, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(c), css(colorStroke)))
	canvas.Text(x+20, y, label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
