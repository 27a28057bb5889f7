package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/aopview/pkg/model"
	"github.com/vanderheijden86/aopview/pkg/tablesync"
)

// Tables are rendered by hand with lipgloss rather than a table widget so
// column sizing can follow the pane width exactly.

type tableColumn struct {
	Title string
	Width int
}

func renderTableHeader(t Theme, cols []tableColumn) string {
	var b strings.Builder
	for i, col := range cols {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padRight(truncate(col.Title, col.Width), col.Width))
	}
	return t.PrimaryBold.Render(b.String())
}

func renderTableRow(t Theme, cols []tableColumn, cells []string, selected bool) string {
	var b strings.Builder
	for i, col := range cols {
		if i > 0 {
			b.WriteString("  ")
		}
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		b.WriteString(padRight(truncate(cell, col.Width), col.Width))
	}
	if selected {
		return t.Selected.Render(b.String())
	}
	return t.Base.Render(b.String())
}

func renderPlaceholder(t Theme, width int) string {
	return t.MutedText.Italic(true).Render(truncate(tablesync.PlaceholderNoData, width))
}

// fitColumns scales column widths so the table fits the available width,
// shrinking the widest columns first.
func fitColumns(cols []tableColumn, width int) []tableColumn {
	total := 0
	for _, c := range cols {
		total += c.Width
	}
	total += 2 * (len(cols) - 1)
	if total <= width {
		return cols
	}

	out := make([]tableColumn, len(cols))
	copy(out, cols)
	for total > width {
		widest := 0
		for i := range out {
			if out[i].Width > out[widest].Width {
				widest = i
			}
		}
		if out[widest].Width <= 4 {
			break
		}
		out[widest].Width--
		total--
	}
	return out
}

// RenderPredictionTable renders the chemical interaction predictions.
func RenderPredictionTable(t Theme, rows []model.PredictionRow, width, selected int) string {
	cols := fitColumns([]tableColumn{
		{Title: "Compound", Width: 24},
		{Title: "MIE Target", Width: 32},
		{Title: "Score", Width: 6},
	}, width)

	var lines []string
	lines = append(lines, renderTableHeader(t, cols))
	if len(rows) == 0 {
		lines = append(lines, renderPlaceholder(t, width))
	}
	for i, r := range rows {
		cells := []string{r.Compound, r.Target, FormatScore(r.Score)}
		lines = append(lines, renderTableRow(t, cols, cells, i == selected))
	}
	return strings.Join(lines, "\n")
}

// RenderGeneTable renders the visible gene nodes with expression values.
func RenderGeneTable(t Theme, rows []model.GeneRow, width, selected int) string {
	cols := fitColumns([]tableColumn{
		{Title: "Gene", Width: 28},
		{Title: "Expression", Width: 12},
	}, width)

	var lines []string
	lines = append(lines, renderTableHeader(t, cols))
	if len(rows) == 0 {
		lines = append(lines, renderPlaceholder(t, width))
	}
	for i, r := range rows {
		cells := []string{r.GeneID, r.Expression}
		lines = append(lines, renderTableRow(t, cols, cells, i == selected))
	}
	return strings.Join(lines, "\n")
}

// RenderAOPTable renders key event relationships with their AOP-Wiki links.
func RenderAOPTable(t Theme, rows []model.AOPRow, width, selected int) string {
	cols := fitColumns([]tableColumn{
		{Title: "Upstream", Width: 26},
		{Title: "Relationship", Width: 18},
		{Title: "Downstream", Width: 26},
	}, width)

	var lines []string
	lines = append(lines, renderTableHeader(t, cols))
	if len(rows) == 0 {
		lines = append(lines, renderPlaceholder(t, width))
	}
	for i, r := range rows {
		cells := []string{r.SourceLabel, r.Relationship, r.TargetLabel}
		lines = append(lines, renderTableRow(t, cols, cells, i == selected))
	}
	return strings.Join(lines, "\n")
}

// RenderTablePane renders the active table with its tab bar.
func RenderTablePane(t Theme, rows tablesync.Rows, active tablesync.Table, width, selected int) string {
	var tabs []string
	for _, tab := range []tablesync.Table{tablesync.TablePredictions, tablesync.TableGenes, tablesync.TableAOP} {
		style := t.MutedText
		if tab == active {
			style = t.PrimaryBold
		}
		tabs = append(tabs, style.Render(tab.String()))
	}
	bar := strings.Join(tabs, t.MutedText.Render(" │ "))

	var body string
	switch active {
	case tablesync.TableGenes:
		body = RenderGeneTable(t, rows.Genes, width, selected)
	case tablesync.TableAOP:
		body = RenderAOPTable(t, rows.AOP, width, selected)
	default:
		body = RenderPredictionTable(t, rows.Predictions, width, selected)
	}

	return lipgloss.JoinVertical(lipgloss.Left, bar, RenderDivider(width), body)
}

// activeRowCount returns how many rows the active table currently holds.
func activeRowCount(rows tablesync.Rows, active tablesync.Table) int {
	switch active {
	case tablesync.TableGenes:
		return len(rows.Genes)
	case tablesync.TableAOP:
		return len(rows.AOP)
	default:
		return len(rows.Predictions)
	}
}
