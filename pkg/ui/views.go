package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/aopview/pkg/model"
	"github.com/vanderheijden86/aopview/pkg/visibility"
)

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	body := m.renderBody(bodyHeight)

	if m.promptMode != promptNone {
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderPrompt(), body)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// renderHeader shows the title and category badges with match counts, the
// count parenthesized the way the column toggles label themselves.
func (m Model) renderHeader() string {
	title := m.theme.Header.Render("av " + truncate(m.networkTitle(), 40))

	badges := []string{
		RenderCategoryBadge("organs", m.vis.Count(model.CategoryOrgan), m.vis.State(model.CategoryOrgan)),
		RenderCategoryBadge("genes", m.geneCount(), m.vis.State(model.CategoryUniprot)),
		RenderCategoryBadge("mies", m.vis.Count(model.CategoryMIE), m.vis.State(model.CategoryMIE)),
		RenderCategoryBadge("aos", m.vis.Count(model.CategoryAO), m.vis.State(model.CategoryAO)),
	}

	service := m.theme.ErrorText.Render("● offline")
	if m.serviceReady {
		service = m.theme.SuccessText.Render("● service")
	}

	left := title + " " + strings.Join(badges, " ")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(service)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + service
}

func (m Model) networkTitle() string {
	if m.networkPath == "" {
		return "AOP network"
	}
	parts := strings.Split(m.networkPath, "/")
	return parts[len(parts)-1]
}

// geneCount counts distinct gene nodes; a node tagged both uniprot and
// ensembl is one gene, not two.
func (m Model) geneCount() int {
	return len(m.store.Elements(model.Element.IsGene))
}

func (m Model) renderBody(height int) string {
	els := visibility.VisibleElements(m.store)

	if m.width < SplitViewThreshold {
		pane := PanelStyle.Width(m.width - 2).Height(height - 2)
		return pane.Render(RenderGraphPane(m.theme, els, m.width-4, m.labelSize*3))
	}

	graphWidth := m.width * 55 / 100
	tableWidth := m.width - graphWidth

	graph := PanelStyle.Width(graphWidth - 2).Height(height - 2).
		Render(RenderGraphPane(m.theme, els, graphWidth-4, m.labelSize*3))
	tables := FocusedPanelStyle.Width(tableWidth - 2).Height(height - 2).
		Render(RenderTablePane(m.theme, m.rows, m.activeTable, tableWidth-4, m.selectedRow))

	return lipgloss.JoinHorizontal(lipgloss.Top, graph, tables)
}

func (m Model) renderPrompt() string {
	name := "predict: "
	if m.promptMode == promptThreshold {
		name = "threshold: "
	}
	label := m.theme.PrimaryBold.Render(name)
	return FocusedPanelStyle.Width(m.width - 2).Render(label + m.input.View())
}

func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		if m.statusIsError {
			return m.theme.ErrorText.Render(truncate(m.statusMsg, m.width))
		}
		return m.theme.SuccessText.Render(truncate(m.statusMsg, m.width))
	}

	keys := "o organs · g genes · p predict · t threshold · a aop rows · tab table · c copy link · s snapshot · ? help · q quit"
	return m.theme.MutedText.Render(truncate(keys, m.width))
}

func (m Model) renderHelp() string {
	rows := [][2]string{
		{"o", "toggle organ nodes and edges"},
		{"g", "toggle gene nodes (first press loads them from the service)"},
		{"p", "enter a SMILES string and fetch interaction predictions"},
		{"t", "change the prediction score threshold"},
		{"a", "fetch key event relationships for the visible network"},
		{"tab", "cycle predictions / genes / aop tables"},
		{"j/k, ↓/↑", "move the table selection"},
		{"enter", "open the selected relationship in the AOP-Wiki"},
		{"c", "copy the selected relationship's AOP-Wiki link"},
		{"s", "export an SVG snapshot of the visible network"},
		{"+/-", "grow or shrink node labels"},
		{"r", "force a table refresh"},
		{"?", "close this help"},
		{"q", "quit"},
	}

	var b strings.Builder
	b.WriteString(m.theme.Header.Render("av keys"))
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			m.theme.PrimaryBold.Render(padRight(r[0], 10)),
			m.theme.Base.Render(r[1])))
	}
	return PanelStyle.Width(m.width - 2).Render(b.String())
}
