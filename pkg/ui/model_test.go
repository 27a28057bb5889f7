package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/aopview/pkg/config"
	"github.com/vanderheijden86/aopview/pkg/model"
	"github.com/vanderheijden86/aopview/pkg/remote"
	"github.com/vanderheijden86/aopview/pkg/store"
	"github.com/vanderheijden86/aopview/pkg/tablesync"
)

func testModel(t *testing.T) Model {
	t.Helper()
	st := store.New()
	report := st.UpsertElements([]model.Element{
		{Group: model.GroupNodes, Data: model.Data{ID: "mie1", Label: "DNA adduct formation", Curie: "aop.events:875"}, Classes: "mie", Visible: true},
		{Group: model.GroupNodes, Data: model.Data{ID: "liver", Label: "Liver"}, Classes: "organ"},
		{Group: model.GroupNodes, Data: model.Data{ID: "kidney", Label: "Kidney"}, Classes: "organ"},
		{Group: model.GroupEdges, Data: model.Data{ID: "e1", Source: "mie1", Target: "liver", Type: "organ"}},
	})
	if report.Skipped != 0 {
		t.Fatalf("fixture skipped: %v", report.SkippedIDs)
	}
	sync := tablesync.New(st)
	client := remote.NewClient("http://localhost:0")
	m := NewModel(st, sync, client, config.DefaultConfig())
	return m.WithTheme(TestTheme())
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestToggleOrgansKey(t *testing.T) {
	m := testModel(t)

	updated, _ := m.Update(key("o"))
	m = updated.(Model)

	if !m.vis.State(model.CategoryOrgan) {
		t.Error("organ category should be visible after toggle")
	}
	if got := m.vis.Count(model.CategoryOrgan); got != 2 {
		t.Errorf("organ badge count = %d, want 2 nodes (the organ edge must not count)", got)
	}

	updated, _ = m.Update(key("o"))
	m = updated.(Model)
	if m.vis.State(model.CategoryOrgan) {
		t.Error("second toggle should hide organs again")
	}
}

func TestStoreEventsReuseOneSubscription(t *testing.T) {
	m := testModel(t)
	before := m.store.Subscribers()

	for i := 0; i < 5; i++ {
		updated, _ := m.Update(storeChangedMsg{event: store.ChangeEvent{Kind: store.ChangeVisibility}})
		m = updated.(Model)
	}

	if got := m.store.Subscribers(); got != before {
		t.Errorf("subscriber count grew from %d to %d, events must reuse one subscription", before, got)
	}
}

func TestTabCyclesTables(t *testing.T) {
	m := testModel(t)

	if m.activeTable != tablesync.TablePredictions {
		t.Fatalf("initial table = %v", m.activeTable)
	}
	for _, want := range []tablesync.Table{tablesync.TableGenes, tablesync.TableAOP, tablesync.TablePredictions} {
		updated, _ := m.Update(key("tab"))
		m = updated.(Model)
		if m.activeTable != want {
			t.Fatalf("after tab, active = %v, want %v", m.activeTable, want)
		}
	}
}

func TestRowsRefreshedReplacesRowsAndClampsSelection(t *testing.T) {
	m := testModel(t)
	m.activeTable = tablesync.TableGenes
	m.selectedRow = 5

	updated, _ := m.Update(RowsRefreshedMsg{Rows: tablesync.Rows{
		Genes: []model.GeneRow{{GeneID: "P12345"}, {GeneID: "P67890"}},
	}})
	m = updated.(Model)

	if len(m.rows.Genes) != 2 {
		t.Fatalf("gene rows = %d, want 2", len(m.rows.Genes))
	}
	if m.selectedRow != 1 {
		t.Errorf("selection = %d, want clamped to 1", m.selectedRow)
	}
}

func TestSelectionMovement(t *testing.T) {
	m := testModel(t)
	m.rows = tablesync.Rows{Predictions: []model.PredictionRow{
		{Compound: "c1"}, {Compound: "c2"},
	}}

	updated, _ := m.Update(key("down"))
	m = updated.(Model)
	if m.selectedRow != 1 {
		t.Errorf("selection = %d, want 1", m.selectedRow)
	}
	updated, _ = m.Update(key("down"))
	m = updated.(Model)
	if m.selectedRow != 1 {
		t.Errorf("selection should clamp at last row, got %d", m.selectedRow)
	}
	updated, _ = m.Update(key("up"))
	m = updated.(Model)
	if m.selectedRow != 0 {
		t.Errorf("selection = %d, want 0", m.selectedRow)
	}
}

func TestPromptCapturesKeys(t *testing.T) {
	m := testModel(t)

	updated, _ := m.Update(key("p"))
	m = updated.(Model)
	if m.promptMode != promptSMILES {
		t.Fatal("p should open the SMILES prompt")
	}

	// q must type into the prompt, not quit.
	updated, cmd := m.Update(key("q"))
	m = updated.(Model)
	if m.promptMode != promptSMILES {
		t.Error("prompt should stay open while typing")
	}
	if cmd != nil {
		if _, isQuit := cmd().(tea.QuitMsg); isQuit {
			t.Error("q inside prompt must not quit")
		}
	}

	updated, _ = m.Update(key("esc"))
	m = updated.(Model)
	if m.promptMode != promptNone {
		t.Error("esc should close the prompt")
	}
}

func TestEmptyPromptSubmitIsNoop(t *testing.T) {
	m := testModel(t)
	updated, _ := m.Update(key("p"))
	m = updated.(Model)

	updated, cmd := m.Update(key("enter"))
	m = updated.(Model)
	if m.promptMode != promptNone {
		t.Error("enter should close the prompt")
	}
	if cmd != nil {
		t.Error("empty SMILES must not trigger a prediction request")
	}
}

func TestPredictUsesServiceModelTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_case_mie_model":
			w.Write([]byte(`{"ahr_binding":"Activation, AhR receptor"}`))
		case "/get_predictions":
			w.Write([]byte(`[{"smiles":"CC(=O)O","ahr_binding":7.2}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := testModel(t)
	m.client = remote.NewClient(srv.URL)
	m.cfg.Prediction.Models = map[string]string{"ahr_binding": "stale config target"}

	msg := m.predictCmd("CC(=O)O")()
	updated, _ := m.Update(msg)
	m = updated.(Model)

	rows := m.sync.Rows().Predictions
	if len(rows) != 1 {
		t.Fatalf("got %d prediction rows, want 1", len(rows))
	}
	if rows[0].Target != "Activation, AhR receptor" {
		t.Errorf("target = %q, want the service mapping, not the config fallback", rows[0].Target)
	}
}

func TestPredictFallsBackToConfigTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_case_mie_model":
			http.Error(w, `{"error":"no such MIE"}`, http.StatusNotFound)
		case "/get_predictions":
			w.Write([]byte(`[{"smiles":"CC(=O)O","ahr_binding":7.2}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := testModel(t)
	m.client = remote.NewClient(srv.URL)
	m.cfg.Prediction.Models = map[string]string{"ahr_binding": "Activation, AhR"}

	msg := m.predictCmd("CC(=O)O")()
	updated, _ := m.Update(msg)
	m = updated.(Model)

	rows := m.sync.Rows().Predictions
	if len(rows) != 1 || rows[0].Target != "Activation, AhR" {
		t.Errorf("rows = %+v, want the config target when the lookup fails", rows)
	}
}

func TestGeneLoadAlwaysFetchesGeneTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/populate_gene_table" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"gene_data":[{"gene_id":"ENSG00000141510","expression":"down"}]}`))
	}))
	defer srv.Close()

	m := testModel(t)
	m.client = remote.NewClient(srv.URL)

	// Ensembl-only delta: the uniprot toggle matches nothing, the fetch
	// must happen regardless.
	delta := []model.Element{
		{Group: model.GroupNodes, Data: model.Data{ID: "ENSG00000141510", Label: "TP53"}, Classes: "ensembl"},
	}
	updated, cmd := m.Update(genesLoadedMsg{elements: delta})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("gene load must produce follow-up commands")
	}

	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatal("expected a command batch including the gene table fetch")
	}

	// The status-clear tick in the batch fires much later; the fetch
	// answers quickly, so wait for the first message that is not a tick.
	results := make(chan tea.Msg, len(batch))
	for _, c := range batch {
		go func(c tea.Cmd) { results <- c() }(c)
	}
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-results:
			if gt, ok := msg.(geneTableMsg); ok {
				if gt.err != nil {
					t.Fatalf("gene table fetch: %v", gt.err)
				}
				updated, _ := m.Update(gt)
				m = updated.(Model)
				rows := m.sync.Rows().Genes
				if len(rows) != 1 || rows[0].Expression != "down" {
					t.Errorf("gene rows = %+v, want the fetched expression", rows)
				}
				return
			}
		case <-deadline:
			t.Fatal("gene table fetch never ran")
		}
	}
}

func TestThresholdPromptRefiltersPredictions(t *testing.T) {
	m := testModel(t)
	m.lastRecords = []remote.PredictionRecord{
		{SMILES: "CC(=O)O", Scores: map[string]float64{"ahr_binding": 7.2}},
	}
	m.cfg.Prediction.Models = map[string]string{"ahr_binding": "Activation, AhR"}

	enterThreshold := func(value string) {
		t.Helper()
		updated, _ := m.Update(key("t"))
		m = updated.(Model)
		if m.promptMode != promptThreshold {
			t.Fatal("t should open the threshold prompt")
		}
		for _, r := range value {
			updated, _ = m.Update(key(string(r)))
			m = updated.(Model)
		}
		updated, _ = m.Update(key("enter"))
		m = updated.(Model)
	}

	enterThreshold("6.5")
	if m.cfg.Prediction.Threshold != 6.5 {
		t.Fatalf("threshold = %v, want 6.5", m.cfg.Prediction.Threshold)
	}
	if !strings.Contains(m.statusMsg, "1 predictions remain") {
		t.Errorf("score 7.2 should pass threshold 6.5, status %q", m.statusMsg)
	}

	enterThreshold("8.0")
	if !strings.Contains(m.statusMsg, "0 predictions remain") {
		t.Errorf("score 7.2 should fail threshold 8.0, status %q", m.statusMsg)
	}
}

func TestThresholdPromptRejectsGarbage(t *testing.T) {
	m := testModel(t)
	before := m.cfg.Prediction.Threshold

	updated, _ := m.Update(key("t"))
	m = updated.(Model)
	for _, r := range "abc" {
		updated, _ = m.Update(key(string(r)))
		m = updated.(Model)
	}
	updated, _ = m.Update(key("enter"))
	m = updated.(Model)

	if m.cfg.Prediction.Threshold != before {
		t.Errorf("threshold changed on invalid input: %v", m.cfg.Prediction.Threshold)
	}
	if !m.statusIsError {
		t.Error("invalid threshold should set an error status")
	}
}

func TestLabelSizeBounds(t *testing.T) {
	m := testModel(t)
	m.labelSize = 24
	updated, _ := m.Update(key("+"))
	m = updated.(Model)
	if m.labelSize != 24 {
		t.Errorf("label size grew past cap: %d", m.labelSize)
	}

	m.labelSize = 6
	updated, _ = m.Update(key("-"))
	m = updated.(Model)
	if m.labelSize != 6 {
		t.Errorf("label size shrank past floor: %d", m.labelSize)
	}
}

func TestSelectedWikiURL(t *testing.T) {
	m := testModel(t)
	m.activeTable = tablesync.TableAOP
	m.rows = tablesync.Rows{AOP: []model.AOPRow{
		{SourceLabel: "a", TargetLabel: "b", Relationship: "aop.relationships:1234"},
	}}
	m.selectedRow = 0

	url := m.selectedWikiURL()
	if !strings.HasSuffix(url, "/1234") {
		t.Errorf("wiki url = %q, want trailing /1234", url)
	}

	m.activeTable = tablesync.TablePredictions
	if m.selectedWikiURL() != "" {
		t.Error("wiki url should be empty outside the AOP table")
	}
}

func TestViewShowsPlaceholderBeforeData(t *testing.T) {
	m := testModel(t)
	m.width = 140
	m.height = 40

	out := m.View()
	if !strings.Contains(out, "no data") {
		t.Error("expected placeholder text in table pane before any rows arrive")
	}
}

func TestGeneCountDistinctNodes(t *testing.T) {
	m := testModel(t)
	m.store.UpsertElements([]model.Element{
		{Group: model.GroupNodes, Data: model.Data{ID: "P04637", Label: "TP53"}, Classes: "uniprot ensembl"},
		{Group: model.GroupNodes, Data: model.Data{ID: "ENSG00000141510"}, Classes: "ensembl"},
	})

	if got := m.geneCount(); got != 2 {
		t.Errorf("gene count = %d, want 2 distinct gene nodes", got)
	}
}

func TestHeaderBadgeCountsAfterToggle(t *testing.T) {
	m := testModel(t)
	updated, _ := m.Update(key("o"))
	m = updated.(Model)

	header := m.renderHeader()
	if !strings.Contains(header, "organs (2)") {
		t.Errorf("header missing organ badge count: %q", header)
	}
}
