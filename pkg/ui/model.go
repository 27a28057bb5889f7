package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/aopview/internal/datasource"
	"github.com/vanderheijden86/aopview/pkg/config"
	"github.com/vanderheijden86/aopview/pkg/debug"
	"github.com/vanderheijden86/aopview/pkg/export"
	"github.com/vanderheijden86/aopview/pkg/model"
	"github.com/vanderheijden86/aopview/pkg/remote"
	"github.com/vanderheijden86/aopview/pkg/store"
	"github.com/vanderheijden86/aopview/pkg/tablesync"
	"github.com/vanderheijden86/aopview/pkg/visibility"
	"github.com/vanderheijden86/aopview/pkg/watcher"
)

// View width threshold below which the table pane is hidden
const SplitViewThreshold = 100

const (
	readinessInterval = 500 * time.Millisecond
	readinessCeiling  = 10 * time.Second
	requestTimeout    = 30 * time.Second
	statusDisplayTime = 4 * time.Second
)

// FileChangedMsg is sent when the network file changes on disk
type FileChangedMsg struct{}

// storeChangedMsg is sent when the graph store reports a mutation
type storeChangedMsg struct {
	event store.ChangeEvent
}

// RowsRefreshedMsg carries a fresh table row set from the synchronizer
type RowsRefreshedMsg struct {
	Rows tablesync.Rows
}

// serviceReadyMsg reports the outcome of a readiness probe
type serviceReadyMsg struct {
	err error
}

// readinessTickMsg schedules the next readiness probe
type readinessTickMsg struct{}

// predictionsMsg carries prediction results (or the request error) plus the
// model-to-target mapping the request was resolved against
type predictionsMsg struct {
	records []remote.PredictionRecord
	smiles  string
	targets map[string]string
	err     error
}

// genesLoadedMsg carries gene elements fetched for the visible MIEs
type genesLoadedMsg struct {
	elements []model.Element
	err      error
}

// geneTableMsg carries server-computed gene rows
type geneTableMsg struct {
	rows []model.GeneRow
	err  error
}

// aopTableMsg carries server-computed AOP relationship rows
type aopTableMsg struct {
	rows []model.AOPRow
	err  error
}

// statusClearMsg expires a transient status line message
type statusClearMsg struct{}

// snapshotDoneMsg reports a finished snapshot export
type snapshotDoneMsg struct {
	path string
	err  error
}

// reloadedMsg carries elements re-read from the network file
type reloadedMsg struct {
	elements []model.Element
	err      error
}

// promptMode selects what the shared text input is collecting.
type promptMode int

const (
	promptNone promptMode = iota
	promptSMILES
	promptThreshold
)

// Model is the top-level Bubble Tea model. All state transitions happen in
// Update; the store, synchronizer, and watcher run their own goroutines and
// feed results back as messages.
type Model struct {
	// Data
	store   *store.Store
	vis     *visibility.Controller
	sync    *tablesync.Synchronizer
	client  *remote.Client
	watcher *watcher.Watcher
	cfg     config.Config

	networkPath string // Path to the network JSON for reloading
	snapshotDir string

	// Single store subscription, created in Init and reused for every wait
	events <-chan store.ChangeEvent

	// Current rows, replaced wholesale on every RowsRefreshedMsg
	rows tablesync.Rows

	// UI Components
	theme       Theme
	input       textinput.Model
	promptMode  promptMode
	activeTable tablesync.Table
	selectedRow int
	showHelp    bool
	labelSize   int
	ready       bool
	width       int
	height      int

	// Last prediction batch and its target mapping, kept so a threshold
	// change refilters in place
	lastRecords []remote.PredictionRecord
	lastTargets map[string]string

	// Service readiness
	serviceReady   bool
	readinessStart time.Time

	// Gene loading is lazy: first toggle fetches from the service
	genesLoaded  bool
	genesLoading bool

	// Status message (for temporary feedback)
	statusMsg     string
	statusIsError bool
}

// NewModel builds the orchestrator around an already seeded store.
func NewModel(st *store.Store, sync *tablesync.Synchronizer, client *remote.Client, cfg config.Config) Model {
	input := textinput.New()
	input.CharLimit = 200
	input.Width = 50

	return Model{
		store:       st,
		events:      st.Subscribe(),
		vis:         visibility.New(st),
		sync:        sync,
		client:      client,
		cfg:         cfg,
		theme:       DefaultTheme(lipgloss.NewRenderer(os.Stdout)),
		input:       input,
		activeTable: tablesync.TablePredictions,
		labelSize:   cfg.UI.LabelSize,
		ready:       true,
		width:       120,
		height:      40,
	}
}

// WithWatcher attaches a file watcher for live reload.
func (m Model) WithWatcher(w *watcher.Watcher, networkPath string) Model {
	m.watcher = w
	m.networkPath = networkPath
	return m
}

// WithTheme overrides the default theme (used by tests and --no-color).
func (m Model) WithTheme(t Theme) Model {
	m.theme = t
	return m
}

// WithSnapshotDir sets where snapshot exports land.
func (m Model) WithSnapshotDir(dir string) Model {
	m.snapshotDir = dir
	return m
}

// WatchFileCmd waits for the next file change and reports it.
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// WaitForStoreCmd waits for the next store change event.
func WaitForStoreCmd(events <-chan store.ChangeEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return storeChangedMsg{event: ev}
	}
}

func readinessTickCmd() tea.Cmd {
	return tea.Tick(readinessInterval, func(time.Time) tea.Msg {
		return readinessTickMsg{}
	})
}

func statusClearCmd() tea.Cmd {
	return tea.Tick(statusDisplayTime, func(time.Time) tea.Msg {
		return statusClearMsg{}
	})
}

func (m Model) probeServiceCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), readinessInterval)
		defer cancel()
		_, err := client.CaseMIEModels(ctx, "")
		// Any HTTP response, even an error payload, means the service is up.
		if apiErr, ok := err.(*remote.APIError); ok && apiErr.Status > 0 {
			err = nil
		}
		return serviceReadyMsg{err: err}
	}
}

func (m Model) loadGenesCmd() tea.Cmd {
	client := m.client
	mies := m.visibleMIEs()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		els, err := client.LoadGenes(ctx, mies)
		return genesLoadedMsg{elements: els, err: err}
	}
}

// predictCmd resolves the model-to-target mapping from the service for the
// visible MIEs (config targets are the offline fallback), then requests
// predictions against the resolved model set.
func (m Model) predictCmd(smiles string) tea.Cmd {
	client := m.client
	mies := m.visibleMIEs()
	base := m.cfg.Prediction.Models
	threshold := m.cfg.Prediction.Threshold
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		targets := make(map[string]string, len(base))
		for name, target := range base {
			targets[name] = target
		}
		for _, mie := range mies {
			mapping, err := client.CaseMIEModels(ctx, mie)
			if err != nil {
				debug.Log("case MIE model lookup failed for %s: %v", mie, err)
				continue
			}
			for name, target := range mapping {
				targets[name] = target
			}
		}

		models := make([]string, 0, len(targets))
		for name := range targets {
			models = append(models, name)
		}
		sort.Strings(models)

		records, err := client.Predictions(ctx, remote.PredictionRequest{
			SMILES:    []string{smiles},
			Models:    models,
			Threshold: threshold,
		})
		return predictionsMsg{records: records, smiles: smiles, targets: targets, err: err}
	}
}

func (m Model) fetchGeneTableCmd() tea.Cmd {
	client := m.client
	els := visibility.VisibleElements(m.store)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		rows, err := client.GeneTable(ctx, els)
		return geneTableMsg{rows: rows, err: err}
	}
}

func (m Model) fetchAOPTableCmd() tea.Cmd {
	client := m.client
	els := visibility.VisibleElements(m.store)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		rows, err := client.AOPTable(ctx, els)
		return aopTableMsg{rows: rows, err: err}
	}
}

func (m Model) reloadNetworkCmd() tea.Cmd {
	path := m.networkPath
	return func() tea.Msg {
		els, err := datasource.LoadElementsFromFile(path)
		return reloadedMsg{elements: els, err: err}
	}
}

func (m Model) snapshotCmd() tea.Cmd {
	els := visibility.VisibleElements(m.store)
	dir := m.snapshotDir
	return func() tea.Msg {
		path := filepath.Join(dir, fmt.Sprintf("network-%s.svg", time.Now().Format("20060102-150405")))
		err := export.SaveSnapshot(export.SnapshotOptions{
			Path:     path,
			Title:    "AOP Network",
			Elements: els,
		})
		return snapshotDoneMsg{path: path, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		WaitForStoreCmd(m.events),
		m.probeServiceCmd(),
	}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case storeChangedMsg:
		debug.Log("store change: %s", msg.event.Kind)
		// Wait on the same subscription; rows arrive via the synchronizer.
		cmds = append(cmds, WaitForStoreCmd(m.events))

	case RowsRefreshedMsg:
		m.rows = msg.Rows
		if n := activeRowCount(m.rows, m.activeTable); m.selectedRow >= n {
			m.selectedRow = n - 1
			if m.selectedRow < 0 {
				m.selectedRow = 0
			}
		}

	case serviceReadyMsg:
		if msg.err == nil {
			m.serviceReady = true
			break
		}
		if m.readinessStart.IsZero() {
			m.readinessStart = time.Now()
		}
		if time.Since(m.readinessStart) < readinessCeiling {
			cmds = append(cmds, readinessTickCmd())
		} else {
			m.setStatus("prediction service unreachable, working offline", true)
			cmds = append(cmds, statusClearCmd())
		}

	case readinessTickMsg:
		cmds = append(cmds, m.probeServiceCmd())

	case FileChangedMsg:
		debug.Log("network file changed: %s", m.networkPath)
		cmds = append(cmds, m.reloadNetworkCmd())
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}

	case reloadedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("reload failed: %v", msg.err), true)
			cmds = append(cmds, statusClearCmd())
			break
		}
		report := m.store.UpsertElements(msg.elements)
		m.setStatus(fmt.Sprintf("reloaded network: %d new, %d merged, %d skipped",
			report.Inserted, report.Merged, report.Skipped), report.Skipped > 0)
		cmds = append(cmds, statusClearCmd())

	case genesLoadedMsg:
		m.genesLoading = false
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("gene load failed: %v", msg.err), true)
			cmds = append(cmds, statusClearCmd())
			break
		}
		m.genesLoaded = true
		m.store.UpsertElements(msg.elements)
		m.vis.Toggle(model.CategoryUniprot, true)
		m.vis.Toggle(model.CategoryEnsembl, true)
		m.setStatus(fmt.Sprintf("loaded %d gene elements", len(msg.elements)), false)
		cmds = append(cmds, statusClearCmd(), m.fetchGeneTableCmd())

	case predictionsMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("prediction failed: %v", msg.err), true)
			cmds = append(cmds, statusClearCmd())
			break
		}
		m.lastRecords = msg.records
		m.lastTargets = msg.targets
		rows, els := tablesync.BuildPredictionRows(msg.records, msg.targets, m.cfg.Prediction.Threshold)
		m.sync.SetPredictions(rows)
		if len(els) > 0 {
			m.store.UpsertElements(els)
			m.vis.Toggle(model.CategoryChemical, true)
		}
		m.activeTable = tablesync.TablePredictions
		m.setStatus(fmt.Sprintf("%d predictions above threshold %.1f for %s",
			len(rows), m.cfg.Prediction.Threshold, msg.smiles), false)
		cmds = append(cmds, statusClearCmd())

	case geneTableMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("gene table fetch failed: %v", msg.err), true)
			cmds = append(cmds, statusClearCmd())
			break
		}
		m.sync.SetGeneRows(msg.rows)

	case aopTableMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("AOP table fetch failed: %v", msg.err), true)
			cmds = append(cmds, statusClearCmd())
			break
		}
		m.sync.SetAOPRows(msg.rows)

	case snapshotDoneMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("snapshot failed: %v", msg.err), true)
		} else {
			m.setStatus(fmt.Sprintf("snapshot saved to %s", msg.path), false)
		}
		cmds = append(cmds, statusClearCmd())

	case statusClearMsg:
		m.statusMsg = ""
		m.statusIsError = false
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// An open prompt captures everything except escape and enter.
	if m.promptMode != promptNone {
		switch msg.String() {
		case "esc":
			m.promptMode = promptNone
			m.input.Blur()
			return m, nil
		case "enter":
			value := strings.TrimSpace(m.input.Value())
			mode := m.promptMode
			m.promptMode = promptNone
			m.input.Blur()
			if value == "" {
				return m, nil
			}
			return m.submitPrompt(mode, value)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp

	case "o":
		res := m.vis.Toggle(model.CategoryOrgan, !m.vis.State(model.CategoryOrgan))
		m.setStatus(fmt.Sprintf("organs: %d nodes toggled", res.Count), false)
		return m, statusClearCmd()

	case "g":
		if !m.genesLoaded && !m.genesLoading {
			m.genesLoading = true
			m.setStatus("loading genes from service...", false)
			return m, m.loadGenesCmd()
		}
		on := !m.vis.State(model.CategoryUniprot)
		m.vis.Toggle(model.CategoryUniprot, on)
		m.vis.Toggle(model.CategoryEnsembl, on)
		return m, nil

	case "p":
		return m.openPrompt(promptSMILES)

	case "t":
		return m.openPrompt(promptThreshold)

	case "a":
		return m, m.fetchAOPTableCmd()

	case "enter":
		if url := m.selectedWikiURL(); url != "" {
			if err := openURL(url); err != nil {
				m.setStatus(fmt.Sprintf("open: %v", err), true)
			} else {
				m.setStatus(fmt.Sprintf("opened %s", url), false)
			}
			return m, statusClearCmd()
		}

	case "tab":
		m.activeTable = (m.activeTable + 1) % 3
		m.selectedRow = 0

	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}

	case "down", "j":
		if m.selectedRow < activeRowCount(m.rows, m.activeTable)-1 {
			m.selectedRow++
		}

	case "+", "=":
		if m.labelSize < 24 {
			m.labelSize++
		}

	case "-":
		if m.labelSize > 6 {
			m.labelSize--
		}

	case "c":
		if url := m.selectedWikiURL(); url != "" {
			if err := clipboard.WriteAll(url); err != nil {
				m.setStatus(fmt.Sprintf("clipboard: %v", err), true)
			} else {
				m.setStatus(fmt.Sprintf("copied %s", url), false)
			}
			return m, statusClearCmd()
		}

	case "s":
		m.setStatus("rendering snapshot...", false)
		return m, m.snapshotCmd()

	case "r":
		m.sync.RefreshNow()
	}

	return m, nil
}

func (m Model) openPrompt(mode promptMode) (tea.Model, tea.Cmd) {
	m.promptMode = mode
	switch mode {
	case promptSMILES:
		m.input.Placeholder = "SMILES, e.g. CC(=O)Oc1ccccc1C(=O)O"
	case promptThreshold:
		m.input.Placeholder = fmt.Sprintf("score threshold, current %.1f", m.cfg.Prediction.Threshold)
	}
	m.input.SetValue("")
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) submitPrompt(mode promptMode, value string) (tea.Model, tea.Cmd) {
	switch mode {
	case promptSMILES:
		m.setStatus(fmt.Sprintf("predicting interactions for %s...", value), false)
		return m, m.predictCmd(value)

	case promptThreshold:
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil || threshold < 0 {
			m.setStatus(fmt.Sprintf("invalid threshold %q", value), true)
			return m, statusClearCmd()
		}
		m.cfg.Prediction.Threshold = threshold
		// Refilter the last prediction batch under the new threshold.
		if len(m.lastRecords) > 0 {
			targets := m.lastTargets
			if targets == nil {
				targets = m.cfg.Prediction.Models
			}
			rows, els := tablesync.BuildPredictionRows(m.lastRecords, targets, threshold)
			m.sync.SetPredictions(rows)
			if len(els) > 0 {
				m.store.UpsertElements(els)
			}
			m.setStatus(fmt.Sprintf("threshold %.1f: %d predictions remain", threshold, len(rows)), false)
		} else {
			m.setStatus(fmt.Sprintf("threshold set to %.1f", threshold), false)
		}
		return m, statusClearCmd()
	}
	return m, nil
}

// selectedWikiURL returns the AOP-Wiki link for the selected AOP row, if the
// AOP table is active and the row has a CURIE-backed relationship.
func (m Model) selectedWikiURL() string {
	if m.activeTable != tablesync.TableAOP {
		return ""
	}
	if m.selectedRow < 0 || m.selectedRow >= len(m.rows.AOP) {
		return ""
	}
	return m.rows.AOP[m.selectedRow].WikiURL()
}

// visibleMIEs returns the ids of currently visible MIE nodes.
func (m Model) visibleMIEs() []string {
	var ids []string
	for _, el := range visibility.VisibleElements(m.store) {
		if el.IsNode() && el.HasCategory(model.CategoryMIE) {
			ids = append(ids, el.ID())
		}
	}
	return ids
}

func (m *Model) setStatus(msg string, isError bool) {
	m.statusMsg = msg
	m.statusIsError = isError
	if isError {
		debug.Log("status error: %s", msg)
	}
}
