// Package tablesync keeps the auxiliary tables consistent with the latest
// graph state and fetch responses.
//
// The synchronizer listens for store change notifications and recomputes its
// rows after a debounce window, so a burst of rapid mutations produces a
// single refresh reflecting the state after the last mutation. Table content
// is always replaced wholesale, never patched; with tens to low hundreds of
// rows the redraw cost is irrelevant next to the consistency win.
package tablesync

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vanderheijden86/aopview/pkg/debug"
	"github.com/vanderheijden86/aopview/pkg/model"
	"github.com/vanderheijden86/aopview/pkg/remote"
	"github.com/vanderheijden86/aopview/pkg/store"
	"github.com/vanderheijden86/aopview/pkg/watcher"
)

// Defaults for the refresh timing contract.
const (
	// DefaultDebounce coalesces mutation bursts into one refresh.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultTransition is the extra fade delay before rows swap in. It
	// never extends the debounce window itself.
	DefaultTransition = 100 * time.Millisecond
)

// PlaceholderNoData is rendered instead of an empty table body.
const PlaceholderNoData = "no data available"

// Table identifies one auxiliary table.
type Table int

const (
	TablePredictions Table = iota
	TableGenes
	TableAOP
)

func (t Table) String() string {
	switch t {
	case TablePredictions:
		return "predictions"
	case TableGenes:
		return "genes"
	case TableAOP:
		return "aop"
	default:
		return "unknown"
	}
}

// Rows is the full content of all three tables. Rows are derived state,
// always recomputed from the store and the last fetch response.
type Rows struct {
	Predictions []model.PredictionRow
	Genes       []model.GeneRow
	AOP         []model.AOPRow
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(s *Synchronizer) { s.debouncer = watcher.NewDebouncer(d) }
}

// WithTransition sets the visual transition delay (0 disables it).
func WithTransition(d time.Duration) Option {
	return func(s *Synchronizer) { s.transition = d }
}

// WithOnRefresh sets the callback invoked with the new rows after every
// refresh. The callback runs off the caller's goroutine.
func WithOnRefresh(fn func(Rows)) Option {
	return func(s *Synchronizer) { s.onRefresh = fn }
}

// Synchronizer drives the auxiliary tables.
type Synchronizer struct {
	store      *store.Store
	debouncer  *watcher.Debouncer
	transition time.Duration
	onRefresh  func(Rows)

	mu   sync.Mutex
	rows Rows
	// fetched marks tables whose content came from a server response;
	// those are not overwritten by store-derived recomputes until the
	// next fetch replaces them.
	fetched map[Table]bool

	refreshes atomic.Uint64
}

// New creates a synchronizer over the given store.
func New(st *store.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:      st,
		debouncer:  watcher.NewDebouncer(DefaultDebounce),
		transition: DefaultTransition,
		onRefresh:  func(Rows) {},
		fetched:    make(map[Table]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to store changes and refreshes until ctx is cancelled.
func (s *Synchronizer) Start(ctx context.Context) {
	sub := s.store.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				s.debouncer.Cancel()
				return
			case ev := <-sub:
				debug.Log("tablesync: change %s, scheduling refresh", ev.Kind)
				s.debouncer.Trigger(s.refresh)
			}
		}
	}()
}

// RefreshNow recomputes immediately, bypassing the debounce window. Used for
// the initial refresh when the view comes up with a populated store.
func (s *Synchronizer) RefreshNow() {
	s.refresh()
}

// refresh derives rows from the current store snapshot. The snapshot is
// taken once per refresh; by the time the debounce timer fired, any mutation
// burst has been fully applied, so the refresh never observes partial state.
func (s *Synchronizer) refresh() {
	els := s.store.Elements(nil)
	genes := deriveGeneRows(els)
	aop := deriveAOPRows(s.store, els)

	if s.transition > 0 {
		time.Sleep(s.transition)
	}

	s.mu.Lock()
	if !s.fetched[TableGenes] {
		s.rows.Genes = genes
	}
	if !s.fetched[TableAOP] {
		s.rows.AOP = aop
	}
	rows := s.rows
	s.mu.Unlock()

	s.refreshes.Add(1)
	s.onRefresh(rows)
}

// SetPredictions replaces the predictions table with fetched rows.
func (s *Synchronizer) SetPredictions(rows []model.PredictionRow) {
	s.setFetched(TablePredictions, func(r *Rows) { r.Predictions = rows })
}

// SetGeneRows replaces the gene table with server-computed rows.
func (s *Synchronizer) SetGeneRows(rows []model.GeneRow) {
	s.setFetched(TableGenes, func(r *Rows) { r.Genes = rows })
}

// SetAOPRows replaces the AOP table with server-computed rows.
func (s *Synchronizer) SetAOPRows(rows []model.AOPRow) {
	s.setFetched(TableAOP, func(r *Rows) { r.AOP = rows })
}

func (s *Synchronizer) setFetched(t Table, apply func(*Rows)) {
	s.mu.Lock()
	apply(&s.rows)
	s.fetched[t] = true
	rows := s.rows
	s.mu.Unlock()
	s.onRefresh(rows)
}

// Rows returns the current table content.
func (s *Synchronizer) Rows() Rows {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// RefreshCount returns the number of debounced refreshes performed.
func (s *Synchronizer) RefreshCount() uint64 {
	return s.refreshes.Load()
}

// deriveGeneRows builds gene rows from gene nodes in the snapshot.
func deriveGeneRows(els []model.Element) []model.GeneRow {
	var rows []model.GeneRow
	for _, el := range els {
		if !el.IsGene() {
			continue
		}
		rows = append(rows, model.GeneRow{
			GeneID:     el.ID(),
			Expression: el.Data.Expression,
		})
	}
	return rows
}

// deriveAOPRows builds relationship rows from CURIE-tagged edges.
func deriveAOPRows(st *store.Store, els []model.Element) []model.AOPRow {
	var rows []model.AOPRow
	for _, el := range els {
		if !el.IsEdge() || el.Data.Curie == "" {
			continue
		}
		row := model.AOPRow{
			SourceID:     el.Data.Source,
			Relationship: el.Data.Curie,
			TargetID:     el.Data.Target,
		}
		if src, ok := st.Element(el.Data.Source); ok {
			row.SourceLabel = src.DisplayLabel()
		}
		if tgt, ok := st.Element(el.Data.Target); ok {
			row.TargetLabel = tgt.DisplayLabel()
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildPredictionRows filters prediction records against the threshold and
// materializes one table row plus one chemical-interaction edge (with its
// chemical node) per passing score. modelTargets maps model names to target
// event ids, as returned by the case-MIE-model endpoint.
func BuildPredictionRows(records []remote.PredictionRecord, modelTargets map[string]string, threshold float64) ([]model.PredictionRow, []model.Element) {
	var rows []model.PredictionRow
	var els []model.Element
	seen := make(map[string]bool)

	for _, rec := range records {
		names := make([]string, 0, len(rec.Scores))
		for name := range rec.Scores {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			score := rec.Scores[name]
			if score < threshold {
				continue
			}
			target := modelTargets[name]
			if target == "" {
				target = name
			}
			rows = append(rows, model.PredictionRow{
				Compound: rec.SMILES,
				Target:   target,
				Score:    score,
			})
			if !seen[rec.SMILES] {
				seen[rec.SMILES] = true
				els = append(els, model.Element{
					Group:   model.GroupNodes,
					Data:    model.Data{ID: rec.SMILES, Label: rec.SMILES},
					Classes: model.CategoryChemical,
					Visible: true,
				})
			}
			els = append(els, model.Element{
				Group: model.GroupEdges,
				Data: model.Data{
					ID:     rec.SMILES + "-" + target,
					Source: rec.SMILES,
					Target: target,
					Type:   "interaction",
				},
				Visible: true,
			})
		}
	}
	return rows, els
}
