package tablesync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vanderheijden86/aopview/pkg/model"
	"github.com/vanderheijden86/aopview/pkg/remote"
	"github.com/vanderheijden86/aopview/pkg/store"
)

func node(id, classes string) model.Element {
	return model.Element{Group: model.GroupNodes, Data: model.Data{ID: id, Label: id}, Classes: classes}
}

func TestBurstProducesSingleRefresh(t *testing.T) {
	st := store.New()

	var mu sync.Mutex
	var refreshed []Rows
	s := New(st,
		WithDebounce(80*time.Millisecond),
		WithTransition(0),
		WithOnRefresh(func(r Rows) {
			mu.Lock()
			refreshed = append(refreshed, r)
			mu.Unlock()
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	// Burst of mutations well inside the debounce window.
	for i := 0; i < 5; i++ {
		st.UpsertElements([]model.Element{
			node("g"+string(rune('a'+i)), "uniprot"),
		})
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)

	if got := s.RefreshCount(); got != 1 {
		t.Errorf("expected exactly 1 refresh for the burst, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(refreshed) != 1 {
		t.Fatalf("expected 1 callback, got %d", len(refreshed))
	}
	// The single refresh must reflect the state after the last mutation.
	if len(refreshed[0].Genes) != 5 {
		t.Errorf("refresh saw %d gene rows, want 5", len(refreshed[0].Genes))
	}
}

func TestLaterMutationSupersedesPendingRefresh(t *testing.T) {
	st := store.New()
	s := New(st, WithDebounce(60*time.Millisecond), WithTransition(0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	st.UpsertElements([]model.Element{node("g1", "uniprot")})
	time.Sleep(30 * time.Millisecond)
	// Still inside the window: reschedules rather than stacking.
	st.UpsertElements([]model.Element{node("g2", "uniprot")})

	time.Sleep(250 * time.Millisecond)

	if got := s.RefreshCount(); got != 1 {
		t.Errorf("expected 1 coalesced refresh, got %d", got)
	}
	if got := len(s.Rows().Genes); got != 2 {
		t.Errorf("expected rows for final state (2 genes), got %d", got)
	}
}

func TestDerivedAOPRows(t *testing.T) {
	st := store.New()
	st.UpsertElements([]model.Element{
		node("mie1", "mie"),
		node("ao1", "ao"),
		{Group: model.GroupEdges, Data: model.Data{
			ID: "r1", Source: "mie1", Target: "ao1", Curie: "aop.relationships:99",
		}},
		{Group: model.GroupEdges, Data: model.Data{
			ID: "plain", Source: "mie1", Target: "ao1",
		}},
	})

	s := New(st, WithTransition(0))
	s.RefreshNow()

	rows := s.Rows().AOP
	if len(rows) != 1 {
		t.Fatalf("expected 1 AOP row (CURIE edges only), got %d", len(rows))
	}
	r := rows[0]
	if r.SourceID != "mie1" || r.TargetID != "ao1" || r.Relationship != "aop.relationships:99" {
		t.Errorf("unexpected row: %+v", r)
	}
	if r.SourceLabel != "mie1" || r.TargetLabel != "ao1" {
		t.Errorf("labels not resolved: %+v", r)
	}
}

func TestFetchedRowsSurviveStoreRefresh(t *testing.T) {
	st := store.New()
	st.UpsertElements([]model.Element{node("g1", "uniprot")})

	s := New(st, WithTransition(0))
	s.SetGeneRows([]model.GeneRow{{GeneID: "server-g", Expression: "up"}})

	// A store-derived refresh must not clobber server-computed rows.
	s.RefreshNow()

	rows := s.Rows().Genes
	if len(rows) != 1 || rows[0].GeneID != "server-g" {
		t.Errorf("fetched gene rows were overwritten: %+v", rows)
	}
}

func TestFailedFetchLeavesRowsUnchanged(t *testing.T) {
	st := store.New()
	st.UpsertElements([]model.Element{node("g1", "uniprot")})

	s := New(st, WithTransition(0))
	s.RefreshNow()
	before := s.Rows()
	elementsBefore := st.Len()

	// A failed fetch never reaches SetPredictions/SetGeneRows/SetAOPRows
	// and never mutates the store; nothing to apply means nothing changes.
	after := s.Rows()
	if len(after.Genes) != len(before.Genes) || len(after.Predictions) != len(before.Predictions) {
		t.Error("rows changed without a successful fetch")
	}
	if st.Len() != elementsBefore {
		t.Error("store changed without a successful fetch")
	}
}

func TestBuildPredictionRowsThreshold(t *testing.T) {
	records := []remote.PredictionRecord{
		{SMILES: "CCO", Scores: map[string]float64{"modelA": 7.2}},
	}
	targets := map[string]string{"modelA": "mie1"}

	rows, els := BuildPredictionRows(records, targets, 6.5)
	if len(rows) != 1 {
		t.Fatalf("threshold 6.5: expected 1 row, got %d", len(rows))
	}
	if rows[0].Compound != "CCO" || rows[0].Target != "mie1" || rows[0].Score != 7.2 {
		t.Errorf("unexpected row: %+v", rows[0])
	}
	// One chemical node plus one interaction edge.
	if len(els) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(els))
	}
	if !els[0].IsNode() || !els[0].HasCategory(model.CategoryChemical) {
		t.Errorf("expected chemical node, got %+v", els[0])
	}
	if !els[1].IsEdge() || els[1].Data.Type != "interaction" || els[1].Data.Target != "mie1" {
		t.Errorf("expected interaction edge, got %+v", els[1])
	}

	rows, els = BuildPredictionRows(records, targets, 8.0)
	if len(rows) != 0 || len(els) != 0 {
		t.Errorf("threshold 8.0: expected no rows/elements, got %d/%d", len(rows), len(els))
	}
}

func TestTransitionDelayDoesNotChangeRefreshCount(t *testing.T) {
	st := store.New()
	s := New(st, WithDebounce(50*time.Millisecond), WithTransition(40*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	st.UpsertElements([]model.Element{node("g1", "uniprot")})
	st.UpsertElements([]model.Element{node("g2", "uniprot")})

	time.Sleep(300 * time.Millisecond)

	if got := s.RefreshCount(); got != 1 {
		t.Errorf("transition delay must not split the refresh, got %d", got)
	}
}
