package store

import (
	"testing"

	"github.com/vanderheijden86/aopview/pkg/model"
)

func node(id string, classes string) model.Element {
	return model.Element{Group: model.GroupNodes, Data: model.Data{ID: id, Label: id}, Classes: classes}
}

func edge(id, src, tgt string) model.Element {
	return model.Element{Group: model.GroupEdges, Data: model.Data{ID: id, Source: src, Target: tgt}}
}

func TestUpsertPartialBatch(t *testing.T) {
	s := New()

	report := s.UpsertElements([]model.Element{
		node("a", "mie"),
		node("b", "ke"),
		edge("a-b", "a", "b"),
		edge("a-x", "a", "x"), // x does not exist
		{Group: model.GroupNodes},        // empty id
		{Group: "weird", Data: model.Data{ID: "w"}}, // unknown group
	})

	if report.Inserted != 3 {
		t.Errorf("expected 3 inserted, got %d", report.Inserted)
	}
	if report.Skipped != 3 {
		t.Errorf("expected 3 skipped, got %d", report.Skipped)
	}
	if s.Len() != 3 {
		t.Errorf("expected 3 elements in store, got %d", s.Len())
	}
	if _, ok := s.Element("a-x"); ok {
		t.Error("edge with missing endpoint must not be stored")
	}
	if _, ok := s.Element("a-b"); !ok {
		t.Error("well-formed edge in the same batch must still be stored")
	}
}

func TestUpsertEdgeBeforeNodeInSameBatch(t *testing.T) {
	s := New()

	// Edge listed before its endpoints: the node pass runs first, so the
	// edge must still land.
	report := s.UpsertElements([]model.Element{
		edge("x-y", "x", "y"),
		node("x", ""),
		node("y", ""),
	})

	if report.Skipped != 0 {
		t.Errorf("expected 0 skipped, got %d (ids %v)", report.Skipped, report.SkippedIDs)
	}
	if _, ok := s.Element("x-y"); !ok {
		t.Error("edge with same-batch endpoints must be stored")
	}
}

func TestUpsertMergePreservesVisibility(t *testing.T) {
	s := New()
	s.UpsertElements([]model.Element{node("a", "organ")})
	s.SetVisibility(ByCategory(model.CategoryOrgan), true)

	s.UpsertElements([]model.Element{{
		Group:   model.GroupNodes,
		Data:    model.Data{ID: "a", Label: "Liver", Expression: "high"},
		Classes: "organ mie",
	}})

	el, _ := s.Element("a")
	if !el.Visible {
		t.Error("merge must not clear the visible flag")
	}
	if el.Data.Label != "Liver" {
		t.Errorf("merge should take incoming label, got %q", el.Data.Label)
	}
	if el.Data.Expression != "high" {
		t.Errorf("merge should take incoming expression, got %q", el.Data.Expression)
	}
	if !el.HasCategory(model.CategoryMIE) || !el.HasCategory(model.CategoryOrgan) {
		t.Errorf("merge should union categories, got %q", el.Classes)
	}
	if s.Len() != 1 {
		t.Errorf("merge must not duplicate elements, len = %d", s.Len())
	}
}

func TestElementsReturnsSnapshots(t *testing.T) {
	s := New()
	s.UpsertElements([]model.Element{node("a", "organ")})

	snap := s.Elements(nil)
	snap[0].Data.Label = "mutated"
	snap[0].Visible = true

	el, _ := s.Element("a")
	if el.Data.Label == "mutated" || el.Visible {
		t.Error("mutating a snapshot must not affect the store")
	}
}

func TestSetVisibilityCountsMatches(t *testing.T) {
	s := New()
	s.UpsertElements([]model.Element{
		node("o1", "organ"), node("o2", "organ"), node("m1", "mie"),
	})

	if got := s.SetVisibility(ByCategory(model.CategoryOrgan), true); got != 2 {
		t.Errorf("expected 2 matched, got %d", got)
	}
	visible := s.Elements(func(e model.Element) bool { return e.Visible })
	if len(visible) != 2 {
		t.Errorf("expected 2 visible elements, got %d", len(visible))
	}
	// Matching is independent of whether the flag actually flipped.
	if got := s.SetVisibility(ByCategory(model.CategoryOrgan), true); got != 2 {
		t.Errorf("expected 2 matched on repeat, got %d", got)
	}
}

func TestSubscribeDeliversAfterMutation(t *testing.T) {
	s := New()
	ch := s.Subscribe()

	s.UpsertElements([]model.Element{node("a", "")})

	ev := <-ch
	if ev.Kind != ChangeUpsert {
		t.Errorf("expected upsert event, got %v", ev.Kind)
	}
	if ev.Inserted != 1 || ev.Total != 1 {
		t.Errorf("unexpected event payload: %+v", ev)
	}
	// The store state the event describes must already be queryable.
	if s.Len() != 1 {
		t.Error("event delivered before mutation was applied")
	}
}

func TestSubscribeLatestWins(t *testing.T) {
	s := New()
	ch := s.Subscribe()

	// Nobody reads between mutations: the pending event must be replaced.
	s.UpsertElements([]model.Element{node("a", "")})
	s.UpsertElements([]model.Element{node("b", "")})
	s.SetVisibility(nil, true)

	ev := <-ch
	if ev.Kind != ChangeVisibility {
		t.Errorf("expected newest event (visibility), got %v", ev.Kind)
	}
	select {
	case extra := <-ch:
		t.Errorf("expected single coalesced event, got extra %+v", extra)
	default:
	}
}
