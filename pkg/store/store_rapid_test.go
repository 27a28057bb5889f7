package store

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/aopview/pkg/model"
)

// Upserting the same batch twice must leave the store unchanged after the
// first application (idempotent upsert).
func TestUpsertIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,8}`), 1, 12, rapid.ID[string]).Draw(t, "ids")

		batch := make([]model.Element, 0, len(ids)*2)
		for _, id := range ids {
			batch = append(batch, model.Element{
				Group:   model.GroupNodes,
				Data:    model.Data{ID: id},
				Classes: rapid.SampledFrom([]string{"", "organ", "mie", "ke uniprot"}).Draw(t, "classes"),
			})
		}
		for i := 1; i < len(ids); i++ {
			if rapid.Bool().Draw(t, "edge") {
				batch = append(batch, model.Element{
					Group: model.GroupEdges,
					Data:  model.Data{ID: ids[i-1] + "->" + ids[i], Source: ids[i-1], Target: ids[i]},
				})
			}
		}

		s := New()
		s.UpsertElements(batch)
		first := s.Elements(nil)

		s.UpsertElements(batch)
		second := s.Elements(nil)

		if len(first) != len(second) {
			t.Fatalf("re-upsert changed element count: %d -> %d", len(first), len(second))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("re-upsert changed element %q: %+v -> %+v", first[i].ID(), first[i], second[i])
			}
		}
	})
}

// Toggling a category hidden->visible->hidden restores the original
// visible-flag set for every element (idempotent round trip).
func TestVisibilityRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,8}`), 1, 16, rapid.ID[string]).Draw(t, "ids")
		category := rapid.SampledFrom([]string{"organ", "mie", "uniprot"}).Draw(t, "category")

		s := New()
		var batch []model.Element
		for _, id := range ids {
			classes := ""
			if rapid.Bool().Draw(t, "tagged") {
				classes = category
			}
			batch = append(batch, model.Element{Group: model.GroupNodes, Data: model.Data{ID: id}, Classes: classes})
		}
		s.UpsertElements(batch)

		before := s.Elements(nil)

		s.SetVisibility(ByCategory(category), true)
		s.SetVisibility(ByCategory(category), false)

		after := s.Elements(nil)
		for i := range before {
			if before[i].Visible != after[i].Visible {
				t.Fatalf("element %q visible flag not restored: %v -> %v",
					before[i].ID(), before[i].Visible, after[i].Visible)
			}
		}
	})
}
