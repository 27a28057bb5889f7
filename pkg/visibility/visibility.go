// Package visibility translates category toggle changes into store
// mutations and decides when the layout must be re-run.
package visibility

import (
	"sort"
	"sync"

	"github.com/vanderheijden86/aopview/pkg/model"
	"github.com/vanderheijden86/aopview/pkg/store"
)

// ToggleResult reports what a toggle did.
type ToggleResult struct {
	// Count is the matching node count, shown as the "(N)" badge. Edges
	// flipped along with the toggle do not count.
	Count int
	// NeedsLayout is true when a hidden->visible transition revealed at
	// least one element; newly shown elements have no usable positions.
	NeedsLayout bool
}

// Controller owns the category toggle state. Toggle state starts false
// (hidden) for every category and is mutated only here, never by fetches.
type Controller struct {
	mu    sync.Mutex
	store *store.Store
	state map[string]bool
}

// New creates a controller over the given store with all categories hidden.
func New(s *store.Store) *Controller {
	return &Controller{store: s, state: make(map[string]bool)}
}

// Toggle sets the category's visibility and applies it to the store.
// hidden->visible with at least one matching element requires a layout pass;
// visible->hidden never does.
func (c *Controller) Toggle(category string, on bool) ToggleResult {
	c.mu.Lock()
	prev := c.state[category]
	c.state[category] = on
	c.mu.Unlock()

	matched := c.store.SetVisibility(store.ByCategory(category), on)
	return ToggleResult{
		Count:       c.store.CountCategory(category),
		NeedsLayout: on && !prev && matched > 0,
	}
}

// State returns the toggle state for a category (false when never toggled).
func (c *Controller) State(category string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[category]
}

// Count recomputes the number of elements currently tagged with category,
// for the "(N)" badge next to the toggle.
func (c *Controller) Count(category string) int {
	return c.store.CountCategory(category)
}

// Categories returns the categories that have been toggled at least once,
// sorted for stable display.
func (c *Controller) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.state))
	for cat := range c.state {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// EffectivelyVisible reports whether an element should actually render.
// Nodes render when their own flag is set. An edge renders only when its own
// flag is set and both endpoints are currently visible; the rule is
// evaluated per render pass, so re-showing an endpoint brings a
// visible-flagged edge back without another toggle.
func EffectivelyVisible(s *store.Store, e model.Element) bool {
	if !e.Visible {
		return false
	}
	if e.IsNode() {
		return true
	}
	src, ok := s.Element(e.Data.Source)
	if !ok || !src.Visible {
		return false
	}
	tgt, ok := s.Element(e.Data.Target)
	return ok && tgt.Visible
}

// VisibleElements returns snapshot copies of everything that should render.
// It works on a single snapshot so the endpoint rule sees one consistent
// state and never re-enters the store lock.
func VisibleElements(s *store.Store) []model.Element {
	els := s.Elements(nil)
	nodes := make(map[string]bool, len(els))
	for _, e := range els {
		if e.IsNode() && e.Visible {
			nodes[e.ID()] = true
		}
	}

	out := make([]model.Element, 0, len(els))
	for _, e := range els {
		if !e.Visible {
			continue
		}
		if e.IsNode() {
			out = append(out, e)
			continue
		}
		if nodes[e.Data.Source] && nodes[e.Data.Target] {
			out = append(out, e)
		}
	}
	return out
}
