// Package store holds the single mutable element set behind the viewer.
//
// The store is the only owner of graph elements; every other component works
// with snapshot copies and re-queries rather than caching references. All
// mutations run on one logical thread of control (the Bubble Tea update
// loop); the mutex exists so the watcher and fetch goroutines can hand data
// off safely.
package store

import (
	"sync"

	"github.com/vanderheijden86/aopview/pkg/debug"
	"github.com/vanderheijden86/aopview/pkg/model"
)

// ChangeKind tags a change notification.
type ChangeKind int

const (
	// ChangeUpsert is emitted after an element batch was applied.
	ChangeUpsert ChangeKind = iota
	// ChangeVisibility is emitted after a visibility mutation.
	ChangeVisibility
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUpsert:
		return "upsert"
	case ChangeVisibility:
		return "visibility"
	default:
		return "unknown"
	}
}

// ChangeEvent is the typed payload delivered to subscribers after a mutation
// has been fully applied. A subscriber never observes a half-applied batch.
type ChangeEvent struct {
	Kind     ChangeKind
	Inserted int
	Merged   int
	Skipped  int
	Matched  int // visibility mutations: elements whose flag was set
	Total    int // element count after the mutation
}

// UpsertReport summarizes a single upsert batch.
type UpsertReport struct {
	Inserted   int
	Merged     int
	Skipped    int
	SkippedIDs []string
}

// Predicate selects elements. A nil Predicate matches everything.
type Predicate func(model.Element) bool

// ByCategory returns a predicate matching elements tagged with category.
func ByCategory(category string) Predicate {
	return func(e model.Element) bool { return e.HasCategory(category) }
}

// Store is the mutable graph element set.
type Store struct {
	mu       sync.RWMutex
	elements map[string]model.Element
	order    []string // insertion order, for stable snapshots

	subMu sync.Mutex
	subs  []chan ChangeEvent
}

// New creates an empty store.
func New() *Store {
	return &Store{elements: make(map[string]model.Element)}
}

// UpsertElements inserts new elements or merges into existing ones by id.
// Nodes in the batch are applied before edges so a batch may introduce an
// edge together with its endpoints. Malformed entries (empty id, unknown
// group, edge referencing a missing node) are logged and skipped without
// aborting the batch. Exactly one change event is emitted for the batch.
func (s *Store) UpsertElements(els []model.Element) UpsertReport {
	var report UpsertReport

	s.mu.Lock()
	// Two passes: nodes first, then edges, so endpoint checks see
	// same-batch nodes.
	for _, pass := range []model.Group{model.GroupNodes, model.GroupEdges} {
		for _, el := range els {
			if el.Group != pass {
				continue
			}
			s.applyOne(el, &report)
		}
	}
	// Anything with an unknown group never matched a pass; count it skipped.
	for _, el := range els {
		if el.Group != model.GroupNodes && el.Group != model.GroupEdges {
			debug.Log("store: skipping element %q: unknown group %q", el.Data.ID, el.Group)
			report.Skipped++
			report.SkippedIDs = append(report.SkippedIDs, el.Data.ID)
		}
	}
	total := len(s.order)
	s.mu.Unlock()

	s.notify(ChangeEvent{
		Kind:     ChangeUpsert,
		Inserted: report.Inserted,
		Merged:   report.Merged,
		Skipped:  report.Skipped,
		Total:    total,
	})
	return report
}

// applyOne validates and applies a single element. Caller holds the lock.
func (s *Store) applyOne(el model.Element, report *UpsertReport) {
	if err := el.Validate(); err != nil {
		debug.Log("store: skipping element: %v", err)
		report.Skipped++
		report.SkippedIDs = append(report.SkippedIDs, el.Data.ID)
		return
	}
	if el.IsEdge() {
		if !s.nodeExistsLocked(el.Data.Source) || !s.nodeExistsLocked(el.Data.Target) {
			debug.Log("store: skipping edge %q: endpoint missing (%s -> %s)",
				el.Data.ID, el.Data.Source, el.Data.Target)
			report.Skipped++
			report.SkippedIDs = append(report.SkippedIDs, el.Data.ID)
			return
		}
	}

	existing, ok := s.elements[el.Data.ID]
	if !ok {
		s.elements[el.Data.ID] = el
		s.order = append(s.order, el.Data.ID)
		report.Inserted++
		return
	}
	s.elements[el.Data.ID] = merge(existing, el)
	report.Merged++
}

func (s *Store) nodeExistsLocked(id string) bool {
	el, ok := s.elements[id]
	return ok && el.IsNode()
}

// merge folds incoming element data into an existing one. Non-empty incoming
// fields win; the visible flag is owned by the visibility controller and is
// never touched by a merge.
func merge(existing, incoming model.Element) model.Element {
	out := existing
	if incoming.Data.Label != "" {
		out.Data.Label = incoming.Data.Label
	}
	if incoming.Data.Type != "" {
		out.Data.Type = incoming.Data.Type
	}
	if incoming.Data.Curie != "" {
		out.Data.Curie = incoming.Data.Curie
	}
	if incoming.Data.Expression != "" {
		out.Data.Expression = incoming.Data.Expression
	}
	for _, c := range incoming.Categories() {
		out.AddCategory(c)
	}
	return out
}

// SetVisibility sets the visible flag on all elements matching pred and
// returns the match count. Elements are never removed. One change event is
// emitted after the whole mutation is applied.
func (s *Store) SetVisibility(pred Predicate, visible bool) int {
	matched := 0

	s.mu.Lock()
	for _, id := range s.order {
		el := s.elements[id]
		if pred != nil && !pred(el) {
			continue
		}
		matched++
		if el.Visible != visible {
			el.Visible = visible
			s.elements[id] = el
		}
	}
	total := len(s.order)
	s.mu.Unlock()

	s.notify(ChangeEvent{Kind: ChangeVisibility, Matched: matched, Total: total})
	return matched
}

// Elements returns snapshot copies of matching elements in insertion order.
// A nil predicate matches everything.
func (s *Store) Elements(pred Predicate) []model.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Element, 0, len(s.order))
	for _, id := range s.order {
		el := s.elements[id]
		if pred != nil && !pred(el) {
			continue
		}
		out = append(out, el)
	}
	return out
}

// Element returns a snapshot copy of the element with the given id.
func (s *Store) Element(id string) (model.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	return el, ok
}

// Len returns the element count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// CountCategory returns the number of nodes tagged with category. Edges can
// match a category through their type tag, but they never count toward the
// "(N)" badge.
func (s *Store) CountCategory(category string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, id := range s.order {
		el := s.elements[id]
		if el.IsNode() && el.HasCategory(category) {
			n++
		}
	}
	return n
}

// Subscribe registers a change listener. The channel is buffered with
// capacity one; when a subscriber lags, the stale event is replaced by the
// newest one (latest-wins), so a slow consumer always wakes up to the most
// recent state and can re-query the store.
func (s *Store) Subscribe() <-chan ChangeEvent {
	ch := make(chan ChangeEvent, 1)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// Subscribers returns the number of registered listeners. Subscriptions live
// for the whole page, so callers must subscribe once and reuse the channel.
func (s *Store) Subscribers() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

func (s *Store) notify(ev ChangeEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Drop the stale pending event, then deliver the new one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
