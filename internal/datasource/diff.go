package datasource

import (
	"fmt"

	"github.com/vanderheijden86/aopview/pkg/model"
)

// SourceDiff represents differences between two element sources, typically
// a JSON export and the SQLite cache derived from it.
type SourceDiff struct {
	// SourceA is the path of the first source
	SourceA string
	// SourceB is the path of the second source
	SourceB string
	// MissingInA contains element IDs present in B but not in A
	MissingInA []string
	// MissingInB contains element IDs present in A but not in B
	MissingInB []string
	// ClassMismatch contains elements whose category classes differ
	ClassMismatch []ClassDifference
	// CountA is the number of elements in source A
	CountA int
	// CountB is the number of elements in source B
	CountB int
}

// ClassDifference records a class mismatch for a single element
type ClassDifference struct {
	ID       string `json:"id"`
	ClassesA string `json:"classes_a"`
	ClassesB string `json:"classes_b"`
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || len(d.ClassMismatch) > 0
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d elements each)", d.CountA)
	}

	summary := fmt.Sprintf("Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)

	if d.CountA != d.CountB {
		summary += fmt.Sprintf("  - Count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}

	if len(d.MissingInA) > 0 {
		summary += fmt.Sprintf("  - %d elements in %s but not %s\n", len(d.MissingInA), d.SourceB, d.SourceA)
		if len(d.MissingInA) <= 5 {
			for _, id := range d.MissingInA {
				summary += fmt.Sprintf("    - %s\n", id)
			}
		}
	}

	if len(d.MissingInB) > 0 {
		summary += fmt.Sprintf("  - %d elements in %s but not %s\n", len(d.MissingInB), d.SourceA, d.SourceB)
		if len(d.MissingInB) <= 5 {
			for _, id := range d.MissingInB {
				summary += fmt.Sprintf("    - %s\n", id)
			}
		}
	}

	if len(d.ClassMismatch) > 0 {
		summary += fmt.Sprintf("  - %d elements with different classes\n", len(d.ClassMismatch))
		if len(d.ClassMismatch) <= 5 {
			for _, m := range d.ClassMismatch {
				summary += fmt.Sprintf("    - %s: %q vs %q\n", m.ID, m.ClassesA, m.ClassesB)
			}
		}
	}

	return summary
}

// DetectInconsistencies compares two element sets and returns differences.
// Class strings are compared after whitespace normalization so formatting
// noise in exports does not report as drift.
func DetectInconsistencies(elsA, elsB []model.Element, sourceA, sourceB string) SourceDiff {
	diff := SourceDiff{
		SourceA: sourceA,
		SourceB: sourceB,
	}

	mapA := make(map[string]model.Element)
	for _, el := range elsA {
		mapA[el.ID()] = el
	}

	mapB := make(map[string]model.Element)
	for _, el := range elsB {
		mapB[el.ID()] = el
	}

	diff.CountA = len(mapA)
	diff.CountB = len(mapB)

	for id := range mapA {
		if _, exists := mapB[id]; !exists {
			diff.MissingInB = append(diff.MissingInB, id)
		}
	}

	for id, elB := range mapB {
		elA, exists := mapA[id]
		if !exists {
			diff.MissingInA = append(diff.MissingInA, id)
			continue
		}
		if normalizeClasses(elA.Classes) != normalizeClasses(elB.Classes) {
			diff.ClassMismatch = append(diff.ClassMismatch, ClassDifference{
				ID:       id,
				ClassesA: elA.Classes,
				ClassesB: elB.Classes,
			})
		}
	}

	return diff
}

// CompareSources loads and compares two data sources
func CompareSources(sourceA, sourceB DataSource) (*SourceDiff, error) {
	elsA, err := LoadFromSource(sourceA)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Path, err)
	}

	elsB, err := LoadFromSource(sourceB)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Path, err)
	}

	diff := DetectInconsistencies(elsA, elsB, sourceA.Path, sourceB.Path)
	return &diff, nil
}
