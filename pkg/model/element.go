// Package model defines the graph element model for aopview.
//
// Elements use the Cytoscape wire shape ({"group":"nodes","data":{...}})
// because that is what the AOP service speaks; the visible flag rides on the
// element itself rather than in a style map so the viewer can treat it as
// ordinary state.
package model

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Group identifies the element variant.
type Group string

const (
	// GroupNodes marks a node element.
	GroupNodes Group = "nodes"
	// GroupEdges marks an edge element.
	GroupEdges Group = "edges"
)

// Node category tags used throughout the viewer. Categories live in the
// space-separated Classes field, mirroring Cytoscape class lists.
const (
	CategoryOrgan    = "organ"
	CategoryUniprot  = "uniprot"
	CategoryEnsembl  = "ensembl"
	CategoryChemical = "chemical"
	CategoryMIE      = "mie"
	CategoryAO       = "ao"
	CategoryKE       = "ke"
)

// GeneCategories are the categories that make a node a gene node.
var GeneCategories = []string{CategoryUniprot, CategoryEnsembl}

// Data holds the id-bearing payload of an element.
type Data struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	// Type is the edge type tag (e.g. "interaction", "adjacent").
	Type string `json:"type,omitempty"`
	// Curie is the compact relationship identifier for AOP edges
	// (e.g. "aop.relationships:1234").
	Curie string `json:"curie,omitempty"`
	// Expression is a server-computed expression summary for gene nodes.
	Expression string `json:"expression,omitempty"`
}

// Element is the tagged node/edge variant stored in the graph.
type Element struct {
	Group   Group  `json:"group"`
	Data    Data   `json:"data"`
	Classes string `json:"classes,omitempty"`
	Visible bool   `json:"visible"`
}

// ID returns the element id.
func (e Element) ID() string { return e.Data.ID }

// IsNode reports whether the element is a node.
func (e Element) IsNode() bool { return e.Group == GroupNodes }

// IsEdge reports whether the element is an edge.
func (e Element) IsEdge() bool { return e.Group == GroupEdges }

// Categories returns the element's category tags.
func (e Element) Categories() []string {
	if e.Classes == "" {
		return nil
	}
	return strings.Fields(e.Classes)
}

// HasCategory reports whether the element carries the given category tag.
// For edges the type tag counts as a category so that e.g. "organ" edges
// toggle together with organ nodes.
func (e Element) HasCategory(category string) bool {
	if e.IsEdge() && e.Data.Type == category {
		return true
	}
	for _, c := range e.Categories() {
		if c == category {
			return true
		}
	}
	return false
}

// IsGene reports whether the element is a gene node (uniprot or ensembl).
func (e Element) IsGene() bool {
	if !e.IsNode() {
		return false
	}
	for _, c := range GeneCategories {
		if e.HasCategory(c) {
			return true
		}
	}
	return false
}

// AddCategory appends a category tag if not already present.
func (e *Element) AddCategory(category string) {
	if e.HasCategory(category) {
		return
	}
	if e.Classes == "" {
		e.Classes = category
		return
	}
	e.Classes += " " + category
}

// Validate reports why an element cannot be stored, or nil.
// Endpoint existence is the store's concern; this covers the shape only.
func (e Element) Validate() error {
	if e.Data.ID == "" {
		return fmt.Errorf("element has empty id")
	}
	switch e.Group {
	case GroupNodes:
		if e.Data.Source != "" || e.Data.Target != "" {
			return fmt.Errorf("node %q carries edge endpoints", e.Data.ID)
		}
	case GroupEdges:
		if e.Data.Source == "" || e.Data.Target == "" {
			return fmt.Errorf("edge %q missing source or target", e.Data.ID)
		}
	default:
		return fmt.Errorf("element %q has unknown group %q", e.Data.ID, e.Group)
	}
	return nil
}

// DisplayLabel returns the label, falling back to the id.
func (e Element) DisplayLabel() string {
	if e.Data.Label != "" {
		return e.Data.Label
	}
	return e.Data.ID
}

// MarshalElements encodes elements to JSON.
func MarshalElements(els []Element) ([]byte, error) {
	return json.Marshal(els)
}

// UnmarshalElements decodes a JSON element array.
func UnmarshalElements(raw []byte) ([]Element, error) {
	var els []Element
	if err := json.Unmarshal(raw, &els); err != nil {
		return nil, fmt.Errorf("decoding elements: %w", err)
	}
	return els, nil
}
