package model

import "strings"

// AOPWikiBaseURL is the wiki endpoint CURIE links resolve against.
const AOPWikiBaseURL = "https://aopwiki.org/relationships/"

// PredictionRow is one row of the predictions table.
type PredictionRow struct {
	Compound string  `json:"compound"`
	Target   string  `json:"target"`
	Score    float64 `json:"score"`
}

// GeneRow is one row of the gene table.
type GeneRow struct {
	GeneID     string `json:"gene_id"`
	Expression string `json:"expression"`
}

// AOPRow is one row of the AOP relationships table.
type AOPRow struct {
	SourceLabel  string `json:"source_label"`
	SourceID     string `json:"source_id"`
	Relationship string `json:"relationship"` // CURIE
	TargetLabel  string `json:"target_label"`
	TargetID     string `json:"target_id"`
}

// WikiURL resolves the row's CURIE to an AOP-Wiki page URL.
// A CURIE like "aop.relationships:1234" maps to .../relationships/1234;
// an empty or malformed CURIE yields "".
func (r AOPRow) WikiURL() string {
	if r.Relationship == "" {
		return ""
	}
	idx := strings.LastIndexByte(r.Relationship, ':')
	if idx < 0 || idx == len(r.Relationship)-1 {
		return ""
	}
	return AOPWikiBaseURL + r.Relationship[idx+1:]
}
