// Package model defines the typed value objects of the fusion engine:
// lanes, filters, search parameters, documents, runs, recipes, and the
// request/response shapes of the orchestrator operations.
package model

import "strings"

// Lane identifies one retrieval channel.
type Lane string

const (
	LaneFulltext      Lane = "fulltext"
	LaneSemantic      Lane = "semantic"
	LaneOriginalDense Lane = "original_dense"
)

// Lanes lists the fixed lane tags.
var Lanes = []Lane{LaneFulltext, LaneSemantic, LaneOriginalDense}

// Valid reports whether the lane tag is one of the fixed set.
func (l Lane) Valid() bool {
	switch l {
	case LaneFulltext, LaneSemantic, LaneOriginalDense:
		return true
	}
	return false
}

// Role returns the contribution bucket for the lane: "recall" for fulltext
// lanes, "semantic" for dense lanes.
func (l Lane) Role() string {
	if l == LaneFulltext {
		return "recall"
	}
	return "semantic"
}

// ParseLane parses a lane tag, case-insensitively.
func ParseLane(s string) (Lane, bool) {
	l := Lane(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Valid()
}

// LaneFromRunID derives the lane from a lane-run handle such as
// "fulltext-a1b2c3d4". Returns false for fusion runs and unknown prefixes.
func LaneFromRunID(runID string) (Lane, bool) {
	idx := strings.LastIndex(runID, "-")
	if idx <= 0 {
		return "", false
	}
	return ParseLane(runID[:idx])
}

// SemanticStyle selects the dense variant for semantic searches.
type SemanticStyle string

const (
	SemanticDefault       SemanticStyle = "default"
	SemanticOriginalDense SemanticStyle = "original_dense"
)

// Valid reports whether the style is known.
func (s SemanticStyle) Valid() bool {
	return s == SemanticDefault || s == SemanticOriginalDense
}

// FeatureScope narrows which document text feeds the dense encoder.
type FeatureScope string

const (
	ScopeWide            FeatureScope = "wide"
	ScopeTitleAbstClaims FeatureScope = "title_abst_claims"
	ScopeClaimsOnly      FeatureScope = "claims_only"
	ScopeTopClaim        FeatureScope = "top_claim"
	ScopeBackgroundJP    FeatureScope = "background_jp"
)

// Valid reports whether the scope is known. Empty means unset.
func (s FeatureScope) Valid() bool {
	switch s {
	case "", ScopeWide, ScopeTitleAbstClaims, ScopeClaimsOnly, ScopeTopClaim, ScopeBackgroundJP:
		return true
	}
	return false
}

// Taxonomies lists the classification code families carried on documents.
var Taxonomies = []string{"ipc", "cpc", "fi", "ft"}
