// Package backend adapts lane search requests to the upstream patent
// services. Every adapter speaks the same interface; the registry maps lane
// tags onto configured instances.
package backend

import (
	"context"

	"github.com/jl1nie/rrfusion/internal/model"
)

// SearchResult is a normalized lane response: ranked documents plus the
// backend-computed code frequency summary.
type SearchResult struct {
	Docs      []model.Document
	CodeFreqs model.CodeFreqs
}

// FieldMap is the doc_id -> field -> value shape returned by snippet and
// publication fetches.
type FieldMap map[string]map[string]string

// Backend serves one or more lanes.
type Backend interface {
	// Search executes a lane search. A 404 from the upstream yields an
	// empty result, not an error.
	Search(ctx context.Context, params model.SearchParams, lane model.Lane) (*SearchResult, error)

	// FetchSnippets returns truncated field text for the given ids.
	FetchSnippets(ctx context.Context, req model.GetSnippetsRequest) (FieldMap, error)

	// FetchPublication returns publication records by typed identifier,
	// resolving untyped identifiers first when the upstream requires it.
	FetchPublication(ctx context.Context, req model.GetPublicationRequest) (FieldMap, error)

	// Close releases held resources. Safe to call once per instance.
	Close() error
}
