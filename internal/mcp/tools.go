package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/model"
)

// SimpleSearchInput is the argument shape of the convenience search tools.
type SimpleSearchInput struct {
	Query   string `json:"query" jsonschema:"the search query text"`
	Filters any    `json:"filters,omitempty" jsonschema:"filter conditions, flat or grouped"`
	TopK    int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default 800"`
	TraceID string `json:"trace_id,omitempty" jsonschema:"caller-provided trace id for log correlation"`
}

// SimpleSearchOutput is the id-list result of the convenience search tools.
type SimpleSearchOutput struct {
	RunID  string   `json:"run_id" jsonschema:"lane-run handle for later blend calls"`
	DocIDs []string `json:"doc_ids" jsonschema:"ranked document identifiers, best first"`
	Count  int      `json:"count" jsonschema:"number of identifiers returned"`
	TookMS int64    `json:"took_ms" jsonschema:"wall-clock duration in milliseconds"`
}

// RawFulltextInput is the full parameter set of the lexical lane search.
type RawFulltextInput struct {
	Query       string             `json:"query" jsonschema:"lexical query string"`
	Filters     any                `json:"filters,omitempty" jsonschema:"filter conditions, flat or grouped"`
	Fields      []string           `json:"fields,omitempty" jsonschema:"fields to search, default abst/title/claim"`
	TopK        int                `json:"top_k,omitempty" jsonschema:"maximum number of results, default 800"`
	FieldBoosts map[string]float64 `json:"field_boosts,omitempty" jsonschema:"per-field boost multipliers"`
	TraceID     string             `json:"trace_id,omitempty" jsonschema:"caller-provided trace id"`
}

// RawSemanticInput is the full parameter set of the dense lane search.
type RawSemanticInput struct {
	Text          string   `json:"text" jsonschema:"natural-language query text"`
	Filters       any      `json:"filters,omitempty" jsonschema:"filter conditions, flat or grouped"`
	Fields        []string `json:"fields,omitempty" jsonschema:"fields to return, default abst/title/claim"`
	TopK          int      `json:"top_k,omitempty" jsonschema:"maximum number of results, default 800"`
	SemanticStyle string   `json:"semantic_style,omitempty" jsonschema:"dense variant: default or original_dense"`
	FeatureScope  string   `json:"feature_scope,omitempty" jsonschema:"document text scope fed to the encoder"`
	TraceID       string   `json:"trace_id,omitempty" jsonschema:"caller-provided trace id"`
}

// BlendInput is the fusion request shape.
type BlendInput struct {
	Runs            any                    `json:"runs" jsonschema:"source lane runs: objects with lane and run_id, or bare run-id strings"`
	Weights         map[string]float64     `json:"weights,omitempty" jsonschema:"lane and boost weights keyed by lane or role"`
	RRFK            int                    `json:"rrf_k,omitempty" jsonschema:"RRF tail constant, default 60"`
	BetaFuse        float64                `json:"beta_fuse,omitempty" jsonschema:"beta for the F-beta frontier, default 1.0"`
	TargetProfile   any                    `json:"target_profile,omitempty" jsonschema:"code boost profile: nested taxonomy map or flat code map lifted to fi"`
	TopMPerLane     map[string]int         `json:"top_m_per_lane,omitempty" jsonschema:"read depth per lane"`
	KGrid           []int                  `json:"k_grid,omitempty" jsonschema:"frontier cut-offs"`
	Peek            *model.PeekInline      `json:"peek,omitempty" jsonschema:"inline snippet preview configuration"`
	Facets          map[string][]string    `json:"facets,omitempty" jsonschema:"facet term lists keyed by component"`
	FacetWeights    map[string]float64     `json:"facet_weights,omitempty" jsonschema:"facet component weights"`
	Representatives []model.Representative `json:"representatives,omitempty" jsonschema:"A/B/C representative picks"`
	TraceID         string                 `json:"trace_id,omitempty" jsonschema:"caller-provided trace id"`
}

// MutateInput derives a child fusion run from a parent's recipe.
type MutateInput struct {
	RunID string            `json:"run_id" jsonschema:"parent fusion-run handle"`
	Delta model.MutateDelta `json:"delta" jsonschema:"recipe override: weights merge, rrf_k and beta_fuse replace"`
}

// MultiLaneEntryInput is one entry of a sequential batch.
type MultiLaneEntryInput struct {
	Alias         string             `json:"alias" jsonschema:"caller label echoed in the result"`
	Tool          string             `json:"tool" jsonschema:"fulltext or semantic"`
	Lane          string             `json:"lane,omitempty" jsonschema:"lane tag, defaults to the tool's natural lane"`
	Query         string             `json:"query,omitempty" jsonschema:"lexical query for fulltext entries"`
	Text          string             `json:"text,omitempty" jsonschema:"query text for semantic entries"`
	Filters       any                `json:"filters,omitempty" jsonschema:"filter conditions"`
	Fields        []string           `json:"fields,omitempty" jsonschema:"fields to search"`
	TopK          int                `json:"top_k,omitempty" jsonschema:"maximum number of results"`
	FieldBoosts   map[string]float64 `json:"field_boosts,omitempty" jsonschema:"per-field boosts for fulltext entries"`
	SemanticStyle string             `json:"semantic_style,omitempty" jsonschema:"dense variant for semantic entries"`
	FeatureScope  string             `json:"feature_scope,omitempty" jsonschema:"encoder scope for semantic entries"`
}

// MultiLaneInput is the batch request shape.
type MultiLaneInput struct {
	Entries []MultiLaneEntryInput `json:"entries" jsonschema:"batch entries, executed strictly in order"`
	TraceID string                `json:"trace_id,omitempty" jsonschema:"caller-provided trace id"`
}

// PeekInput pages snippets out of a run's ranking.
type PeekInput struct {
	RunID         string         `json:"run_id" jsonschema:"lane or fusion run handle"`
	Offset        int            `json:"offset,omitempty" jsonschema:"0-based rank offset"`
	Limit         int            `json:"limit,omitempty" jsonschema:"page size, capped by the server"`
	Fields        []string       `json:"fields,omitempty" jsonschema:"snippet fields to return"`
	PerFieldChars map[string]int `json:"per_field_chars,omitempty" jsonschema:"per-field character caps"`
	BudgetBytes   int            `json:"budget_bytes,omitempty" jsonschema:"page byte budget, capped by the server"`
	TraceID       string         `json:"trace_id,omitempty" jsonschema:"caller-provided trace id"`
}

// GetSnippetsInput fetches snippets for a curated id list.
type GetSnippetsInput struct {
	IDs           []string       `json:"ids" jsonschema:"document identifiers"`
	Fields        []string       `json:"fields,omitempty" jsonschema:"fields to return"`
	PerFieldChars map[string]int `json:"per_field_chars,omitempty" jsonschema:"per-field character caps"`
	TraceID       string         `json:"trace_id,omitempty" jsonschema:"caller-provided trace id"`
}

// SnippetsOutput wraps the snippet map with the adapter stopwatch.
type SnippetsOutput struct {
	Snippets map[string]model.Snippet `json:"snippets" jsonschema:"snippets keyed by document id"`
	TookMS   int64                    `json:"took_ms" jsonschema:"wall-clock duration in milliseconds"`
}

// GetPublicationInput fetches publication records by typed identifier.
type GetPublicationInput struct {
	IDs           []string       `json:"ids" jsonschema:"publication identifiers"`
	IDType        string         `json:"id_type,omitempty" jsonschema:"identifier namespace: pub_id, app_doc_id, app_id, exam_id"`
	Fields        []string       `json:"fields,omitempty" jsonschema:"fields to return"`
	PerFieldChars map[string]int `json:"per_field_chars,omitempty" jsonschema:"per-field character caps"`
	TraceID       string         `json:"trace_id,omitempty" jsonschema:"caller-provided trace id"`
}

// ProvenanceInput asks for a run's recipe and lineage.
type ProvenanceInput struct {
	RunID    string `json:"run_id" jsonschema:"run handle"`
	TopKLane int    `json:"top_k_lane,omitempty" jsonschema:"lane contribution rows to include, default 10"`
	TopKCode int    `json:"top_k_code,omitempty" jsonschema:"codes per taxonomy to include, default 10"`
}

// RegisterRepresentativesInput stores the A/B/C picks on a fusion run.
type RegisterRepresentativesInput struct {
	RunID           string                 `json:"run_id" jsonschema:"fusion-run handle"`
	Representatives []model.Representative `json:"representatives" jsonschema:"1 to 30 entries with unique doc ids and labels A/B/C"`
}

// ProvenanceOutput wraps the provenance response with the adapter stopwatch.
type ProvenanceOutput struct {
	model.ProvenanceResponse
	TookMS int64 `json:"took_ms" jsonschema:"wall-clock duration in milliseconds"`
}

func traceOrNew(traceID string) string {
	if traceID != "" {
		return traceID
	}
	return uuid.NewString()
}

// handleSearchFulltext runs a fulltext lane search and returns only the
// ranked identifiers.
func (s *Server) handleSearchFulltext(ctx context.Context, _ *mcp.CallToolRequest, input SimpleSearchInput) (
	*mcp.CallToolResult,
	SimpleSearchOutput,
	error,
) {
	start := time.Now()
	traceID := traceOrNew(input.TraceID)

	conds, err := coerceFilters(input.Filters)
	if err != nil {
		return nil, SimpleSearchOutput{}, MapError(err)
	}
	params := model.NewFulltextParams(model.FulltextParams{
		Query:   input.Query,
		Filters: conds,
		TopK:    input.TopK,
		TraceID: traceID,
	})
	handle, err := s.engine.LaneSearch(ctx, model.LaneFulltext, params)
	if err != nil {
		return nil, SimpleSearchOutput{}, MapError(err)
	}
	ids, err := s.engine.RunDocIDs(ctx, handle.RunID, params.TopK())
	if err != nil {
		return nil, SimpleSearchOutput{}, MapError(err)
	}

	s.logger.InfoContext(ctx, "search_fulltext completed",
		"trace_id", traceID, "run_id", handle.RunID, "count", len(ids))
	return nil, SimpleSearchOutput{
		RunID:  handle.RunID,
		DocIDs: ids,
		Count:  len(ids),
		TookMS: time.Since(start).Milliseconds(),
	}, nil
}

// handleSearchSemantic is the dense variant of the convenience search.
func (s *Server) handleSearchSemantic(ctx context.Context, _ *mcp.CallToolRequest, input SimpleSearchInput) (
	*mcp.CallToolResult,
	SimpleSearchOutput,
	error,
) {
	start := time.Now()
	traceID := traceOrNew(input.TraceID)

	conds, err := coerceFilters(input.Filters)
	if err != nil {
		return nil, SimpleSearchOutput{}, MapError(err)
	}
	params := model.NewSemanticParams(model.SemanticParams{
		Text:    input.Query,
		Filters: conds,
		TopK:    input.TopK,
		TraceID: traceID,
	})
	handle, err := s.engine.LaneSearch(ctx, model.LaneSemantic, params)
	if err != nil {
		return nil, SimpleSearchOutput{}, MapError(err)
	}
	ids, err := s.engine.RunDocIDs(ctx, handle.RunID, params.TopK())
	if err != nil {
		return nil, SimpleSearchOutput{}, MapError(err)
	}

	s.logger.InfoContext(ctx, "search_semantic completed",
		"trace_id", traceID, "run_id", handle.RunID, "count", len(ids))
	return nil, SimpleSearchOutput{
		RunID:  handle.RunID,
		DocIDs: ids,
		Count:  len(ids),
		TookMS: time.Since(start).Milliseconds(),
	}, nil
}

// handleFulltextRaw runs a fulltext lane search and returns the run handle.
func (s *Server) handleFulltextRaw(ctx context.Context, _ *mcp.CallToolRequest, input RawFulltextInput) (
	*mcp.CallToolResult,
	*model.SearchToolResponse,
	error,
) {
	conds, err := coerceFilters(input.Filters)
	if err != nil {
		return nil, nil, MapError(err)
	}
	params := model.NewFulltextParams(model.FulltextParams{
		Query:       input.Query,
		Filters:     conds,
		Fields:      input.Fields,
		TopK:        input.TopK,
		FieldBoosts: input.FieldBoosts,
		TraceID:     traceOrNew(input.TraceID),
	})
	handle, err := s.engine.LaneSearch(ctx, model.LaneFulltext, params)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, handle, nil
}

// handleSemanticRaw runs a dense lane search. The original_dense style routes
// to the internal dense lane.
func (s *Server) handleSemanticRaw(ctx context.Context, _ *mcp.CallToolRequest, input RawSemanticInput) (
	*mcp.CallToolResult,
	*model.SearchToolResponse,
	error,
) {
	conds, err := coerceFilters(input.Filters)
	if err != nil {
		return nil, nil, MapError(err)
	}
	params := model.NewSemanticParams(model.SemanticParams{
		Text:          input.Text,
		Filters:       conds,
		Fields:        input.Fields,
		TopK:          input.TopK,
		SemanticStyle: model.SemanticStyle(input.SemanticStyle),
		FeatureScope:  model.FeatureScope(input.FeatureScope),
		TraceID:       traceOrNew(input.TraceID),
	})
	lane := model.LaneSemantic
	if params.Semantic.SemanticStyle == model.SemanticOriginalDense {
		lane = model.LaneOriginalDense
	}
	handle, err := s.engine.LaneSearch(ctx, lane, params)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, handle, nil
}

// handleBlend fuses cached lane runs into a new fusion run.
func (s *Server) handleBlend(ctx context.Context, _ *mcp.CallToolRequest, input BlendInput) (
	*mcp.CallToolResult,
	*model.BlendResponse,
	error,
) {
	runs, err := coerceRuns(input.Runs)
	if err != nil {
		return nil, nil, MapError(err)
	}
	profile, err := coerceTargetProfile(input.TargetProfile)
	if err != nil {
		return nil, nil, MapError(err)
	}
	resp, err := s.engine.Blend(ctx, model.BlendRequest{
		Runs:            runs,
		Weights:         input.Weights,
		RRFK:            input.RRFK,
		BetaFuse:        input.BetaFuse,
		TargetProfile:   profile,
		TopMPerLane:     input.TopMPerLane,
		KGrid:           input.KGrid,
		Peek:            input.Peek,
		Facets:          input.Facets,
		FacetWeights:    input.FacetWeights,
		Representatives: input.Representatives,
		TraceID:         traceOrNew(input.TraceID),
	})
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, resp, nil
}

// handleMutate derives a child fusion run via a recipe delta.
func (s *Server) handleMutate(ctx context.Context, _ *mcp.CallToolRequest, input MutateInput) (
	*mcp.CallToolResult,
	*model.MutateResponse,
	error,
) {
	if input.RunID == "" {
		return nil, nil, MapError(errors.Validation("run_id is required"))
	}
	resp, err := s.engine.Mutate(ctx, input.RunID, input.Delta)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, resp, nil
}

// handleMultiLane executes a sequential batch of lane searches.
func (s *Server) handleMultiLane(ctx context.Context, _ *mcp.CallToolRequest, input MultiLaneInput) (
	*mcp.CallToolResult,
	*model.MultiLaneResponse,
	error,
) {
	entries := make([]model.MultiLaneEntry, 0, len(input.Entries))
	for _, in := range input.Entries {
		entry, err := batchEntry(in)
		if err != nil {
			return nil, nil, MapError(err)
		}
		entries = append(entries, entry)
	}
	resp, err := s.engine.MultiLaneSearch(ctx, entries, traceOrNew(input.TraceID))
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, resp, nil
}

// batchEntry coerces one batch entry into typed search parameters. The lane
// defaults to the tool's natural lane when omitted.
func batchEntry(in MultiLaneEntryInput) (model.MultiLaneEntry, error) {
	conds, err := coerceFilters(in.Filters)
	if err != nil {
		return model.MultiLaneEntry{}, err
	}

	entry := model.MultiLaneEntry{
		Alias: in.Alias,
		Tool:  in.Tool,
		Lane:  model.Lane(in.Lane),
	}
	switch in.Tool {
	case model.MultiLaneToolFulltext:
		if entry.Lane == "" {
			entry.Lane = model.LaneFulltext
		}
		entry.Params = model.NewFulltextParams(model.FulltextParams{
			Query:       in.Query,
			Filters:     conds,
			Fields:      in.Fields,
			TopK:        in.TopK,
			FieldBoosts: in.FieldBoosts,
		})
	case model.MultiLaneToolSemantic:
		if entry.Lane == "" {
			entry.Lane = model.LaneSemantic
		}
		text := in.Text
		if text == "" {
			text = in.Query
		}
		entry.Params = model.NewSemanticParams(model.SemanticParams{
			Text:          text,
			Filters:       conds,
			Fields:        in.Fields,
			TopK:          in.TopK,
			SemanticStyle: model.SemanticStyle(in.SemanticStyle),
			FeatureScope:  model.FeatureScope(in.FeatureScope),
		})
	default:
		// Engine rejects unknown tools per entry; pass through so the batch
		// records the failure instead of aborting.
		entry.Params = model.SearchParams{}
	}
	return entry, nil
}

// handlePeek pages budgeted snippets out of a run's ranking.
func (s *Server) handlePeek(ctx context.Context, _ *mcp.CallToolRequest, input PeekInput) (
	*mcp.CallToolResult,
	*model.PeekResponse,
	error,
) {
	resp, err := s.engine.PeekSnippets(ctx, model.PeekRequest{
		RunID:         input.RunID,
		Offset:        input.Offset,
		Limit:         input.Limit,
		Fields:        input.Fields,
		PerFieldChars: input.PerFieldChars,
		BudgetBytes:   input.BudgetBytes,
		TraceID:       traceOrNew(input.TraceID),
	})
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, resp, nil
}

// handleGetSnippets returns shaped fields for a curated id list.
func (s *Server) handleGetSnippets(ctx context.Context, _ *mcp.CallToolRequest, input GetSnippetsInput) (
	*mcp.CallToolResult,
	SnippetsOutput,
	error,
) {
	start := time.Now()
	out, err := s.engine.GetSnippets(ctx, model.GetSnippetsRequest{
		IDs:           input.IDs,
		Fields:        input.Fields,
		PerFieldChars: input.PerFieldChars,
		TraceID:       traceOrNew(input.TraceID),
	})
	if err != nil {
		return nil, SnippetsOutput{}, MapError(err)
	}
	return nil, SnippetsOutput{Snippets: out, TookMS: time.Since(start).Milliseconds()}, nil
}

// handleGetPublication fetches publication records by typed identifier.
func (s *Server) handleGetPublication(ctx context.Context, _ *mcp.CallToolRequest, input GetPublicationInput) (
	*mcp.CallToolResult,
	SnippetsOutput,
	error,
) {
	start := time.Now()
	out, err := s.engine.GetPublication(ctx, model.GetPublicationRequest{
		IDs:           input.IDs,
		IDType:        input.IDType,
		Fields:        input.Fields,
		PerFieldChars: input.PerFieldChars,
		TraceID:       traceOrNew(input.TraceID),
	})
	if err != nil {
		return nil, SnippetsOutput{}, MapError(err)
	}
	return nil, SnippetsOutput{Snippets: out, TookMS: time.Since(start).Milliseconds()}, nil
}

// handleProvenance reports a run's recipe, lineage, and distributions.
func (s *Server) handleProvenance(ctx context.Context, _ *mcp.CallToolRequest, input ProvenanceInput) (
	*mcp.CallToolResult,
	*ProvenanceOutput,
	error,
) {
	start := time.Now()
	resp, err := s.engine.Provenance(ctx, input.RunID, input.TopKLane, input.TopKCode)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, &ProvenanceOutput{ProvenanceResponse: *resp, TookMS: time.Since(start).Milliseconds()}, nil
}

// handleRegisterRepresentatives stores the A/B/C picks on a fusion run.
func (s *Server) handleRegisterRepresentatives(ctx context.Context, _ *mcp.CallToolRequest, input RegisterRepresentativesInput) (
	*mcp.CallToolResult,
	*ProvenanceOutput,
	error,
) {
	start := time.Now()
	resp, err := s.engine.RegisterRepresentatives(ctx, input.RunID, input.Representatives)
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, &ProvenanceOutput{ProvenanceResponse: *resp, TookMS: time.Since(start).Milliseconds()}, nil
}
