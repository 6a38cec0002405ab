package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jl1nie/rrfusion/internal/backend"
	"github.com/jl1nie/rrfusion/internal/config"
	"github.com/jl1nie/rrfusion/internal/engine"
	"github.com/jl1nie/rrfusion/internal/model"
	"github.com/jl1nie/rrfusion/internal/store"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.New(rdb, store.Options{
		Snapshot:   "test",
		DataTTL:    24 * time.Hour,
		SnippetTTL: 72 * time.Hour,
	})
	cfg := config.NewConfig()
	cfg.Backends.UseStub = true
	if mutate != nil {
		mutate(cfg)
	}
	backends := backend.NewRegistry(cfg.Backends, slog.Default())
	eng := engine.New(st, backends, cfg, slog.Default())
	t.Cleanup(func() { _ = eng.Close() })

	s, err := NewServer(eng, cfg, slog.Default())
	require.NoError(t, err)
	return s
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	require.Error(t, err)
}

func TestListTools_CoversToolSurface(t *testing.T) {
	s := newTestServer(t, nil)
	tools := s.ListTools()
	require.Len(t, tools, 12)

	names := make(map[string]bool, len(tools))
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description, tool.Name)
		names[tool.Name] = true
	}
	for _, want := range []string{
		"search_fulltext", "search_semantic",
		"rrf_search_fulltext_raw", "rrf_search_semantic_raw",
		"rrf_blend_frontier", "rrf_mutate_run",
		"run_multilane_search", "peek_snippets",
		"get_snippets", "get_publication",
		"get_provenance", "register_representatives",
	} {
		assert.True(t, names[want], want)
	}
}

func TestSearchFulltext_ReturnsRankedIDs(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, out, err := s.handleSearchFulltext(ctx, nil, SimpleSearchInput{Query: "optical filter", TopK: 15})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.RunID, "fulltext-"))
	assert.Len(t, out.DocIDs, 15)
	assert.Equal(t, 15, out.Count)
	for _, id := range out.DocIDs {
		assert.True(t, strings.HasPrefix(id, "JP"), id)
	}
}

func TestSearchSemantic_DivergesFromFulltext(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, ft, err := s.handleSearchFulltext(ctx, nil, SimpleSearchInput{Query: "optical filter", TopK: 10})
	require.NoError(t, err)
	_, sem, err := s.handleSearchSemantic(ctx, nil, SimpleSearchInput{Query: "optical filter", TopK: 10})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sem.RunID, "semantic-"))
	assert.NotEqual(t, ft.DocIDs, sem.DocIDs)
}

func TestSearchFulltext_RejectsBadFilters(t *testing.T) {
	s := newTestServer(t, nil)
	_, _, err := s.handleSearchFulltext(context.Background(), nil, SimpleSearchInput{
		Query:   "x",
		Filters: []any{map[string]any{"lop": "and", "field": "publisher", "op": "in", "value": []any{"a"}}},
	})
	require.Error(t, err)
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeInvalidParams, me.Code)
}

func TestSemanticRaw_OriginalDenseRoutesLane(t *testing.T) {
	s := newTestServer(t, nil)
	_, handle, err := s.handleSemanticRaw(context.Background(), nil, RawSemanticInput{
		Text:          "beam splitter",
		TopK:          5,
		SemanticStyle: "original_dense",
	})
	require.NoError(t, err)
	assert.Equal(t, model.LaneOriginalDense, handle.Lane)
	assert.True(t, strings.HasPrefix(handle.RunID, "original_dense-"))
}

func TestBlendAndMutate_EndToEnd(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, ft, err := s.handleFulltextRaw(ctx, nil, RawFulltextInput{Query: "uplink scheduling", TopK: 20})
	require.NoError(t, err)
	_, sem, err := s.handleSemanticRaw(ctx, nil, RawSemanticInput{Text: "uplink scheduling", TopK: 20})
	require.NoError(t, err)

	// Run handles as bare strings; the lane comes from the prefix.
	_, blend, err := s.handleBlend(ctx, nil, BlendInput{
		Runs:          []any{ft.RunID, sem.RunID},
		TargetProfile: map[string]any{"H04L1/00": 1.0},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(blend.RunID, "fusion-"))
	assert.NotEmpty(t, blend.PairsTop)
	assert.NotEmpty(t, blend.Frontier)
	require.NotNil(t, blend.Recipe)
	assert.Equal(t, map[string]map[string]float64{"fi": {"H04L1/00": 1.0}}, blend.Recipe.TargetProfile)

	newK := 45
	_, mut, err := s.handleMutate(ctx, nil, MutateInput{
		RunID: blend.RunID,
		Delta: model.MutateDelta{RRFK: &newK},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mut.NewRunID, "fusion-"))
	assert.NotEqual(t, blend.RunID, mut.NewRunID)
	assert.Equal(t, 45, mut.Recipe.RRFK)
}

func TestMutate_RequiresRunID(t *testing.T) {
	s := newTestServer(t, nil)
	_, _, err := s.handleMutate(context.Background(), nil, MutateInput{})
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeInvalidParams, me.Code)
}

func TestMutate_UnknownRunMapsToNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	_, _, err := s.handleMutate(context.Background(), nil, MutateInput{RunID: "fusion-ffffffffff"})
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeRunNotFound, me.Code)
	assert.Equal(t, "not_found", me.ErrorCode)
}

func TestMultiLane_PartialFailureKeepsBatch(t *testing.T) {
	s := newTestServer(t, nil)
	_, resp, err := s.handleMultiLane(context.Background(), nil, MultiLaneInput{
		Entries: []MultiLaneEntryInput{
			{Alias: "wide", Tool: "fulltext", Query: "uplink", TopK: 5},
			{Alias: "broken", Tool: "nonsense", Query: "uplink"},
			{Alias: "dense", Tool: "semantic", Text: "uplink", TopK: 5},
		},
		TraceID: "trace-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.SuccessCount)
	assert.Equal(t, 1, resp.ErrorCount)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "wide", resp.Results[0].Alias)
	assert.Equal(t, model.MultiLaneError, resp.Results[1].Status)
	assert.Equal(t, "trace-1", resp.TraceID)
}

func TestPeekAndSnippetsTools(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, ft, err := s.handleFulltextRaw(ctx, nil, RawFulltextInput{Query: "battery separator", TopK: 12})
	require.NoError(t, err)

	_, peek, err := s.handlePeek(ctx, nil, PeekInput{RunID: ft.RunID, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, peek.Snippets)
	for _, snip := range peek.Snippets {
		assert.Contains(t, snip, "app_doc_id")
		assert.Contains(t, snip, "pub_id")
	}

	ids := []string{peek.Snippets[0]["id"]}
	_, snips, err := s.handleGetSnippets(ctx, nil, GetSnippetsInput{IDs: ids})
	require.NoError(t, err)
	require.Contains(t, snips.Snippets, ids[0])
	assert.NotContains(t, snips.Snippets[ids[0]], "id")

	_, pubs, err := s.handleGetPublication(ctx, nil, GetPublicationInput{IDs: ids})
	require.NoError(t, err)
	assert.Contains(t, pubs.Snippets, ids[0])
}

func TestProvenanceAndRepresentatives(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	_, ft, err := s.handleFulltextRaw(ctx, nil, RawFulltextInput{Query: "antenna array", TopK: 10})
	require.NoError(t, err)
	_, blend, err := s.handleBlend(ctx, nil, BlendInput{Runs: []any{ft.RunID}})
	require.NoError(t, err)

	docID := blend.PairsTop[0].DocID
	_, prov, err := s.handleRegisterRepresentatives(ctx, nil, RegisterRepresentativesInput{
		RunID:           blend.RunID,
		Representatives: []model.Representative{{DocID: docID, Label: "A"}},
	})
	require.NoError(t, err)
	require.Len(t, prov.Representatives, 1)
	assert.Equal(t, 1, prov.Representatives[0].Rank)

	// Second registration is a precondition failure.
	_, _, err = s.handleRegisterRepresentatives(ctx, nil, RegisterRepresentativesInput{
		RunID:           blend.RunID,
		Representatives: []model.Representative{{DocID: docID, Label: "B"}},
	})
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodePrecondition, me.Code)

	_, again, err := s.handleProvenance(ctx, nil, ProvenanceInput{RunID: blend.RunID})
	require.NoError(t, err)
	require.NotNil(t, again.Meta)
	assert.Equal(t, model.RunTypeFusion, again.Meta.RunType)
}

func TestHandler_BearerAuth(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.AuthToken = "sesame"
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	// Health stays open.
	resp, err := client.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Tool endpoint requires the token.
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", nil)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/mcp", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/mcp", nil)
	req.Header.Set("Authorization", "Bearer sesame")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
}
