package engine

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jl1nie/rrfusion/internal/backend"
	"github.com/jl1nie/rrfusion/internal/config"
	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/model"
	"github.com/jl1nie/rrfusion/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
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
	backends := backend.NewRegistry(cfg.Backends, slog.Default())
	eng := New(st, backends, cfg, slog.Default())
	t.Cleanup(func() { _ = eng.Close() })
	return eng, st
}

// seedLaneRun stores a crafted lane run directly, bypassing the backends.
func seedLaneRun(t *testing.T, st *store.Store, runID string, lane model.Lane, docs []model.Document) *model.RunMeta {
	t.Helper()
	meta := &model.RunMeta{TopK: len(docs), CountReturned: len(docs)}
	require.NoError(t, st.PutLaneRun(context.Background(), runID, string(lane), "hash-"+runID, docs, meta, nil))
	return meta
}

func TestLaneSearch_ReturnsHandleAndPersists(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	params := model.NewFulltextParams(model.FulltextParams{Query: "optical filter", TopK: 30})
	resp, err := eng.LaneSearch(ctx, model.LaneFulltext, params)
	require.NoError(t, err)

	assert.Equal(t, model.LaneFulltext, resp.Lane)
	assert.True(t, strings.HasPrefix(resp.RunID, "fulltext-"))
	assert.Equal(t, 30, resp.CountReturned)
	assert.False(t, resp.Truncated)
	assert.NotEmpty(t, resp.CodeFreqs["ipc"])
	assert.NotEmpty(t, resp.TopCodes["ipc"])

	meta, err := st.GetRunMeta(ctx, resp.RunID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, model.RunTypeLane, meta.RunType)
	assert.Equal(t, "optical filter", meta.Query)

	rows, err := st.RankingSlice(ctx, meta.LaneKey, 0, -1, true)
	require.NoError(t, err)
	assert.Len(t, rows, 30)
}

func TestLaneSearch_RejectsUnknownLane(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.LaneSearch(context.Background(), model.Lane("lexical"),
		model.NewFulltextParams(model.FulltextParams{Query: "x"}))
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
}

func TestMultiLaneSearch_BatchInvariants(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	entries := []model.MultiLaneEntry{
		{Alias: "wide", Tool: model.MultiLaneToolFulltext, Lane: model.LaneFulltext,
			Params: model.NewFulltextParams(model.FulltextParams{Query: "uplink", TopK: 10})},
		{Alias: "broken", Tool: model.MultiLaneToolSemantic, Lane: model.LaneFulltext,
			Params: model.NewSemanticParams(model.SemanticParams{Text: "uplink", TopK: 10})},
		{Alias: "dense", Tool: model.MultiLaneToolSemantic, Lane: model.LaneSemantic,
			Params: model.NewSemanticParams(model.SemanticParams{Text: "uplink", TopK: 10})},
	}

	resp, err := eng.MultiLaneSearch(ctx, entries, "trace-1")
	require.NoError(t, err)

	assert.Equal(t, 2, resp.SuccessCount)
	assert.Equal(t, 1, resp.ErrorCount)
	require.Len(t, resp.Results, 3)
	// Order preserved; a failed entry does not abort later entries.
	assert.Equal(t, "wide", resp.Results[0].Alias)
	assert.Equal(t, model.MultiLaneSuccess, resp.Results[0].Status)
	assert.Equal(t, model.MultiLaneError, resp.Results[1].Status)
	assert.Equal(t, errors.CodeValidation, resp.Results[1].Error.Code)
	assert.Equal(t, model.MultiLaneSuccess, resp.Results[2].Status)
	assert.Equal(t, "trace-1", resp.TraceID)
}

func blendFixture(t *testing.T, st *store.Store) []model.SourceRun {
	t.Helper()
	seedLaneRun(t, st, "fulltext-00000001", model.LaneFulltext, []model.Document{
		{DocID: "d1", Score: 1.0, IPCCodes: []string{"H04L"}, Title: "d1", Claim: "an optical claim"},
		{DocID: "d2", Score: 0.9, Title: "d2"},
		{DocID: "d3", Score: 0.5, Title: "d3"},
	})
	seedLaneRun(t, st, "semantic-00000002", model.LaneSemantic, []model.Document{
		{DocID: "d2", Score: 0.8},
		{DocID: "d3", Score: 0.7},
		{DocID: "d4", Score: 0.6},
	})
	return []model.SourceRun{
		{Lane: model.LaneFulltext, RunID: "fulltext-00000001"},
		{Lane: model.LaneSemantic, RunID: "semantic-00000002"},
	}
}

func TestBlend_DeterministicOrdering(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	runs := blendFixture(t, st)

	resp, err := eng.Blend(ctx, model.BlendRequest{Runs: runs})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.RunID, "fusion-"))
	got := model.DocIDs(resp.PairsTop)
	assert.Equal(t, []string{"d2", "d3", "d1", "d4"}, got)

	// Defaults land in the recipe.
	assert.Equal(t, 60, resp.Recipe.RRFK)
	assert.Equal(t, 1.0, resp.Recipe.BetaFuse)
	assert.NotEmpty(t, resp.Frontier)
	assert.NotNil(t, resp.Metrics)
	assert.NotEmpty(t, resp.Contrib)

	// The fused run round-trips through the store.
	meta, err := st.GetRunMeta(ctx, resp.RunID)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, runs, meta.SourceRuns)
	assert.Empty(t, meta.Lineage)
}

func TestBlend_CodeBoostReorders(t *testing.T) {
	eng, st := newTestEngine(t)
	runs := blendFixture(t, st)

	resp, err := eng.Blend(context.Background(), model.BlendRequest{
		Runs:          runs,
		Weights:       map[string]float64{"fulltext": 1, "semantic": 1, "code": 0.3},
		TargetProfile: map[string]map[string]float64{"ipc": {"H04L": 1.0}},
	})
	require.NoError(t, err)

	assert.Equal(t, "d1", resp.PairsTop[0].DocID)

	// Contributions are per-doc shares: the code boost (0.3) over the raw
	// total (0.3 + 1/61 from the fulltext rank), and the buckets sum to 1.
	d1 := resp.Contrib["d1"]
	assert.InDelta(t, 0.3/(0.3+1.0/61.0), d1["code"], 0.001)
	sum := 0.0
	for _, v := range d1 {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 0.001)
}

func TestBlend_MissingRunNotFound(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Blend(context.Background(), model.BlendRequest{
		Runs: []model.SourceRun{{Lane: model.LaneFulltext, RunID: "fulltext-deadbeef"}},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestBlend_RejectsFusionRunAsSource(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	runs := blendFixture(t, st)

	first, err := eng.Blend(ctx, model.BlendRequest{Runs: runs})
	require.NoError(t, err)

	_, err = eng.Blend(ctx, model.BlendRequest{
		Runs: []model.SourceRun{{Lane: model.LaneFulltext, RunID: first.RunID}},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodePrecondition, errors.GetCode(err))
}

func TestMutate_LineageAndDelta(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	runs := blendFixture(t, st)

	parent, err := eng.Blend(ctx, model.BlendRequest{Runs: runs})
	require.NoError(t, err)

	beforeA, err := st.RankingSlice(ctx, st.LaneRankingKey("hash-fulltext-00000001", "fulltext"), 0, -1, true)
	require.NoError(t, err)

	rrfK := 45
	child, err := eng.Mutate(ctx, parent.RunID, model.MutateDelta{
		Weights: map[string]float64{"semantic": 1.25},
		RRFK:    &rrfK,
	})
	require.NoError(t, err)

	assert.NotEqual(t, parent.RunID, child.NewRunID)
	assert.Equal(t, 45, child.Recipe.RRFK)
	assert.Equal(t, 1.25, child.Recipe.Weights["semantic"])
	require.NotNil(t, child.Recipe.Delta)
	assert.Equal(t, 1.25, child.Recipe.Delta.Weights["semantic"])
	assert.Equal(t, 45, *child.Recipe.Delta.RRFK)

	childMeta, err := st.GetRunMeta(ctx, child.NewRunID)
	require.NoError(t, err)
	assert.Equal(t, parent.RunID, childMeta.Parent)
	assert.Equal(t, []string{parent.RunID}, childMeta.Lineage)

	// Lane runs are untouched by mutate.
	afterA, err := st.RankingSlice(ctx, st.LaneRankingKey("hash-fulltext-00000001", "fulltext"), 0, -1, true)
	require.NoError(t, err)
	assert.Equal(t, beforeA, afterA)
}

func TestMutate_RejectsLaneRun(t *testing.T) {
	eng, st := newTestEngine(t)
	seedLaneRun(t, st, "fulltext-00000009", model.LaneFulltext, []model.Document{{DocID: "d1", Score: 1}})

	_, err := eng.Mutate(context.Background(), "fulltext-00000009", model.MutateDelta{})
	require.Error(t, err)
	assert.Equal(t, errors.CodePrecondition, errors.GetCode(err))
}

func TestPeekSnippets_BudgetAndCursor(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	docs := make([]model.Document, 50)
	for i := range docs {
		docs[i] = model.Document{
			DocID:    fmtDocID(i),
			Score:    float64(100 - i),
			Title:    "doc",
			Abst:     strings.Repeat("a", 1024),
			AppDocID: fmtDocID(i),
		}
	}
	seedLaneRun(t, st, "fulltext-00000011", model.LaneFulltext, docs)

	resp, err := eng.PeekSnippets(ctx, model.PeekRequest{
		RunID:       "fulltext-00000011",
		Limit:       50,
		Fields:      []string{model.FieldTitle, model.FieldAbst},
		BudgetBytes: 4096,
	})
	require.NoError(t, err)

	assert.Less(t, len(resp.Snippets), 50)
	assert.NotEmpty(t, resp.Snippets)
	assert.LessOrEqual(t, resp.Meta.UsedBytes, 4096)
	assert.True(t, resp.Meta.Truncated)
	require.NotNil(t, resp.Meta.PeekCursor)
	assert.Equal(t, resp.Meta.Returned, *resp.Meta.PeekCursor)

	// Identifier fields ride along even though not requested.
	for _, item := range resp.Snippets {
		assert.Contains(t, item, model.FieldAppDocID)
		assert.Contains(t, item, model.FieldAppID)
		assert.Contains(t, item, model.FieldPubID)
	}

	// The cursor page is disjoint and non-empty.
	next, err := eng.PeekSnippets(ctx, model.PeekRequest{
		RunID:       "fulltext-00000011",
		Offset:      *resp.Meta.PeekCursor,
		Limit:       50,
		Fields:      []string{model.FieldTitle, model.FieldAbst},
		BudgetBytes: 4096,
	})
	require.NoError(t, err)
	require.NotEmpty(t, next.Snippets)
	firstPage := make(map[string]bool)
	for _, item := range resp.Snippets {
		firstPage[item["id"]] = true
	}
	for _, item := range next.Snippets {
		assert.False(t, firstPage[item["id"]], "page overlap at %s", item["id"])
	}
}

func TestPeekSnippets_UnknownRun(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.PeekSnippets(context.Background(), model.PeekRequest{RunID: "fusion-cafecafeca"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestPeekSnippets_BackfillFromBackend(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	// Ranking rows without any stored text; the stub backend regenerates it.
	seedLaneRun(t, st, "fulltext-00000012", model.LaneFulltext, []model.Document{
		{DocID: "JP1234567890A", Score: 2},
		{DocID: "JP0987654321B", Score: 1},
	})

	resp, err := eng.PeekSnippets(ctx, model.PeekRequest{
		RunID:  "fulltext-00000012",
		Limit:  2,
		Fields: []string{model.FieldTitle, model.FieldAbst},
	})
	require.NoError(t, err)
	require.Len(t, resp.Snippets, 2)
	assert.NotEmpty(t, resp.Snippets[0][model.FieldTitle])

	// Back-fill upserted the text for the next read.
	stored, err := st.GetDocs(ctx, []string{"JP1234567890A"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored["JP1234567890A"].Title)
}

func TestPeekSnippets_BackfillsMissingAppID(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	// Cached with text and the other identifiers but no app_id.
	seedLaneRun(t, st, "fulltext-00000019", model.LaneFulltext, []model.Document{
		{DocID: "JP1234567890A", Score: 1, Title: "stored title", Abst: "stored abst",
			AppDocID: "JP1234567890A", PubID: "DOC567890"},
	})

	resp, err := eng.PeekSnippets(ctx, model.PeekRequest{
		RunID:  "fulltext-00000019",
		Limit:  1,
		Fields: []string{model.FieldTitle, model.FieldAppID},
	})
	require.NoError(t, err)
	require.Len(t, resp.Snippets, 1)
	assert.NotEmpty(t, resp.Snippets[0][model.FieldAppID])

	stored, err := st.GetDocs(ctx, []string{"JP1234567890A"})
	require.NoError(t, err)
	assert.NotEmpty(t, stored["JP1234567890A"].AppID)
}

func TestGetSnippets_CuratedList(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	seedLaneRun(t, st, "fulltext-00000013", model.LaneFulltext, []model.Document{
		{DocID: "JP1111111111A", Score: 1, Title: "stored title", Abst: "stored abst", AppDocID: "JP1111111111A"},
	})

	out, err := eng.GetSnippets(ctx, model.GetSnippetsRequest{
		IDs:           []string{"JP1111111111A"},
		Fields:        []string{model.FieldTitle},
		PerFieldChars: map[string]int{model.FieldTitle: 9},
	})
	require.NoError(t, err)
	item := out["JP1111111111A"]
	require.NotNil(t, item)
	assert.Equal(t, "store...", item[model.FieldTitle])
	assert.NotContains(t, item, "id")
	assert.Contains(t, item, model.FieldPubID)
}

func TestGetPublication_StubRoundTrip(t *testing.T) {
	eng, _ := newTestEngine(t)

	out, err := eng.GetPublication(context.Background(), model.GetPublicationRequest{
		IDs:    []string{"JP1234567890A"},
		Fields: []string{model.FieldTitle, model.FieldDesc},
	})
	require.NoError(t, err)
	require.Contains(t, out, "JP1234567890A")
	assert.NotEmpty(t, out["JP1234567890A"][model.FieldTitle])
}

func TestProvenance_LaneRun(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	runs := blendFixture(t, st)

	prov, err := eng.Provenance(ctx, runs[0].RunID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, runs[0].RunID, prov.RunID)
	require.NotNil(t, prov.ConfigSnapshot)
	assert.Equal(t, model.LaneFulltext, prov.ConfigSnapshot["lane"])
	assert.Nil(t, prov.Metrics)
}

func TestRepresentatives_RegisterOnceAndRank(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	runs := blendFixture(t, st)

	blend, err := eng.Blend(ctx, model.BlendRequest{Runs: runs})
	require.NoError(t, err)

	reps := []model.Representative{
		{DocID: "d3", Label: "A", Reason: "closest art"},
		{DocID: "d1", Label: "B"},
	}
	prov, err := eng.RegisterRepresentatives(ctx, blend.RunID, reps)
	require.NoError(t, err)
	require.Len(t, prov.Representatives, 2)
	assert.Equal(t, "d3", prov.Representatives[0].DocID)
	assert.Equal(t, 2, prov.Representatives[0].Rank)
	assert.Greater(t, prov.Representatives[0].Score, 0.0)

	// Second registration fails with precondition.
	_, err = eng.RegisterRepresentatives(ctx, blend.RunID, reps)
	require.Error(t, err)
	assert.Equal(t, errors.CodePrecondition, errors.GetCode(err))
}

func TestRepresentatives_Validation(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()
	runs := blendFixture(t, st)
	blend, err := eng.Blend(ctx, model.BlendRequest{Runs: runs})
	require.NoError(t, err)

	cases := [][]model.Representative{
		{},
		{{DocID: "", Label: "A"}},
		{{DocID: "d1", Label: "D"}},
		{{DocID: "d1", Label: "A"}, {DocID: "d1", Label: "B"}},
	}
	for _, reps := range cases {
		_, err := eng.RegisterRepresentatives(ctx, blend.RunID, reps)
		assert.Error(t, err)
	}
}

func fmtDocID(i int) string {
	return "JP00000000" + string(rune('0'+i/10)) + string(rune('0'+i%10)) + "A"
}
