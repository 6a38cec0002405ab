package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jl1nie/rrfusion/internal/model"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := New(rdb, Options{
		Snapshot:   "test",
		DataTTL:    24 * time.Hour,
		SnippetTTL: 72 * time.Hour,
	})
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func TestPutLaneRun_RankingAndMeta(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	docs := []model.Document{
		{DocID: "JP2020-1", Score: 12.5, Title: "optical sensor", FICodes: []string{"G06V10/82A"}},
		{DocID: "JP2020-2", Score: 9.0, Title: "image classifier"},
	}
	freq := model.CodeFreqs{"fi": {"G06V10/82": 1}}
	meta := &model.RunMeta{Query: "optical", TopK: 800, CountReturned: 2}

	err := st.PutLaneRun(ctx, "fulltext-aabbccdd", "fulltext", "deadbeef00112233", docs, meta, freq)
	require.NoError(t, err)

	assert.Equal(t, "lane-ranking/test/deadbeef00112233/fulltext", meta.LaneKey)
	assert.Equal(t, model.RunTypeLane, meta.RunType)

	rows, err := st.RankingSlice(ctx, meta.LaneKey, 0, -1, true)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "JP2020-1", rows[0].DocID)
	assert.Equal(t, 12.5, rows[0].Score)

	got, err := st.GetRunMeta(ctx, "fulltext-aabbccdd")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "optical", got.Query)
	assert.Equal(t, model.Lane("fulltext"), got.Lane)

	// Ranking keys carry the data TTL.
	assert.Greater(t, mr.TTL(meta.LaneKey), time.Duration(0))
}

func TestPutLaneRun_ReplacesPreviousRanking(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	first := []model.Document{{DocID: "A", Score: 1}, {DocID: "B", Score: 2}}
	second := []model.Document{{DocID: "C", Score: 3}}

	require.NoError(t, st.PutLaneRun(ctx, "fulltext-00000001", "fulltext", "h1", first, &model.RunMeta{}, nil))
	require.NoError(t, st.PutLaneRun(ctx, "fulltext-00000002", "fulltext", "h1", second, &model.RunMeta{}, nil))

	rows, err := st.RankingSlice(ctx, st.LaneRankingKey("h1", "fulltext"), 0, -1, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "C", rows[0].DocID)
}

func TestGetDocs_DecodesCodes(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	docs := []model.Document{{
		DocID:    "JP2021-7",
		Score:    1,
		Title:    "radio scheduler",
		Abst:     "an uplink scheduler",
		IPCCodes: []string{"H04W72/04"},
		FICodes:  []string{"H04W72/04B", "H04W72/04"},
	}}
	require.NoError(t, st.PutLaneRun(ctx, "fulltext-11111111", "fulltext", "h", docs, &model.RunMeta{}, nil))

	got, err := st.GetDocs(ctx, []string{"JP2021-7", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	doc := got["JP2021-7"]
	require.NotNil(t, doc)
	assert.Equal(t, "radio scheduler", doc.Title)
	assert.Equal(t, []string{"H04W72/04"}, doc.IPCCodes)
	assert.ElementsMatch(t, []string{"H04W72/04B", "H04W72/04"}, doc.FICodes)
	assert.Contains(t, doc.FINorm, "H04W72/04")
}

func TestUpsertDocs_MergesNonEmptyFields(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	base := []model.Document{{DocID: "D1", Score: 1, Title: "seed title", Abst: "seed abst"}}
	require.NoError(t, st.PutLaneRun(ctx, "fulltext-22222222", "fulltext", "h", base, &model.RunMeta{}, nil))

	// Back-fill adds desc and leaves title untouched despite being empty.
	require.NoError(t, st.UpsertDocs(ctx, []model.Document{{DocID: "D1", Desc: "full description"}}))

	got, err := st.GetDocs(ctx, []string{"D1"})
	require.NoError(t, err)
	doc := got["D1"]
	require.NotNil(t, doc)
	assert.Equal(t, "seed title", doc.Title)
	assert.Equal(t, "full description", doc.Desc)
}

func TestPutFusionRun_AndMetaRoundTrip(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	scores := []model.ScoredDoc{{DocID: "X", Score: 0.05}, {DocID: "Y", Score: 0.02}}
	meta := &model.RunMeta{
		SourceRuns: []model.SourceRun{{Lane: "fulltext", RunID: "fulltext-aa"}},
		Recipe:     &model.Recipe{RRFK: 60, BetaFuse: 1.0},
	}
	require.NoError(t, st.PutFusionRun(ctx, "fusion-0123456789", scores, meta))

	got, err := st.GetRunMeta(ctx, "fusion-0123456789")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RunTypeFusion, got.RunType)
	assert.Equal(t, "fusion-ranking/test/fusion-0123456789", got.RankingKey())
	require.NotNil(t, got.Recipe)
	assert.Equal(t, 60, got.Recipe.RRFK)

	n, err := st.RankingSize(ctx, got.RankingKey())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestGetRunMeta_MissReturnsNil(t *testing.T) {
	st, _ := newTestStore(t)

	meta, err := st.GetRunMeta(context.Background(), "fusion-nope")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestGetFreqSummary(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	freq := model.CodeFreqs{
		"ipc": {"H04L": 3, "G06F": 1},
		"fi":  {"H04L1/00": 2},
	}
	meta := &model.RunMeta{}
	require.NoError(t, st.PutLaneRun(ctx, "semantic-33333333", "semantic", "h", nil, meta, freq))

	got, err := st.GetFreqSummary(ctx, meta.FreqKey)
	require.NoError(t, err)
	assert.Equal(t, 3, got["ipc"]["H04L"])
	assert.Equal(t, 2, got["fi"]["H04L1/00"])
	assert.Empty(t, got["cpc"])
}

func TestSetRunMeta_Overwrites(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	meta := &model.RunMeta{RunID: "fusion-aaaaaaaaaa", RunType: model.RunTypeFusion}
	require.NoError(t, st.PutFusionRun(ctx, meta.RunID, nil, meta))

	meta.Representatives = []model.Representative{{DocID: "JP1", Label: "A"}}
	require.NoError(t, st.SetRunMeta(ctx, meta.RunID, meta))

	got, err := st.GetRunMeta(ctx, meta.RunID)
	require.NoError(t, err)
	require.Len(t, got.Representatives, 1)
	assert.Equal(t, "JP1", got.Representatives[0].DocID)
}

func TestRankingSlice_Paging(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	scores := []model.ScoredDoc{
		{DocID: "a", Score: 5}, {DocID: "b", Score: 4},
		{DocID: "c", Score: 3}, {DocID: "d", Score: 2},
	}
	require.NoError(t, st.PutFusionRun(ctx, "fusion-bbbbbbbbbb", scores, &model.RunMeta{}))

	key := st.FusionRankingKey("fusion-bbbbbbbbbb")
	page, err := st.RankingSlice(ctx, key, 1, 2, true)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].DocID)
	assert.Equal(t, "c", page[1].DocID)
}
