package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLane_Valid(t *testing.T) {
	assert.True(t, LaneFulltext.Valid())
	assert.True(t, LaneSemantic.Valid())
	assert.True(t, LaneOriginalDense.Valid())
	assert.False(t, Lane("lexical").Valid())
}

func TestLane_Role(t *testing.T) {
	assert.Equal(t, "recall", LaneFulltext.Role())
	assert.Equal(t, "semantic", LaneSemantic.Role())
	assert.Equal(t, "semantic", LaneOriginalDense.Role())
}

func TestLaneFromRunID(t *testing.T) {
	lane, ok := LaneFromRunID("fulltext-a1b2c3d4")
	require.True(t, ok)
	assert.Equal(t, LaneFulltext, lane)

	lane, ok = LaneFromRunID("original_dense-deadbeef")
	require.True(t, ok)
	assert.Equal(t, LaneOriginalDense, lane)

	_, ok = LaneFromRunID("fusion-a1b2c3d4e5")
	assert.False(t, ok)

	_, ok = LaneFromRunID("nodash")
	assert.False(t, ok)
}

func TestSearchParams_Validate(t *testing.T) {
	ft := NewFulltextParams(FulltextParams{Query: "uplink HARQ"})
	require.NoError(t, ft.Validate())
	assert.Equal(t, DefaultTopK, ft.TopK())
	assert.Equal(t, SearchFieldsDefault, ft.Fields())

	sem := NewSemanticParams(SemanticParams{Text: "early feedback"})
	require.NoError(t, sem.Validate())
	assert.Equal(t, SemanticDefault, sem.Semantic.SemanticStyle)

	assert.Error(t, SearchParams{}.Validate())
	assert.Error(t, NewFulltextParams(FulltextParams{}).Validate())
	assert.Error(t, SearchParams{
		Fulltext: &FulltextParams{Query: "a", TopK: 1},
		Semantic: &SemanticParams{Text: "b", TopK: 1},
	}.Validate())

	bad := NewSemanticParams(SemanticParams{Text: "x", SemanticStyle: "experimental"})
	assert.Error(t, bad.Validate())
}

func TestDocument_DeriveFINorm(t *testing.T) {
	doc := Document{DocID: "JP1", FICodes: []string{"G06V10/82A", "H04L1/00"}}
	doc.DeriveFINorm()

	assert.Equal(t, []string{"G06V10/82", "H04L1/00"}, doc.FINorm)

	// Already derived lists are left alone.
	doc2 := Document{FICodes: []string{"G06V10/82A"}, FINorm: []string{"X"}}
	doc2.DeriveFINorm()
	assert.Equal(t, []string{"X"}, doc2.FINorm)
}

func TestDocument_TextFieldRoundTrip(t *testing.T) {
	var doc Document
	for _, field := range AllTextFields {
		doc.SetTextField(field, "v:"+field)
	}
	for _, field := range AllTextFields {
		assert.Equal(t, "v:"+field, doc.TextField(field))
	}
	assert.Empty(t, doc.TextField("unknown"))
}

func TestRecipe_Clone_Independent(t *testing.T) {
	rrfK := 45
	orig := &Recipe{
		Weights:       map[string]float64{"fulltext": 1.0},
		RRFK:          60,
		BetaFuse:      1.0,
		TargetProfile: map[string]map[string]float64{"ipc": {"H04L": 1.0}},
		TopMPerLane:   map[string]int{"fulltext": 10000},
		KGrid:         []int{10, 20},
		Delta:         &MutateDelta{RRFK: &rrfK},
	}

	clone := orig.Clone()
	clone.Weights["semantic"] = 2.0
	clone.TargetProfile["ipc"]["H04L"] = 9.9
	clone.KGrid[0] = 99
	*clone.Delta.RRFK = 1

	assert.NotContains(t, orig.Weights, "semantic")
	assert.Equal(t, 1.0, orig.TargetProfile["ipc"]["H04L"])
	assert.Equal(t, 10, orig.KGrid[0])
	assert.Equal(t, 45, *orig.Delta.RRFK)
}

func TestRunMeta_RankingKey(t *testing.T) {
	lane := &RunMeta{RunType: RunTypeLane, LaneKey: "lane-key"}
	fusion := &RunMeta{RunType: RunTypeFusion, RRFKey: "rrf-key"}

	assert.Equal(t, "lane-key", lane.RankingKey())
	assert.Equal(t, "rrf-key", fusion.RankingKey())
}
