package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jl1nie/rrfusion/internal/model"
)

func TestCoerceFilters_AppendsCountryDefault(t *testing.T) {
	conds, err := coerceFilters([]any{
		map[string]any{"lop": "and", "field": "pubyear", "op": "range", "value": []any{"20200101", "20231231"}},
	})
	require.NoError(t, err)
	require.Len(t, conds, 2)

	// Dates reformatted, JP default appended.
	assert.Equal(t, []any{"2020-01-01", "2023-12-31"}, conds[0].Value)
	assert.Equal(t, "country", conds[1].Field)
	assert.Equal(t, []any{"JP"}, conds[1].Value)
}

func TestCoerceFilters_KeepsExplicitCountry(t *testing.T) {
	conds, err := coerceFilters([]any{
		map[string]any{"lop": "and", "field": "country", "op": "in", "value": []any{"US"}},
	})
	require.NoError(t, err)
	require.Len(t, conds, 1)
	assert.Equal(t, []any{"US"}, conds[0].Value)
}

func TestCoerceFilters_NilProducesCountryOnly(t *testing.T) {
	conds, err := coerceFilters(nil)
	require.NoError(t, err)
	require.Len(t, conds, 1)
	assert.Equal(t, "country", conds[0].Field)
}

func TestCoerceRuns_AcceptsStringsAndObjects(t *testing.T) {
	runs, err := coerceRuns([]any{
		"fulltext-a1b2c3d4",
		map[string]any{"lane": "semantic", "run_id": "semantic-ffffeeee"},
		map[string]any{"run_id": "original_dense-01234567"},
	})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, model.SourceRun{Lane: model.LaneFulltext, RunID: "fulltext-a1b2c3d4"}, runs[0])
	assert.Equal(t, model.SourceRun{Lane: model.LaneSemantic, RunID: "semantic-ffffeeee"}, runs[1])
	assert.Equal(t, model.LaneOriginalDense, runs[2].Lane)
}

func TestCoerceRuns_RejectsUnderivableHandle(t *testing.T) {
	_, err := coerceRuns([]any{"fusion-a1b2c3d4e5"})
	require.Error(t, err)

	_, err = coerceRuns([]any{map[string]any{"lane": "fulltext"}})
	require.Error(t, err)

	_, err = coerceRuns("fulltext-a1b2c3d4")
	require.Error(t, err)
}

func TestCoerceTargetProfile_LiftsFlatToFI(t *testing.T) {
	profile, err := coerceTargetProfile(map[string]any{
		"H04L1/00": 1.0,
		"G06F9/54": 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{
		"fi": {"H04L1/00": 1.0, "G06F9/54": 0.5},
	}, profile)
}

func TestCoerceTargetProfile_KeepsNestedShape(t *testing.T) {
	profile, err := coerceTargetProfile(map[string]any{
		"ipc": map[string]any{"H04L": 1.0},
		"fi":  map[string]any{"H04L1/00": 0.8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, profile["ipc"]["H04L"])
	assert.Equal(t, 0.8, profile["fi"]["H04L1/00"])
}

func TestCoerceTargetProfile_EmptyCollapsesToNil(t *testing.T) {
	profile, err := coerceTargetProfile(map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, profile)

	profile, err = coerceTargetProfile(nil)
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestCoerceTargetProfile_RejectsNonNumericWeight(t *testing.T) {
	_, err := coerceTargetProfile(map[string]any{"H04L1/00": "high"})
	require.Error(t, err)
}
