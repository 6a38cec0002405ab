package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryHash_Stable(t *testing.T) {
	filters := map[string]any{"field": "ipc", "value": []string{"H04L"}}

	h1 := QueryHash("uplink HARQ", filters)
	h2 := QueryHash("uplink HARQ", filters)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 16)
}

func TestQueryHash_DiffersByQueryAndFilters(t *testing.T) {
	base := QueryHash("uplink HARQ", nil)

	assert.NotEqual(t, base, QueryHash("downlink HARQ", nil))
	assert.NotEqual(t, base, QueryHash("uplink HARQ", map[string]any{"field": "fi"}))
}

func TestQueryHash_NilFiltersEqualsEmpty(t *testing.T) {
	assert.Equal(t, QueryHash("q", nil), QueryHash("q", map[string]any{}))
}

func TestNewLaneRunID(t *testing.T) {
	id := NewLaneRunID("fulltext")

	require.True(t, strings.HasPrefix(id, "fulltext-"))
	assert.Len(t, strings.TrimPrefix(id, "fulltext-"), 8)
}

func TestNewFusionRunID(t *testing.T) {
	id := NewFusionRunID()

	require.True(t, strings.HasPrefix(id, "fusion-"))
	assert.Len(t, strings.TrimPrefix(id, "fusion-"), 10)
}

func TestRunIDs_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := NewFusionRunID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate run id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNormalizeFI(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"G06V10/82A", "G06V10/82"},
		{"H04L1/00", "H04L1/00"},
		{"g06v10/82a", "G06V10/82"},
		{"  H04W72/04B ", "H04W72/04"},
		{"", ""},
		{"A", "A"},
		{"AB", "AB"}, // trailing letter not preceded by digit
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeFI(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeFI_Idempotent(t *testing.T) {
	for _, code := range []string{"G06V10/82A", "H04L1/00", "B60W30/08C"} {
		once := NormalizeFI(code)
		assert.Equal(t, once, NormalizeFI(once))
	}
}

func TestNormalizeFIList_Dedupes(t *testing.T) {
	got := NormalizeFIList([]string{"G06V10/82A", "G06V10/82B", "", "H04L1/00"})

	assert.Equal(t, []string{"G06V10/82", "H04L1/00"}, got)
}
