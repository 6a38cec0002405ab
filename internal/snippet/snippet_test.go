package snippet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jl1nie/rrfusion/internal/model"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("hello", 0))
	assert.Equal(t, "", Truncate("hello", -1))
	assert.Equal(t, "hello", Truncate("hello", 5))
	assert.Equal(t, "hello", Truncate("hello", 99))
	assert.Equal(t, "he...", Truncate("hello world", 5))
	assert.Equal(t, "hel", Truncate("hello", 3))

	// Multi-byte text truncates on rune boundaries.
	got := Truncate(strings.Repeat("光", 20), 10)
	assert.Equal(t, strings.Repeat("光", 7)+"...", got)
}

func TestBuild_IdentifiersAlwaysIncluded(t *testing.T) {
	doc := &model.Document{
		DocID:    "JP1",
		Title:    "an optical coupler with a very long descriptive title",
		AppDocID: "JP1",
		PubID:    "DOC000001",
	}

	item := Build("JP1", doc, []string{model.FieldTitle}, map[string]int{model.FieldTitle: 12})

	assert.Equal(t, "JP1", item["id"])
	assert.Equal(t, "an optic...", item[model.FieldTitle])
	assert.Equal(t, "JP1", item[model.FieldAppDocID])
	assert.Equal(t, "DOC000001", item[model.FieldPubID])
	assert.Contains(t, item, model.FieldAppID)
}

func TestBuild_MissingDocYieldsEmptyFields(t *testing.T) {
	item := Build("JPX", nil, []string{model.FieldAbst}, nil)
	assert.Equal(t, "JPX", item["id"])
	assert.Equal(t, "", item[model.FieldAbst])
}

func TestCapByBudget_StopsAtFirstOverflow(t *testing.T) {
	items := []model.Snippet{
		{"id": "a", "title": strings.Repeat("x", 50)},
		{"id": "b", "title": strings.Repeat("y", 50)},
		{"id": "c", "title": strings.Repeat("z", 50)},
	}
	one := EncodedSize(items[0])

	kept, used, truncated := CapByBudget(items, one*2)
	assert.Len(t, kept, 2)
	assert.Equal(t, one*2, used)
	assert.True(t, truncated)

	kept, used, truncated = CapByBudget(items, one*10)
	assert.Len(t, kept, 3)
	assert.False(t, truncated)
	assert.Equal(t, one*3, used)
}

func TestCapByBudget_CountsUTF8Bytes(t *testing.T) {
	item := model.Snippet{"id": "a", "title": strings.Repeat("光", 10)}
	size := EncodedSize(item)
	// 10 CJK runes are 30 bytes, well above the rune count.
	assert.Greater(t, size, 30)

	kept, _, truncated := CapByBudget([]model.Snippet{item}, size-1)
	assert.Empty(t, kept)
	assert.True(t, truncated)
}

func TestAdjustCaps_ProportionalWithFloor(t *testing.T) {
	fields := []string{model.FieldTitle, model.FieldAbst, model.FieldPubID}
	caps := map[string]int{
		model.FieldTitle: 400,
		model.FieldAbst:  1600,
		model.FieldPubID: 128,
	}

	adjusted := AdjustCaps(fields, caps, 1000)

	// Overhead = 64 + 24*3 = 136; available = 864 for 2000 chars of text.
	assert.Less(t, adjusted[model.FieldTitle], 400)
	assert.Less(t, adjusted[model.FieldAbst], 1600)
	assert.GreaterOrEqual(t, adjusted[model.FieldTitle], minFieldChars)
	// Identifier caps are untouched.
	assert.Equal(t, 128, adjusted[model.FieldPubID])
	// Proportionality holds roughly 1:4.
	assert.InDelta(t, 4.0, float64(adjusted[model.FieldAbst])/float64(adjusted[model.FieldTitle]), 0.2)
}

func TestAdjustCaps_NoChangeWhenFits(t *testing.T) {
	fields := []string{model.FieldTitle}
	caps := map[string]int{model.FieldTitle: 80}

	adjusted := AdjustCaps(fields, caps, 12288)
	assert.Equal(t, 80, adjusted[model.FieldTitle])
}

func TestFallbackSingle_LadderFindsFit(t *testing.T) {
	doc := &model.Document{
		DocID:    "JP9",
		Title:    "resonator",
		Abst:     strings.Repeat("a", 4000),
		AppDocID: "JP9",
	}
	fields := []string{model.FieldTitle, model.FieldAbst}
	caps := map[string]int{model.FieldTitle: 80, model.FieldAbst: 320}

	item := FallbackSingle("JP9", doc, fields, caps, 200)
	require.NotNil(t, item)
	assert.Equal(t, "JP9", item["id"])
	assert.LessOrEqual(t, EncodedSize(item), 200)
}

func TestFallbackSingle_NothingFits(t *testing.T) {
	doc := &model.Document{DocID: "JP9", AppDocID: "JP9"}
	item := FallbackSingle("JP9", doc, []string{model.FieldTitle}, nil, 10)
	assert.Nil(t, item)
}
