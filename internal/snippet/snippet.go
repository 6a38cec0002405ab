// Package snippet shapes document text for tool responses: per-field
// truncation, global byte budgeting, and the minimal-snippet fallback.
package snippet

import (
	"encoding/json"

	"github.com/jl1nie/rrfusion/internal/model"
)

// Budget math reserves fixed overhead per snippet for JSON structure.
const (
	overheadBase     = 64
	overheadPerField = 24
)

// minFieldChars is the floor below which proportional cap adjustment stops
// shrinking a field. It guarantees at least one byte-safe fallback retry.
const minFieldChars = 8

// Truncate caps a string at max characters, appending "..." when text was
// dropped. Caps of 3 or fewer leave no room for the ellipsis.
func Truncate(value string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// Build shapes one snippet: the "id" key, every requested field truncated to
// its cap, and the identifier fields regardless of the request.
func Build(docID string, doc *model.Document, fields []string, caps map[string]int) model.Snippet {
	item := model.Snippet{"id": docID}
	emit := func(field string) {
		value := ""
		if doc != nil {
			value = doc.TextField(field)
		}
		if limit, ok := caps[field]; ok {
			value = Truncate(value, limit)
		}
		item[field] = value
	}
	for _, field := range fields {
		emit(field)
	}
	for _, field := range model.IdentifierFields {
		if _, ok := item[field]; !ok {
			emit(field)
		}
	}
	return item
}

// EncodedSize returns the JSON-encoded UTF-8 byte length of a snippet.
func EncodedSize(item model.Snippet) int {
	encoded, err := json.Marshal(item)
	if err != nil {
		return 0
	}
	return len(encoded)
}

// CapByBudget accumulates snippets in order until the next one would push
// the total JSON byte size past the budget. Returns the kept prefix, the
// bytes used, and whether anything was cut.
func CapByBudget(items []model.Snippet, budgetBytes int) ([]model.Snippet, int, bool) {
	var (
		kept []model.Snippet
		used int
	)
	for _, item := range items {
		size := EncodedSize(item)
		if used+size > budgetBytes {
			return kept, used, true
		}
		kept = append(kept, item)
		used += size
	}
	return kept, used, false
}

// AdjustCaps shrinks per-field caps proportionally when their sum cannot fit
// inside the budget after structural overhead, clamping each at the floor.
// Identifier and date fields keep their caps; only free-text fields shrink.
func AdjustCaps(fields []string, caps map[string]int, budgetBytes int) map[string]int {
	out := make(map[string]int, len(caps))
	for f, c := range caps {
		out[f] = c
	}

	available := budgetBytes - overheadBase - overheadPerField*len(fields)
	if available <= 0 {
		available = minFieldChars
	}

	textFields := make([]string, 0, len(fields))
	sum := 0
	for _, f := range fields {
		if isTextField(f) {
			textFields = append(textFields, f)
			sum += out[f]
		}
	}
	if sum <= available || sum == 0 {
		return out
	}

	scale := float64(available) / float64(sum)
	for _, f := range textFields {
		scaled := int(float64(out[f]) * scale)
		if scaled < minFieldChars {
			scaled = minFieldChars
		}
		out[f] = scaled
	}
	return out
}

// FallbackSingle retries one oversized snippet with progressively smaller
// field sets until one fits the budget. Returns nil when even the bare
// identifier snippet cannot fit.
func FallbackSingle(docID string, doc *model.Document, fields []string, caps map[string]int, budgetBytes int) model.Snippet {
	ladder := fallbackLadder(fields)
	for _, subset := range ladder {
		floorCaps := make(map[string]int, len(subset))
		for _, f := range subset {
			limit := minFieldChars
			if c, ok := caps[f]; ok && c < limit {
				limit = c
			}
			floorCaps[f] = limit
		}
		item := Build(docID, doc, subset, floorCaps)
		if EncodedSize(item) <= budgetBytes {
			return item
		}
	}
	return nil
}

// fallbackLadder yields field subsets from most to least informative: the
// full request, text fields only, title only, then identifiers only.
func fallbackLadder(fields []string) [][]string {
	var text []string
	for _, f := range fields {
		if isTextField(f) {
			text = append(text, f)
		}
	}
	ladder := [][]string{fields}
	if len(text) > 0 && len(text) < len(fields) {
		ladder = append(ladder, text)
	}
	for _, f := range text {
		if f == model.FieldTitle {
			ladder = append(ladder, []string{model.FieldTitle})
			break
		}
	}
	ladder = append(ladder, nil)
	return ladder
}

func isTextField(field string) bool {
	switch field {
	case model.FieldTitle, model.FieldAbst, model.FieldClaim, model.FieldDesc:
		return true
	}
	return false
}
