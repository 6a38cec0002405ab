package model

import (
	"fmt"
	"strings"

	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/ident"
)

// Cond is one flat filter condition. Filters are a conjunction of conditions;
// there are no nested groups.
type Cond struct {
	Lop   string `json:"lop"`
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

var (
	validLops   = map[string]bool{"and": true, "or": true, "not": true}
	validFields = map[string]bool{
		"ipc": true, "fi": true, "cpc": true, "pubyear": true,
		"assignee": true, "country": true, "ft": true,
	}
	validOps = map[string]bool{"in": true, "range": true, "eq": true, "neq": true}
)

// Validate checks the condition's enums.
func (c Cond) Validate() error {
	if !validLops[c.Lop] {
		return errors.Validationf("filter lop %q is not one of and/or/not", c.Lop)
	}
	if !validFields[c.Field] {
		return errors.Validationf("filter field %q is not supported", c.Field)
	}
	if !validOps[c.Op] {
		return errors.Validationf("filter op %q is not one of in/range/eq/neq", c.Op)
	}
	return nil
}

// HasCountry reports whether any condition filters on country.
func HasCountry(conds []Cond) bool {
	for _, c := range conds {
		if c.Field == "country" {
			return true
		}
	}
	return false
}

// DefaultCountry appends the JP country default when no country condition is
// present. Returns the (possibly extended) slice.
func DefaultCountry(conds []Cond) []Cond {
	if HasCountry(conds) {
		return conds
	}
	return append(conds, Cond{Lop: "and", Field: "country", Op: "in", Value: []any{"JP"}})
}

// ParseFilters consumes a loosely-shaped filter list and produces validated
// conditions. Two input shapes are accepted per entry:
//
//   - flat: {lop, field, op, value}
//   - grouped: {field, include_values, exclude_values, include_codes,
//     exclude_codes, include_range, exclude_range}
//
// Date values in YYYYMMDD form are reformatted to YYYY-MM-DD, range dicts
// ({from,to} or {start,end}) collapse to a two-element list, and FI values
// are normalized to subgroup form.
func ParseFilters(raw any) ([]Cond, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		// A single condition object is tolerated.
		if m, isMap := raw.(map[string]any); isMap {
			list = []any{m}
		} else {
			return nil, errors.Validationf("filters must be a list, got %T", raw)
		}
	}

	var conds []Cond
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, errors.Validationf("filter %d must be an object, got %T", i, entry)
		}
		if isGroupedEntry(m) {
			expanded, err := condsFromGrouped(m)
			if err != nil {
				return nil, err
			}
			conds = append(conds, expanded...)
			continue
		}
		cond, err := condFromFlat(m)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func isGroupedEntry(m map[string]any) bool {
	for _, key := range []string{
		"include_values", "exclude_values", "include_codes",
		"exclude_codes", "include_range", "exclude_range",
	} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

func condFromFlat(m map[string]any) (Cond, error) {
	cond := Cond{
		Lop:   lowerString(m["lop"]),
		Field: lowerString(m["field"]),
		Op:    lowerString(m["op"]),
		Value: m["value"],
	}

	// Range dicts collapse to [start, end].
	if cond.Op == "range" {
		if dict, ok := cond.Value.(map[string]any); ok {
			start, end := rangeBounds(dict)
			if start == nil || end == nil {
				return Cond{}, errors.Validation("range filter requires both bounds")
			}
			cond.Value = []any{start, end}
		}
	}

	cond.Value = normalizeDateValue(cond.Value)
	cond.Value = normalizeFIValue(cond.Field, cond.Value)

	if err := cond.Validate(); err != nil {
		return Cond{}, err
	}
	return cond, nil
}

func condsFromGrouped(m map[string]any) ([]Cond, error) {
	field := lowerString(m["field"])
	var conds []Cond

	add := func(lop, op string, value any) error {
		cond := Cond{Lop: lop, Field: field, Op: op, Value: normalizeFIValue(field, normalizeDateValue(value))}
		if err := cond.Validate(); err != nil {
			return err
		}
		conds = append(conds, cond)
		return nil
	}

	for _, spec := range []struct {
		key string
		lop string
	}{
		{"include_values", "and"},
		{"exclude_values", "not"},
		{"include_codes", "and"},
		{"exclude_codes", "not"},
	} {
		if values, ok := m[spec.key].([]any); ok && len(values) > 0 {
			if err := add(spec.lop, "in", values); err != nil {
				return nil, err
			}
		}
	}

	for _, spec := range []struct {
		key string
		lop string
	}{
		{"include_range", "and"},
		{"exclude_range", "not"},
	} {
		dict, ok := m[spec.key].(map[string]any)
		if !ok {
			continue
		}
		start, end := rangeBounds(dict)
		if start == nil || end == nil {
			continue
		}
		if err := add(spec.lop, "range", []any{start, end}); err != nil {
			return nil, err
		}
	}
	return conds, nil
}

func rangeBounds(dict map[string]any) (start, end any) {
	start = dict["from"]
	if start == nil {
		start = dict["start"]
	}
	end = dict["to"]
	if end == nil {
		end = dict["end"]
	}
	return start, end
}

// normalizeDateValue reformats YYYYMMDD strings or integers to YYYY-MM-DD,
// recursing into lists.
func normalizeDateValue(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeDateValue(item)
		}
		return out
	case string:
		return formatDate(v)
	case float64:
		// JSON numbers arrive as float64; only exact 8-digit ints qualify.
		if v == float64(int64(v)) {
			if s := formatDate(fmt.Sprintf("%d", int64(v))); s != fmt.Sprintf("%d", int64(v)) {
				return s
			}
		}
		return v
	case int:
		if s := formatDate(fmt.Sprintf("%d", v)); s != fmt.Sprintf("%d", v) {
			return s
		}
		return v
	}
	return value
}

func formatDate(s string) string {
	if len(s) != 8 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}

// normalizeFIValue rewrites FI filter values to subgroup form.
func normalizeFIValue(field string, value any) any {
	if field != "fi" {
		return value
	}
	switch v := value.(type) {
	case string:
		return ident.NormalizeFI(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = ident.NormalizeFI(s)
			} else {
				out[i] = item
			}
		}
		return out
	}
	return value
}

func lowerString(v any) string {
	s, _ := v.(string)
	return strings.ToLower(strings.TrimSpace(s))
}
