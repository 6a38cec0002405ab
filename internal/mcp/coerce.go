package mcp

import (
	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/model"
)

// coerceFilters parses a loosely-shaped filter list and appends the JP
// country default when no country condition is present.
func coerceFilters(raw any) ([]model.Cond, error) {
	conds, err := model.ParseFilters(raw)
	if err != nil {
		return nil, err
	}
	return model.DefaultCountry(conds), nil
}

// coerceRuns accepts source runs as objects ({lane, run_id}) or bare run-id
// strings, deriving the lane from the handle prefix for the latter.
func coerceRuns(raw any) ([]model.SourceRun, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.Validationf("runs must be a list, got %T", raw)
	}
	runs := make([]model.SourceRun, 0, len(list))
	for i, entry := range list {
		switch v := entry.(type) {
		case string:
			if v == "" {
				return nil, errors.Validationf("run %d must not be empty", i)
			}
			lane, ok := model.LaneFromRunID(v)
			if !ok {
				return nil, errors.Validationf("cannot derive lane from run handle %q", v)
			}
			runs = append(runs, model.SourceRun{Lane: lane, RunID: v})
		case map[string]any:
			runID, _ := v["run_id"].(string)
			if runID == "" {
				return nil, errors.Validationf("run %d is missing run_id", i)
			}
			laneStr, _ := v["lane"].(string)
			lane := model.Lane(laneStr)
			if laneStr == "" {
				derived, ok := model.LaneFromRunID(runID)
				if !ok {
					return nil, errors.Validationf("cannot derive lane from run handle %q", runID)
				}
				lane = derived
			}
			runs = append(runs, model.SourceRun{Lane: lane, RunID: runID})
		default:
			return nil, errors.Validationf("run %d must be a string or an object, got %T", i, entry)
		}
	}
	return runs, nil
}

// coerceTargetProfile accepts the nested {taxonomy: {code: weight}} shape or
// a flat {code: weight} dict, which is lifted to {fi: {...}}. Empty input
// collapses to nil.
func coerceTargetProfile(raw any) (map[string]map[string]float64, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Validationf("target_profile must be an object, got %T", raw)
	}
	if len(m) == 0 {
		return nil, nil
	}

	nested := true
	for _, v := range m {
		if _, isMap := v.(map[string]any); !isMap {
			nested = false
			break
		}
	}

	if nested {
		out := make(map[string]map[string]float64, len(m))
		for tax, inner := range m {
			codes, err := floatMap(inner, "target_profile."+tax)
			if err != nil {
				return nil, err
			}
			if len(codes) > 0 {
				out[tax] = codes
			}
		}
		if len(out) == 0 {
			return nil, nil
		}
		return out, nil
	}

	flat, err := floatMap(raw, "target_profile")
	if err != nil {
		return nil, err
	}
	if len(flat) == 0 {
		return nil, nil
	}
	return map[string]map[string]float64{"fi": flat}, nil
}

func floatMap(raw any, label string) (map[string]float64, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Validationf("%s must be an object, got %T", label, raw)
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		f, ok := toFloat(v)
		if !ok {
			return nil, errors.Validationf("%s.%s must be a number, got %T", label, k, v)
		}
		out[k] = f
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
