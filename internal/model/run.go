package model

// ScoredDoc is one row of a ranked list.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// DocIDs projects the identifiers out of a ranked list.
func DocIDs(docs []ScoredDoc) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}
	return ids
}

// Run types stored in run metadata.
const (
	RunTypeLane   = "lane"
	RunTypeFusion = "fusion"
)

// SourceRun references a lane run feeding a fusion.
type SourceRun struct {
	Lane  Lane   `json:"lane"`
	RunID string `json:"run_id"`
}

// Representative is a user-selected A/B/C document, re-prioritized at
// presentation time without altering the canonical fused ranking.
type Representative struct {
	DocID  string `json:"doc_id"`
	Label  string `json:"label"`
	Reason string `json:"reason,omitempty"`
}

// RepresentativeLabels are the accepted labels, in priority order.
var RepresentativeLabels = []string{"A", "B", "C"}

// PeekInline is the inline snippet preview configuration accepted by blend.
type PeekInline struct {
	Count         int            `json:"count"`
	Fields        []string       `json:"fields,omitempty"`
	PerFieldChars map[string]int `json:"per_field_chars,omitempty"`
	BudgetBytes   int            `json:"budget_bytes,omitempty"`
}

// MutateDelta is the recipe override applied by mutate. Weights merge into
// the parent's weights; rrf_k and beta_fuse replace.
type MutateDelta struct {
	Weights  map[string]float64 `json:"weights,omitempty"`
	RRFK     *int               `json:"rrf_k,omitempty"`
	BetaFuse *float64           `json:"beta_fuse,omitempty"`
}

// Recipe is the immutable configuration snapshot of a fusion run.
type Recipe struct {
	Weights         map[string]float64            `json:"weights"`
	RRFK            int                           `json:"rrf_k"`
	BetaFuse        float64                       `json:"beta_fuse"`
	TargetProfile   map[string]map[string]float64 `json:"target_profile,omitempty"`
	TopMPerLane     map[string]int                `json:"top_m_per_lane,omitempty"`
	KGrid           []int                         `json:"k_grid,omitempty"`
	Peek            *PeekInline                   `json:"peek,omitempty"`
	Facets          map[string][]string           `json:"facets,omitempty"`
	FacetWeights    map[string]float64            `json:"facet_weights,omitempty"`
	Representatives []Representative              `json:"representatives,omitempty"`
	Delta           *MutateDelta                  `json:"delta,omitempty"`
}

// Clone deep-copies the recipe so mutate never aliases the parent's maps.
func (r *Recipe) Clone() *Recipe {
	if r == nil {
		return nil
	}
	out := &Recipe{
		RRFK:     r.RRFK,
		BetaFuse: r.BetaFuse,
	}
	out.Weights = copyFloatMap(r.Weights)
	out.FacetWeights = copyFloatMap(r.FacetWeights)
	if r.TargetProfile != nil {
		out.TargetProfile = make(map[string]map[string]float64, len(r.TargetProfile))
		for tax, codes := range r.TargetProfile {
			out.TargetProfile[tax] = copyFloatMap(codes)
		}
	}
	if r.TopMPerLane != nil {
		out.TopMPerLane = make(map[string]int, len(r.TopMPerLane))
		for k, v := range r.TopMPerLane {
			out.TopMPerLane[k] = v
		}
	}
	out.KGrid = append([]int(nil), r.KGrid...)
	if r.Peek != nil {
		peek := *r.Peek
		peek.Fields = append([]string(nil), r.Peek.Fields...)
		if r.Peek.PerFieldChars != nil {
			peek.PerFieldChars = make(map[string]int, len(r.Peek.PerFieldChars))
			for k, v := range r.Peek.PerFieldChars {
				peek.PerFieldChars[k] = v
			}
		}
		out.Peek = &peek
	}
	if r.Facets != nil {
		out.Facets = make(map[string][]string, len(r.Facets))
		for k, v := range r.Facets {
			out.Facets[k] = append([]string(nil), v...)
		}
	}
	out.Representatives = append([]Representative(nil), r.Representatives...)
	if r.Delta != nil {
		delta := MutateDelta{Weights: copyFloatMap(r.Delta.Weights)}
		if r.Delta.RRFK != nil {
			v := *r.Delta.RRFK
			delta.RRFK = &v
		}
		if r.Delta.BetaFuse != nil {
			v := *r.Delta.BetaFuse
			delta.BetaFuse = &v
		}
		out.Delta = &delta
	}
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FrontierEntry is one precision/recall/Fβ triple at cut-off k.
type FrontierEntry struct {
	K         int     `json:"k"`
	PStar     float64 `json:"P_star"`
	RStar     float64 `json:"R_star"`
	FBetaStar float64 `json:"F_beta_star"`
}

// FusionMetrics are the no-ground-truth fusion-quality diagnostics.
type FusionMetrics struct {
	LAS        float64 `json:"las"`
	CCW        float64 `json:"ccw"`
	SShape     float64 `json:"s_shape"`
	FStruct    float64 `json:"f_struct"`
	BetaStruct float64 `json:"beta_struct"`
	Fproxy     float64 `json:"f_proxy"`
}

// RunMeta is the metadata blob persisted per run. Lane runs and fusion runs
// share the struct; unused fields stay empty.
type RunMeta struct {
	RunID   string `json:"run_id"`
	RunType string `json:"run_type"`

	// Lane-run fields.
	Lane          Lane          `json:"lane,omitempty"`
	LaneKey       string        `json:"lane_key,omitempty"`
	FreqKey       string        `json:"freq_key,omitempty"`
	QueryHash     string        `json:"query_hash,omitempty"`
	Query         string        `json:"query,omitempty"`
	Filters       []Cond        `json:"filters,omitempty"`
	TopK          int           `json:"top_k,omitempty"`
	CountReturned int           `json:"count_returned,omitempty"`
	Truncated     bool          `json:"truncated,omitempty"`
	Params        *SearchParams `json:"params,omitempty"`

	// Fusion-run fields.
	RRFKey          string                        `json:"rrf_key,omitempty"`
	SourceRuns      []SourceRun                   `json:"source_runs,omitempty"`
	Recipe          *Recipe                       `json:"recipe,omitempty"`
	Parent          string                        `json:"parent,omitempty"`
	Lineage         []string                      `json:"lineage,omitempty"`
	FreqsTopK       CodeFreqs                     `json:"freqs_topk,omitempty"`
	Contrib         map[string]map[string]float64 `json:"contrib,omitempty"`
	Metrics         *FusionMetrics                `json:"metrics,omitempty"`
	Representatives []Representative              `json:"representatives,omitempty"`

	TookMS    int64 `json:"took_ms,omitempty"`
	CreatedAt int64 `json:"created_at,omitempty"`
}

// RankingKey returns the sorted-set key holding this run's ranking.
func (m *RunMeta) RankingKey() string {
	if m.RunType == RunTypeFusion {
		return m.RRFKey
	}
	return m.LaneKey
}
