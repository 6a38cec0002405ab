package model

// SearchToolResponse is the lane-run handle returned by a lane search.
type SearchToolResponse struct {
	Lane          Lane                `json:"lane"`
	RunID         string              `json:"run_id_lane"`
	TopK          int                 `json:"top_k"`
	CountReturned int                 `json:"count_returned"`
	Truncated     bool                `json:"truncated"`
	TookMS        int64               `json:"took_ms"`
	CodeFreqs     CodeFreqs           `json:"code_freqs,omitempty"`
	TopCodes      map[string][]string `json:"top_codes,omitempty"`
}

// Multi-lane batch entry tools.
const (
	MultiLaneToolFulltext = "fulltext"
	MultiLaneToolSemantic = "semantic"
)

// MultiLaneEntry is one lane search in a sequential batch.
type MultiLaneEntry struct {
	Alias  string       `json:"alias"`
	Tool   string       `json:"tool"`
	Lane   Lane         `json:"lane"`
	Params SearchParams `json:"params"`
}

// Multi-lane entry statuses.
const (
	MultiLaneSuccess = "success"
	MultiLaneError   = "error"
)

// MultiLaneEntryError is a structured per-entry failure.
type MultiLaneEntryError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// MultiLaneEntryResult is the outcome of one batch entry.
type MultiLaneEntryResult struct {
	Alias  string               `json:"alias"`
	Tool   string               `json:"tool"`
	Lane   Lane                 `json:"lane"`
	Status string               `json:"status"`
	TookMS int64                `json:"took_ms"`
	Handle *SearchToolResponse  `json:"handle,omitempty"`
	Error  *MultiLaneEntryError `json:"error,omitempty"`
}

// MultiLaneResponse aggregates a sequential batch.
type MultiLaneResponse struct {
	Results      []MultiLaneEntryResult `json:"results"`
	SuccessCount int                    `json:"success_count"`
	ErrorCount   int                    `json:"error_count"`
	TookMSTotal  int64                  `json:"took_ms_total"`
	TraceID      string                 `json:"trace_id,omitempty"`
}

// BlendRequest asks for a fusion of cached lane runs.
type BlendRequest struct {
	Runs            []SourceRun                   `json:"runs"`
	Weights         map[string]float64            `json:"weights,omitempty"`
	RRFK            int                           `json:"rrf_k,omitempty"`
	BetaFuse        float64                       `json:"beta_fuse,omitempty"`
	TargetProfile   map[string]map[string]float64 `json:"target_profile,omitempty"`
	TopMPerLane     map[string]int                `json:"top_m_per_lane,omitempty"`
	KGrid           []int                         `json:"k_grid,omitempty"`
	Peek            *PeekInline                   `json:"peek,omitempty"`
	Facets          map[string][]string           `json:"facets,omitempty"`
	FacetWeights    map[string]float64            `json:"facet_weights,omitempty"`
	Representatives []Representative              `json:"representatives,omitempty"`
	TraceID         string                        `json:"trace_id,omitempty"`
}

// BlendResponse is the full fusion result.
type BlendResponse struct {
	RunID         string                        `json:"run_id"`
	PairsTop      []ScoredDoc                   `json:"pairs_top"`
	PriorityPairs []ScoredDoc                   `json:"priority_pairs,omitempty"`
	Frontier      []FrontierEntry               `json:"frontier"`
	FreqsTopK     CodeFreqs                     `json:"freqs_topk"`
	Contrib       map[string]map[string]float64 `json:"contrib"`
	Recipe        *Recipe                       `json:"recipe"`
	PeekSamples   []Snippet                     `json:"peek_samples,omitempty"`
	Metrics       *FusionMetrics                `json:"metrics,omitempty"`
	TookMS        int64                         `json:"took_ms"`
}

// MutateResponse is the handle for a fusion run derived via mutate.
type MutateResponse struct {
	NewRunID string          `json:"new_run_id"`
	Frontier []FrontierEntry `json:"frontier"`
	Recipe   *Recipe         `json:"recipe"`
	TookMS   int64           `json:"took_ms"`
}

// Snippet is one shaped document snippet: the "id" key plus truncated
// field values.
type Snippet map[string]string

// PeekRequest pages budgeted snippets out of a run's ranking.
type PeekRequest struct {
	RunID         string         `json:"run_id"`
	Offset        int            `json:"offset"`
	Limit         int            `json:"limit"`
	Fields        []string       `json:"fields,omitempty"`
	PerFieldChars map[string]int `json:"per_field_chars,omitempty"`
	BudgetBytes   int            `json:"budget_bytes,omitempty"`
	TraceID       string         `json:"trace_id,omitempty"`
}

// PeekMeta describes a peek page.
type PeekMeta struct {
	UsedBytes  int   `json:"used_bytes"`
	Truncated  bool  `json:"truncated"`
	PeekCursor *int  `json:"peek_cursor"`
	TotalDocs  int64 `json:"total_docs"`
	Retrieved  int   `json:"retrieved"`
	Returned   int   `json:"returned"`
	TookMS     int64 `json:"took_ms"`
}

// PeekResponse is a page of budgeted snippets.
type PeekResponse struct {
	RunID    string    `json:"run_id"`
	Snippets []Snippet `json:"snippets"`
	Meta     PeekMeta  `json:"meta"`
}

// GetSnippetsRequest fetches snippets for a curated id list; no paging,
// no budget.
type GetSnippetsRequest struct {
	IDs           []string       `json:"ids"`
	Fields        []string       `json:"fields,omitempty"`
	PerFieldChars map[string]int `json:"per_field_chars,omitempty"`
	TraceID       string         `json:"trace_id,omitempty"`
}

// Publication identifier namespaces.
const (
	IDTypePubID    = "pub_id"
	IDTypeAppDocID = "app_doc_id"
	IDTypeAppID    = "app_id"
	IDTypeExamID   = "exam_id"
)

// GetPublicationRequest fetches publication records by typed identifier.
type GetPublicationRequest struct {
	IDs           []string       `json:"ids"`
	IDType        string         `json:"id_type,omitempty"`
	Fields        []string       `json:"fields,omitempty"`
	PerFieldChars map[string]int `json:"per_field_chars,omitempty"`
	TraceID       string         `json:"trace_id,omitempty"`
}

// RepresentativeRank annotates a stored representative with its current
// position in the fused ranking.
type RepresentativeRank struct {
	Representative
	Rank  int     `json:"rank,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// ProvenanceResponse reports a run's recipe and lineage.
type ProvenanceResponse struct {
	RunID             string                        `json:"run_id"`
	Meta              *RunMeta                      `json:"meta"`
	Lineage           []string                      `json:"lineage"`
	LaneContributions map[string]map[string]float64 `json:"lane_contributions,omitempty"`
	CodeDistributions CodeFreqs                     `json:"code_distributions,omitempty"`
	ConfigSnapshot    map[string]any                `json:"config_snapshot,omitempty"`
	Metrics           *FusionMetrics                `json:"metrics,omitempty"`
	Representatives   []RepresentativeRank          `json:"representatives,omitempty"`
}
