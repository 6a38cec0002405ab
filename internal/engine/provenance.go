package engine

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/model"
)

// Provenance report defaults.
const (
	DefaultTopKLane = 10
	DefaultTopKCode = 10
)

// Provenance reports a run's recipe, lineage, and distributions.
func (e *Engine) Provenance(ctx context.Context, runID string, topKLane, topKCode int) (*model.ProvenanceResponse, error) {
	meta, err := e.store.GetRunMeta(ctx, runID)
	if err != nil {
		return nil, errors.Internal("load run meta", err)
	}
	if meta == nil {
		return nil, errors.NotFound("run " + runID + " not found or expired")
	}
	if topKLane <= 0 {
		topKLane = DefaultTopKLane
	}
	if topKCode <= 0 {
		topKCode = DefaultTopKCode
	}

	resp := &model.ProvenanceResponse{
		RunID:   runID,
		Meta:    meta,
		Lineage: meta.Lineage,
	}

	if meta.RunType == model.RunTypeLane {
		freqs, err := e.store.GetFreqSummary(ctx, meta.FreqKey)
		if err == nil {
			resp.CodeDistributions = freqs
		}
		resp.ConfigSnapshot = map[string]any{
			"lane":    meta.Lane,
			"query":   meta.Query,
			"filters": meta.Filters,
			"top_k":   meta.TopK,
			"params":  meta.Params,
		}
		return resp, nil
	}

	resp.LaneContributions = topContributions(meta.Contrib, topKLane)
	resp.CodeDistributions = topCodeDistributions(meta.FreqsTopK, topKCode)
	resp.ConfigSnapshot = recipeSnapshot(meta.Recipe)
	resp.Metrics = meta.Metrics

	if len(meta.Representatives) > 0 {
		ranked, err := e.representativeRanks(ctx, meta)
		if err != nil {
			return nil, err
		}
		resp.Representatives = ranked
	}
	return resp, nil
}

// topContributions keeps the n docs with the largest total contribution.
func topContributions(contrib map[string]map[string]float64, n int) map[string]map[string]float64 {
	if len(contrib) <= n {
		return contrib
	}
	type row struct {
		docID string
		total float64
	}
	rows := make([]row, 0, len(contrib))
	for docID, buckets := range contrib {
		total := 0.0
		for _, v := range buckets {
			total += v
		}
		rows = append(rows, row{docID, total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].total != rows[j].total {
			return rows[i].total > rows[j].total
		}
		return rows[i].docID < rows[j].docID
	})
	out := make(map[string]map[string]float64, n)
	for _, r := range rows[:n] {
		out[r.docID] = contrib[r.docID]
	}
	return out
}

// topCodeDistributions keeps the n most frequent codes per taxonomy.
func topCodeDistributions(freqs model.CodeFreqs, n int) model.CodeFreqs {
	out := make(model.CodeFreqs, len(freqs))
	for tax, counts := range freqs {
		if len(counts) <= n {
			out[tax] = counts
			continue
		}
		codes := make([]string, 0, len(counts))
		for code := range counts {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool {
			if counts[codes[i]] != counts[codes[j]] {
				return counts[codes[i]] > counts[codes[j]]
			}
			return codes[i] < codes[j]
		})
		kept := make(map[string]int, n)
		for _, code := range codes[:n] {
			kept[code] = counts[code]
		}
		out[tax] = kept
	}
	return out
}

// recipeSnapshot renders the recipe as a generic map for the provenance
// config slot.
func recipeSnapshot(recipe *model.Recipe) map[string]any {
	if recipe == nil {
		return nil
	}
	blob, err := json.Marshal(recipe)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(blob, &out); err != nil {
		return nil
	}
	return out
}

// representativeRanks annotates stored representatives with their current
// rank and score in the fused ranking.
func (e *Engine) representativeRanks(ctx context.Context, meta *model.RunMeta) ([]model.RepresentativeRank, error) {
	rows, err := e.store.RankingSlice(ctx, meta.RankingKey(), 0, -1, true)
	if err != nil {
		return nil, errors.Internal("read fused ranking", err)
	}
	position := make(map[string]int, len(rows))
	score := make(map[string]float64, len(rows))
	for i, row := range rows {
		position[row.DocID] = i + 1
		score[row.DocID] = row.Score
	}

	out := make([]model.RepresentativeRank, len(meta.Representatives))
	for i, rep := range meta.Representatives {
		out[i] = model.RepresentativeRank{Representative: rep}
		if rank, ok := position[rep.DocID]; ok {
			out[i].Rank = rank
			out[i].Score = score[rep.DocID]
		}
	}
	return out, nil
}

// RegisterRepresentatives stores the A/B/C picks on a fusion run. Allowed
// at most once per run, with 1 to 30 unique doc ids.
func (e *Engine) RegisterRepresentatives(ctx context.Context, runID string, reps []model.Representative) (*model.ProvenanceResponse, error) {
	meta, err := e.store.GetRunMeta(ctx, runID)
	if err != nil {
		return nil, errors.Internal("load run meta", err)
	}
	if meta == nil {
		return nil, errors.NotFound("run " + runID + " not found or expired")
	}
	if meta.RunType != model.RunTypeFusion {
		return nil, errors.Precondition("representatives can only be registered on fusion runs")
	}
	if len(meta.Representatives) > 0 {
		return nil, errors.Precondition("representatives already registered for run " + runID)
	}
	if len(reps) < model.MinRepresentatives || len(reps) > model.MaxRepresentatives {
		return nil, errors.Validationf("representatives must contain between %d and %d entries, got %d",
			model.MinRepresentatives, model.MaxRepresentatives, len(reps))
	}
	seen := make(map[string]bool, len(reps))
	for _, rep := range reps {
		if rep.DocID == "" {
			return nil, errors.Validation("representative doc_id must not be empty")
		}
		if seen[rep.DocID] {
			return nil, errors.Validationf("duplicate representative doc_id %q", rep.DocID)
		}
		seen[rep.DocID] = true
		if !validLabel(rep.Label) {
			return nil, errors.Validationf("unknown representative label %q", rep.Label)
		}
	}

	meta.Representatives = reps
	if meta.Recipe != nil {
		meta.Recipe.Representatives = reps
	}
	if err := e.store.SetRunMeta(ctx, runID, meta); err != nil {
		return nil, errors.Internal("persist representatives", err)
	}
	return e.Provenance(ctx, runID, 0, 0)
}

func validLabel(label string) bool {
	for _, l := range model.RepresentativeLabels {
		if label == l {
			return true
		}
	}
	return false
}
