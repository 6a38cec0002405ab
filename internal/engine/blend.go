package engine

import (
	"context"
	"time"

	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/fusion"
	"github.com/jl1nie/rrfusion/internal/ident"
	"github.com/jl1nie/rrfusion/internal/model"
	"github.com/jl1nie/rrfusion/internal/snippet"
)

const contribTopDocs = 20

// Blend fuses cached lane runs into a new fusion run.
func (e *Engine) Blend(ctx context.Context, req model.BlendRequest) (*model.BlendResponse, error) {
	return e.blend(ctx, req, nil, nil)
}

// blend carries the optional mutate context: the delta recorded into the new
// recipe and the parent meta extending the lineage.
func (e *Engine) blend(ctx context.Context, req model.BlendRequest, delta *model.MutateDelta, parent *model.RunMeta) (*model.BlendResponse, error) {
	start := time.Now()
	if len(req.Runs) == 0 {
		return nil, errors.Validation("blend requires at least one source run")
	}

	recipe := e.buildRecipe(req, delta)

	// Load each lane ranking up to its read depth.
	lanes := make(map[model.Lane][]model.ScoredDoc, len(req.Runs))
	for _, run := range req.Runs {
		lane := run.Lane
		if lane == "" {
			if derived, ok := model.LaneFromRunID(run.RunID); ok {
				lane = derived
			}
		}
		if !lane.Valid() {
			return nil, errors.Validationf("unknown lane %q for run %q", run.Lane, run.RunID)
		}
		meta, err := e.store.GetRunMeta(ctx, run.RunID)
		if err != nil {
			return nil, errors.Internal("load run meta", err)
		}
		if meta == nil {
			return nil, errors.NotFound("run " + run.RunID + " not found or expired")
		}
		if meta.RunType != model.RunTypeLane {
			return nil, errors.Precondition("run " + run.RunID + " is not a lane run")
		}
		topM := recipe.TopMPerLane[string(lane)]
		if topM <= 0 {
			topM = model.DefaultTopMPerLane
		}
		rows, err := e.store.RankingSlice(ctx, meta.LaneKey, 0, int64(topM-1), true)
		if err != nil {
			return nil, errors.Internal("read lane ranking", err)
		}
		lanes[lane] = rows
	}

	// Bulk-load every ranked doc's codes and text.
	uniq := make(map[string]bool)
	var docIDs []string
	for _, rows := range lanes {
		for _, row := range rows {
			if !uniq[row.DocID] {
				uniq[row.DocID] = true
				docIDs = append(docIDs, row.DocID)
			}
		}
	}
	docs, err := e.store.GetDocs(ctx, docIDs)
	if err != nil {
		return nil, errors.Internal("load docs", err)
	}

	scores, contribs := fusion.RRFScores(lanes, recipe.RRFK, recipe.Weights)
	fusion.ApplyCodeBoosts(scores, contribs, docs, recipe.TargetProfile, recipe.Weights)
	pairs := fusion.SortScores(scores)
	ordered := model.DocIDs(pairs)

	laneRanks := fusion.LaneRanks(lanes)
	pi := fusion.PiScores(docs, recipe.TargetProfile, recipe.Facets, recipe.FacetWeights,
		laneRanks, recipe.Weights, model.DefaultPiWeights())
	frontier := fusion.Frontier(ordered, recipe.KGrid, pi, recipe.BetaFuse)

	maxK := maxOf(recipe.KGrid)
	topIDs := ordered[:min(maxK, len(ordered))]
	freqsTopK := fusion.AggregateCodeFreqs(docs, topIDs)
	contrib := fusion.RoundContributions(contribs, ordered, contribTopDocs)
	metrics := fusion.ComputeMetrics(lanes, docs, pairs, fusion.DefaultBetaStruct)

	pairsTop := pairs[:min(maxK, len(pairs))]
	priority := fusion.PriorityPairs(pairsTop, recipe.Representatives)

	var peekSamples []model.Snippet
	if req.Peek != nil && req.Peek.Count > 0 {
		peekSamples = e.inlinePeek(ctx, req.Peek, topIDs, docs)
	}

	runID := ident.NewFusionRunID()
	meta := &model.RunMeta{
		SourceRuns:      req.Runs,
		Recipe:          recipe,
		FreqsTopK:       freqsTopK,
		Contrib:         contrib,
		Metrics:         metrics,
		Representatives: recipe.Representatives,
		TookMS:          time.Since(start).Milliseconds(),
	}
	if parent != nil {
		meta.Parent = parent.RunID
		meta.Lineage = append(append([]string(nil), parent.Lineage...), parent.RunID)
	}
	if err := e.store.PutFusionRun(ctx, runID, pairs, meta); err != nil {
		return nil, errors.Internal("persist fusion run", err)
	}

	e.log.InfoContext(ctx, "blend stored",
		"run_id", runID, "sources", len(req.Runs), "docs", len(pairs), "rrf_k", recipe.RRFK)

	return &model.BlendResponse{
		RunID:         runID,
		PairsTop:      pairsTop,
		PriorityPairs: priority,
		Frontier:      frontier,
		FreqsTopK:     freqsTopK,
		Contrib:       contrib,
		Recipe:        recipe,
		PeekSamples:   peekSamples,
		Metrics:       metrics,
		TookMS:        time.Since(start).Milliseconds(),
	}, nil
}

// buildRecipe fills the blend request's gaps with engine defaults.
func (e *Engine) buildRecipe(req model.BlendRequest, delta *model.MutateDelta) *model.Recipe {
	recipe := &model.Recipe{
		Weights:         req.Weights,
		RRFK:            req.RRFK,
		BetaFuse:        req.BetaFuse,
		TargetProfile:   req.TargetProfile,
		TopMPerLane:     req.TopMPerLane,
		KGrid:           req.KGrid,
		Peek:            req.Peek,
		Facets:          req.Facets,
		FacetWeights:    req.FacetWeights,
		Representatives: req.Representatives,
		Delta:           delta,
	}
	if len(recipe.Weights) == 0 {
		recipe.Weights = model.DefaultWeights()
	}
	if recipe.RRFK <= 0 {
		recipe.RRFK = e.cfg.Fusion.RRFK
	}
	if recipe.RRFK <= 0 {
		recipe.RRFK = model.DefaultRRFK
	}
	if recipe.BetaFuse <= 0 {
		recipe.BetaFuse = model.DefaultBetaFuse
	}
	if len(recipe.TopMPerLane) == 0 {
		recipe.TopMPerLane = model.DefaultTopM()
	}
	if len(recipe.KGrid) == 0 {
		recipe.KGrid = model.DefaultKGrid()
	}
	if len(recipe.FacetWeights) == 0 && len(recipe.Facets) > 0 {
		recipe.FacetWeights = model.DefaultFacetWeights()
	}
	return recipe
}

// inlinePeek builds budgeted snippet previews for the first peek.Count docs.
func (e *Engine) inlinePeek(ctx context.Context, peek *model.PeekInline, topIDs []string, docs map[string]*model.Document) []model.Snippet {
	fields := peek.Fields
	if len(fields) == 0 {
		fields = model.DefaultPeekFields()
	}
	caps := peek.PerFieldChars
	if len(caps) == 0 {
		caps = model.DefaultPeekFieldChars()
	}
	budget := peek.BudgetBytes
	if budget <= 0 {
		budget = e.cfg.Peek.BudgetBytes
	}
	caps = snippet.AdjustCaps(fields, caps, budget)

	n := min(peek.Count, len(topIDs))
	items := make([]model.Snippet, 0, n)
	for _, docID := range topIDs[:n] {
		items = append(items, snippet.Build(docID, docs[docID], fields, caps))
	}
	capped, _, _ := snippet.CapByBudget(items, budget)
	return capped
}

// Mutate derives a child fusion run by overlaying a delta on the parent's
// recipe and re-blending the original source runs.
func (e *Engine) Mutate(ctx context.Context, runID string, delta model.MutateDelta) (*model.MutateResponse, error) {
	start := time.Now()
	parent, err := e.store.GetRunMeta(ctx, runID)
	if err != nil {
		return nil, errors.Internal("load run meta", err)
	}
	if parent == nil {
		return nil, errors.NotFound("fusion run " + runID + " not found or expired")
	}
	if parent.RunType != model.RunTypeFusion {
		return nil, errors.Precondition("mutate requires a fusion run, got a lane run")
	}

	recipe := parent.Recipe.Clone()
	if recipe == nil {
		recipe = &model.Recipe{}
	}
	if len(delta.Weights) > 0 {
		if recipe.Weights == nil {
			recipe.Weights = make(map[string]float64, len(delta.Weights))
		}
		for lane, w := range delta.Weights {
			recipe.Weights[lane] = w
		}
	}
	if delta.RRFK != nil {
		recipe.RRFK = *delta.RRFK
	}
	if delta.BetaFuse != nil {
		recipe.BetaFuse = *delta.BetaFuse
	}

	req := model.BlendRequest{
		Runs:            parent.SourceRuns,
		Weights:         recipe.Weights,
		RRFK:            recipe.RRFK,
		BetaFuse:        recipe.BetaFuse,
		TargetProfile:   recipe.TargetProfile,
		TopMPerLane:     recipe.TopMPerLane,
		KGrid:           recipe.KGrid,
		Facets:          recipe.Facets,
		FacetWeights:    recipe.FacetWeights,
		Representatives: recipe.Representatives,
	}
	resp, err := e.blend(ctx, req, &delta, parent)
	if err != nil {
		return nil, err
	}

	return &model.MutateResponse{
		NewRunID: resp.RunID,
		Frontier: resp.Frontier,
		Recipe:   resp.Recipe,
		TookMS:   time.Since(start).Milliseconds(),
	}, nil
}

func maxOf(values []int) int {
	max := 0
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
