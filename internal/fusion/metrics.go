package fusion

import (
	"math"

	"github.com/jl1nie/rrfusion/internal/model"
)

// Metric windows and defaults.
const (
	metricsTopN        = 50
	shapeHeadN         = 3
	DefaultBetaStruct  = 1.0
	DefaultShapeLambda = 0.5
)

// LaneAgreement is the mean pairwise Jaccard similarity over the lane
// top-50 doc-id sets. A single lane scores 0.
func LaneAgreement(lanes map[model.Lane][]model.ScoredDoc) float64 {
	sets := make([]map[string]bool, 0, len(lanes))
	for _, docs := range lanes {
		set := make(map[string]bool, metricsTopN)
		for i, doc := range docs {
			if i >= metricsTopN {
				break
			}
			set[doc.DocID] = true
		}
		sets = append(sets, set)
	}
	if len(sets) < 2 {
		return 0
	}
	sum, pairs := 0.0, 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			sum += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for docID := range a {
		if b[docID] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// CodeConcentration measures how concentrated the top docs are on FI
// subgroups: 1 − H/log(n) over the distribution of each doc's first
// FI-subgroup code. No codes yields 0; a single code yields 1.
func CodeConcentration(docs map[string]*model.Document, ordered []string) float64 {
	counts := make(map[string]int)
	total := 0
	for i, docID := range ordered {
		if i >= metricsTopN {
			break
		}
		doc, ok := docs[docID]
		if !ok || len(doc.FINorm) == 0 {
			continue
		}
		counts[doc.FINorm[0]]++
		total++
	}
	if total == 0 {
		return 0
	}
	if len(counts) == 1 {
		return 1
	}
	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		entropy -= p * math.Log(p)
	}
	return 1 - entropy/math.Log(float64(len(counts)))
}

// ScoreShape is the share of fused score mass held by the top 3 relative to
// the top 50. A spiky head pushes this toward 1.
func ScoreShape(pairs []model.ScoredDoc) float64 {
	head, total := 0.0, 0.0
	for i, pair := range pairs {
		if i >= metricsTopN {
			break
		}
		if i < shapeHeadN {
			head += pair.Score
		}
		total += pair.Score
	}
	if total <= 0 {
		return 0
	}
	return head / total
}

// ComputeMetrics derives the structural fusion-quality summary from lane
// inputs and the fused ordering.
func ComputeMetrics(lanes map[model.Lane][]model.ScoredDoc, docs map[string]*model.Document, pairs []model.ScoredDoc, betaStruct float64) *model.FusionMetrics {
	if betaStruct <= 0 {
		betaStruct = DefaultBetaStruct
	}
	ordered := make([]string, len(pairs))
	for i, pair := range pairs {
		ordered[i] = pair.DocID
	}

	las := LaneAgreement(lanes)
	ccw := CodeConcentration(docs, ordered)
	shape := ScoreShape(pairs)

	betaSq := betaStruct * betaStruct
	fStruct := 0.0
	if denom := betaSq*las + ccw; denom > 0 {
		fStruct = (1 + betaSq) * las * ccw / denom
	}
	fProxy := fStruct * math.Max(1-DefaultShapeLambda*shape, 0)

	return &model.FusionMetrics{
		LAS:        round3(las),
		CCW:        round3(ccw),
		SShape:     round3(shape),
		FStruct:    round3(fStruct),
		BetaStruct: betaStruct,
		Fproxy:     round3(fProxy),
	}
}
