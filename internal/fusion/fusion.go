// Package fusion implements the pure scoring math: reciprocal rank fusion,
// code-aware boosts, the π' proxy-relevance signal, the Fβ frontier, and the
// structural quality metrics.
package fusion

import (
	"math"
	"sort"
	"strings"

	"github.com/jl1nie/rrfusion/internal/model"
)

// Contribution bucket keys.
const (
	ContribRecall        = "recall"
	ContribSemantic      = "semantic"
	ContribCode          = "code"
	ContribCodeSecondary = "code_secondary"
)

// Contributions maps doc_id -> bucket -> accumulated score share.
type Contributions map[string]map[string]float64

func (c Contributions) add(docID, bucket string, delta float64) {
	m, ok := c[docID]
	if !ok {
		m = make(map[string]float64, 4)
		c[docID] = m
	}
	m[bucket] += delta
}

// laneWeight resolves the weight for a lane: exact lane key first, then the
// role key, then 1.
func laneWeight(weights map[string]float64, lane model.Lane) float64 {
	if w, ok := weights[string(lane)]; ok {
		return w
	}
	if w, ok := weights[lane.Role()]; ok {
		return w
	}
	return 1.0
}

// RRFScores fuses lane rankings: each doc accumulates weight/(rrf_k + rank)
// per lane, with 1-based ranks. Contributions are bucketed by lane role.
func RRFScores(lanes map[model.Lane][]model.ScoredDoc, rrfK int, weights map[string]float64) (map[string]float64, Contributions) {
	scores := make(map[string]float64)
	contribs := make(Contributions)
	for lane, docs := range lanes {
		w := laneWeight(weights, lane)
		role := lane.Role()
		for i, doc := range docs {
			delta := w / float64(rrfK+i+1)
			scores[doc.DocID] += delta
			contribs.add(doc.DocID, role, delta)
		}
	}
	return scores, contribs
}

// ApplyCodeBoosts adds target-profile boosts in place. The primary "code"
// weight covers ipc, cpc, ft, and the subgroup-normalized FI codes; the
// "code_secondary" weight covers exact FI codes. A zero profile or zero
// weights leave scores untouched.
func ApplyCodeBoosts(scores map[string]float64, contribs Contributions, docs map[string]*model.Document, targetProfile map[string]map[string]float64, weights map[string]float64) {
	if len(targetProfile) == 0 {
		return
	}
	codeW := weights[ContribCode]
	secondaryW := weights[ContribCodeSecondary]
	if codeW == 0 && secondaryW == 0 {
		return
	}

	for docID, doc := range docs {
		if _, ranked := scores[docID]; !ranked {
			continue
		}
		if codeW != 0 {
			primary := profileSum(targetProfile["ipc"], doc.IPCCodes) +
				profileSum(targetProfile["cpc"], doc.CPCCodes) +
				profileSum(targetProfile["ft"], doc.FTCodes) +
				profileSum(targetProfile["fi"], doc.FINorm)
			if primary > 0 {
				boost := primary * codeW
				scores[docID] += boost
				contribs.add(docID, ContribCode, boost)
			}
		}
		if secondaryW != 0 {
			exact := profileSum(targetProfile["fi"], doc.FICodes)
			if exact > 0 {
				boost := exact * secondaryW
				scores[docID] += boost
				contribs.add(docID, ContribCodeSecondary, boost)
			}
		}
	}
}

func profileSum(desired map[string]float64, codes []string) float64 {
	if len(desired) == 0 || len(codes) == 0 {
		return 0
	}
	sum := 0.0
	for _, code := range codes {
		sum += desired[code]
	}
	return sum
}

// SortScores orders docs by descending score, breaking ties by doc_id so the
// fused ordering is deterministic.
func SortScores(scores map[string]float64) []model.ScoredDoc {
	out := make([]model.ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		out = append(out, model.ScoredDoc{DocID: docID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

// CodeScores computes normalized [0,1] overlap between each doc's exact
// codes and the target profile. An empty profile or zero overlap everywhere
// yields a uniform 1.
func CodeScores(docs map[string]*model.Document, targetProfile map[string]map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(docs))
	if len(targetProfile) == 0 {
		for docID := range docs {
			out[docID] = 1.0
		}
		return out
	}
	maxScore := 0.0
	for docID, doc := range docs {
		score := profileSum(targetProfile["ipc"], doc.IPCCodes) +
			profileSum(targetProfile["cpc"], doc.CPCCodes) +
			profileSum(targetProfile["fi"], doc.FICodes) +
			profileSum(targetProfile["ft"], doc.FTCodes)
		out[docID] = score
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore <= 0 {
		for docID := range out {
			out[docID] = 1.0
		}
		return out
	}
	for docID := range out {
		out[docID] /= maxScore
	}
	return out
}

// facetFieldWeights weight the fields consulted for facet term matches.
var facetFieldWeights = []struct {
	field  string
	weight float64
}{
	{model.FieldClaim, 0.5},
	{model.FieldAbst, 0.3},
	{model.FieldDesc, 0.2},
}

// FacetScore computes per-doc facet coverage over claim/abst/desc text.
// A facet counts once per field containing any of its terms, case
// insensitively. Empty facet input yields a uniform 1.
func FacetScore(docs map[string]*model.Document, facets map[string][]string, facetWeights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(docs))
	if len(facets) == 0 {
		for docID := range docs {
			out[docID] = 1.0
		}
		return out
	}

	normalized := make(map[string]float64, len(facets))
	totalWeight := 0.0
	for comp := range facets {
		w := 1.0
		if fw, ok := facetWeights[comp]; ok {
			w = fw
		}
		if w < 0 {
			w = 0
		}
		normalized[comp] = w
		totalWeight += w
	}
	if totalWeight == 0 {
		totalWeight = float64(len(facets))
	}

	for docID, doc := range docs {
		score := 0.0
		for comp, terms := range facets {
			compScore := 0.0
			for _, fw := range facetFieldWeights {
				text := strings.ToLower(doc.TextField(fw.field))
				if text == "" {
					continue
				}
				for _, term := range terms {
					if strings.Contains(text, strings.ToLower(term)) {
						compScore += fw.weight
						break
					}
				}
			}
			score += normalized[comp] * compScore
		}
		out[docID] = math.Min(score/totalWeight, 1.0)
	}
	return out
}

// LaneRanks inverts lane rankings into doc -> lane -> 1-based rank.
func LaneRanks(lanes map[model.Lane][]model.ScoredDoc) map[string]map[string]int {
	ranks := make(map[string]map[string]int)
	for lane, docs := range lanes {
		for i, doc := range docs {
			m, ok := ranks[doc.DocID]
			if !ok {
				m = make(map[string]int, len(lanes))
				ranks[doc.DocID] = m
			}
			m[string(lane)] = i + 1
		}
	}
	return ranks
}

// LaneConsistency rewards docs that rank highly across lanes: sum of
// weight/(rank+1), normalized by the maximum so values lie in [0,1].
func LaneConsistency(laneRanks map[string]map[string]int, laneWeights map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(laneRanks))
	maxScore := 0.0
	for docID, ranks := range laneRanks {
		score := 0.0
		for lane, rank := range ranks {
			w := 1.0
			if lw, ok := laneWeights[lane]; ok {
				w = lw
			}
			score += w / float64(rank+1)
		}
		out[docID] = score
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore == 0 {
		for docID := range out {
			out[docID] = 0.0
		}
		return out
	}
	for docID := range out {
		out[docID] /= maxScore
	}
	return out
}

// PiScores combines the code, facet, and lane-consistency signals through a
// logistic transform so π' lies in (0,1).
func PiScores(docs map[string]*model.Document, targetProfile map[string]map[string]float64, facets map[string][]string, facetWeights map[string]float64, laneRanks map[string]map[string]int, laneWeights, piWeights map[string]float64) map[string]float64 {
	codeScores := CodeScores(docs, targetProfile)
	facetScores := FacetScore(docs, facets, facetWeights)
	consistency := LaneConsistency(laneRanks, laneWeights)

	out := make(map[string]float64, len(docs))
	for docID := range docs {
		raw := piWeights[ContribCode]*codeScores[docID] +
			piWeights["facet"]*facetScores[docID] +
			piWeights["lane"]*consistency[docID]
		out[docID] = 1.0 / (1.0 + math.Exp(-raw))
	}
	return out
}

// Frontier sweeps the k grid over the fused ordering, estimating precision
// and recall from π' mass. Values are rounded to 3 decimals.
func Frontier(ordered []string, kGrid []int, piScores map[string]float64, betaFuse float64) []model.FrontierEntry {
	if len(ordered) == 0 {
		return nil
	}
	total := 0.0
	for _, docID := range ordered {
		total += piScores[docID]
	}
	mass := piScores
	if total <= 0 {
		// Degenerate π': treat every doc as equally relevant.
		total = float64(len(ordered))
		mass = make(map[string]float64, len(ordered))
		for _, docID := range ordered {
			mass[docID] = 1.0
		}
	}

	betaSq := betaFuse * betaFuse
	var frontier []model.FrontierEntry
	for _, k := range kGrid {
		if k <= 0 {
			continue
		}
		n := min(k, len(ordered))
		sumTop := 0.0
		for _, docID := range ordered[:n] {
			sumTop += mass[docID]
		}
		precision := sumTop / float64(n)
		recall := sumTop / total
		fBeta := 0.0
		if precision > 0 || recall > 0 {
			fBeta = (1 + betaSq) * precision * recall / (betaSq*precision + recall)
		}
		frontier = append(frontier, model.FrontierEntry{
			K:         n,
			PStar:     round3(precision),
			RStar:     round3(recall),
			FBetaStar: round3(fBeta),
		})
	}
	return frontier
}

// AggregateCodeFreqs counts code occurrences per taxonomy over the given
// fused prefix.
func AggregateCodeFreqs(docs map[string]*model.Document, docIDs []string) model.CodeFreqs {
	freqs := make(model.CodeFreqs, len(model.Taxonomies))
	for _, tax := range model.Taxonomies {
		freqs[tax] = make(map[string]int)
	}
	for _, docID := range docIDs {
		doc, ok := docs[docID]
		if !ok {
			continue
		}
		for tax, codes := range map[string][]string{
			"ipc": doc.IPCCodes,
			"cpc": doc.CPCCodes,
			"fi":  doc.FICodes,
			"ft":  doc.FTCodes,
		} {
			for _, code := range codes {
				freqs[tax][code]++
			}
		}
	}
	return freqs
}

// TopCodes returns the n most frequent codes per taxonomy, most frequent
// first, ties broken by code.
func TopCodes(freqs model.CodeFreqs, n int) map[string][]string {
	out := make(map[string][]string, len(freqs))
	for tax, counts := range freqs {
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
		if len(codes) > n {
			codes = codes[:n]
		}
		out[tax] = codes
	}
	return out
}

// Representative label priorities for the priority ordering.
var labelPriority = map[string]int{"A": 0, "B": 1, "C": 2}

// PriorityPairs re-sorts the fused list by (label priority, descending
// score). Docs without a registered label sort after C. The input slice is
// not modified.
func PriorityPairs(pairs []model.ScoredDoc, reps []model.Representative) []model.ScoredDoc {
	if len(reps) == 0 {
		return nil
	}
	labelOf := make(map[string]string, len(reps))
	for _, rep := range reps {
		labelOf[rep.DocID] = rep.Label
	}
	priority := func(docID string) int {
		if p, ok := labelPriority[labelOf[docID]]; ok {
			return p
		}
		return 3
	}
	out := append([]model.ScoredDoc(nil), pairs...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority(out[i].DocID), priority(out[j].DocID)
		if pi != pj {
			return pi < pj
		}
		return out[i].Score > out[j].Score
	})
	return out
}

// RoundContributions returns per-doc contribution shares for the first n
// docs of the fused ordering: each doc's buckets are normalized by their sum
// and rounded to 3 decimals. Docs with a zero total are skipped.
func RoundContributions(contribs Contributions, ordered []string, n int) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, min(n, len(ordered)))
	for _, docID := range ordered[:min(n, len(ordered))] {
		buckets, ok := contribs[docID]
		if !ok {
			continue
		}
		total := 0.0
		for _, v := range buckets {
			total += v
		}
		if total == 0 {
			continue
		}
		shares := make(map[string]float64, len(buckets))
		for bucket, v := range buckets {
			shares[bucket] = round3(v / total)
		}
		out[docID] = shares
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
