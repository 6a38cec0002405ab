package model

// Fusion defaults applied by blend when the request leaves them unset.
const (
	DefaultRRFK        = 60
	DefaultBetaFuse    = 1.0
	DefaultTopMPerLane = 10000
)

// DefaultWeights returns the default per-lane rank weights.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		string(LaneFulltext):      1.0,
		string(LaneSemantic):      1.0,
		string(LaneOriginalDense): 1.0,
	}
}

// DefaultKGrid returns the default frontier cut-off grid.
func DefaultKGrid() []int {
	return []int{10, 20, 30, 40, 50, 80, 100}
}

// DefaultTopM returns the default per-lane read depth.
func DefaultTopM() map[string]int {
	return map[string]int{
		string(LaneFulltext):      DefaultTopMPerLane,
		string(LaneSemantic):      DefaultTopMPerLane,
		string(LaneOriginalDense): DefaultTopMPerLane,
	}
}

// DefaultFacetWeights returns the default A/B/C facet weights.
func DefaultFacetWeights() map[string]float64 {
	return map[string]float64{"A": 0.5, "B": 0.3, "C": 0.2}
}

// DefaultPiWeights returns the default code/facet/lane combination weights
// for the π' proxy-relevance score.
func DefaultPiWeights() map[string]float64 {
	return map[string]float64{"code": 1.0, "facet": 1.0, "lane": 1.0}
}

// Peek defaults.
const DefaultPeekLimit = 12

// DefaultPeekFields returns the default field set for peek_snippets.
func DefaultPeekFields() []string {
	return []string{
		FieldTitle, FieldAbst, FieldClaim,
		FieldAppDocID, FieldPubID, FieldExamID,
		FieldAppDate, FieldPubDate, FieldApplicants,
	}
}

// DefaultPeekFieldChars returns the default per-field char caps for peek.
func DefaultPeekFieldChars() map[string]int {
	return map[string]int{
		FieldTitle:      80,
		FieldAbst:       320,
		FieldClaim:      320,
		FieldAppDocID:   128,
		FieldAppID:      128,
		FieldPubID:      128,
		FieldExamID:     128,
		FieldAppDate:    64,
		FieldPubDate:    64,
		FieldApplicants: 128,
	}
}

// DefaultGetFields returns the default field set for get_snippets.
func DefaultGetFields() []string {
	return []string{
		FieldTitle, FieldAbst, FieldClaim, FieldDesc,
		FieldAppDocID, FieldPubID, FieldExamID,
		FieldAppDate, FieldPubDate, FieldApplicants,
	}
}

// DefaultGetFieldChars returns the default per-field char caps for
// get_snippets; more generous than peek since the id list is curated.
func DefaultGetFieldChars() map[string]int {
	return map[string]int{
		FieldTitle:      160,
		FieldAbst:       480,
		FieldClaim:      800,
		FieldDesc:       800,
		FieldAppDocID:   128,
		FieldAppID:      128,
		FieldPubID:      128,
		FieldExamID:     128,
		FieldAppDate:    64,
		FieldPubDate:    64,
		FieldApplicants: 128,
	}
}

// DefaultPublicationFields returns the default field set for get_publication.
func DefaultPublicationFields() []string {
	return []string{
		FieldTitle, FieldAbst, FieldClaim, FieldDesc,
		FieldAppDocID, FieldPubID, FieldExamID,
	}
}

// Representative registration bounds.
const (
	MinRepresentatives = 1
	MaxRepresentatives = 30
)
