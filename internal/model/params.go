package model

import "github.com/jl1nie/rrfusion/internal/errors"

// Default search behavior.
const (
	DefaultTopK = 800
)

// SearchFieldsDefault is the field set requested from backends by default.
var SearchFieldsDefault = []string{FieldAbst, FieldTitle, FieldClaim}

// FulltextParams are the parameters of a lexical full-text lane search.
type FulltextParams struct {
	Query       string             `json:"query"`
	Filters     []Cond             `json:"filters,omitempty"`
	Fields      []string           `json:"fields,omitempty"`
	TopK        int                `json:"top_k,omitempty"`
	FieldBoosts map[string]float64 `json:"field_boosts,omitempty"`
	TraceID     string             `json:"trace_id,omitempty"`
}

// SemanticParams are the parameters of a dense semantic lane search.
type SemanticParams struct {
	Text          string        `json:"text"`
	Filters       []Cond        `json:"filters,omitempty"`
	Fields        []string      `json:"fields,omitempty"`
	TopK          int           `json:"top_k,omitempty"`
	SemanticStyle SemanticStyle `json:"semantic_style,omitempty"`
	FeatureScope  FeatureScope  `json:"feature_scope,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}

// SearchParams is the tagged union over the two lane-search parameter
// families. Exactly one of Fulltext or Semantic is set.
type SearchParams struct {
	Fulltext *FulltextParams `json:"fulltext,omitempty"`
	Semantic *SemanticParams `json:"semantic,omitempty"`
}

// NewFulltextParams wraps fulltext parameters into the union with defaults
// applied.
func NewFulltextParams(p FulltextParams) SearchParams {
	if p.TopK <= 0 {
		p.TopK = DefaultTopK
	}
	if len(p.Fields) == 0 {
		p.Fields = append([]string(nil), SearchFieldsDefault...)
	}
	return SearchParams{Fulltext: &p}
}

// NewSemanticParams wraps semantic parameters into the union with defaults
// applied.
func NewSemanticParams(p SemanticParams) SearchParams {
	if p.TopK <= 0 {
		p.TopK = DefaultTopK
	}
	if len(p.Fields) == 0 {
		p.Fields = append([]string(nil), SearchFieldsDefault...)
	}
	if p.SemanticStyle == "" {
		p.SemanticStyle = SemanticDefault
	}
	return SearchParams{Semantic: &p}
}

// Validate checks the union discriminator and the variant's values.
func (p SearchParams) Validate() error {
	switch {
	case p.Fulltext != nil && p.Semantic != nil:
		return errors.Validation("search params must set exactly one of fulltext/semantic")
	case p.Fulltext != nil:
		if p.Fulltext.Query == "" {
			return errors.Validation("fulltext query must not be empty")
		}
		if p.Fulltext.TopK <= 0 {
			return errors.Validationf("top_k must be positive, got %d", p.Fulltext.TopK)
		}
		for _, c := range p.Fulltext.Filters {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	case p.Semantic != nil:
		if p.Semantic.Text == "" {
			return errors.Validation("semantic text must not be empty")
		}
		if p.Semantic.TopK <= 0 {
			return errors.Validationf("top_k must be positive, got %d", p.Semantic.TopK)
		}
		if !p.Semantic.SemanticStyle.Valid() {
			return errors.Validationf("unknown semantic_style %q", p.Semantic.SemanticStyle)
		}
		if !p.Semantic.FeatureScope.Valid() {
			return errors.Validationf("unknown feature_scope %q", p.Semantic.FeatureScope)
		}
		for _, c := range p.Semantic.Filters {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	default:
		return errors.Validation("search params must set one of fulltext/semantic")
	}
	return nil
}

// QueryText returns the query/text of whichever variant is set.
func (p SearchParams) QueryText() string {
	if p.Fulltext != nil {
		return p.Fulltext.Query
	}
	if p.Semantic != nil {
		return p.Semantic.Text
	}
	return ""
}

// FilterConds returns the filters of whichever variant is set.
func (p SearchParams) FilterConds() []Cond {
	if p.Fulltext != nil {
		return p.Fulltext.Filters
	}
	if p.Semantic != nil {
		return p.Semantic.Filters
	}
	return nil
}

// SetFilters replaces the filters on whichever variant is set.
func (p *SearchParams) SetFilters(conds []Cond) {
	if p.Fulltext != nil {
		p.Fulltext.Filters = conds
	}
	if p.Semantic != nil {
		p.Semantic.Filters = conds
	}
}

// TopK returns the top-k of whichever variant is set.
func (p SearchParams) TopK() int {
	if p.Fulltext != nil {
		return p.Fulltext.TopK
	}
	if p.Semantic != nil {
		return p.Semantic.TopK
	}
	return 0
}

// Fields returns the requested snippet fields of whichever variant is set.
func (p SearchParams) Fields() []string {
	if p.Fulltext != nil {
		return p.Fulltext.Fields
	}
	if p.Semantic != nil {
		return p.Semantic.Fields
	}
	return nil
}

// TraceID returns the trace id of whichever variant is set.
func (p SearchParams) TraceID() string {
	if p.Fulltext != nil {
		return p.Fulltext.TraceID
	}
	if p.Semantic != nil {
		return p.Semantic.TraceID
	}
	return ""
}
