package model

import "github.com/jl1nie/rrfusion/internal/ident"

// Snippet field names. These double as store hash keys and snippet map keys.
const (
	FieldTitle      = "title"
	FieldAbst       = "abst"
	FieldClaim      = "claim"
	FieldDesc       = "desc"
	FieldAppDocID   = "app_doc_id"
	FieldAppID      = "app_id"
	FieldPubID      = "pub_id"
	FieldExamID     = "exam_id"
	FieldAppDate    = "app_date"
	FieldPubDate    = "pub_date"
	FieldApplicants = "applicants"
)

// IdentifierFields are always included in snippets, requested or not.
var IdentifierFields = []string{FieldAppDocID, FieldAppID, FieldPubID}

// TextFields are the free-text fields subject to per-field char caps.
var TextFields = []string{FieldTitle, FieldAbst, FieldClaim, FieldDesc}

// Document is a normalized patent document as returned by a lane backend.
type Document struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`

	IPCCodes []string `json:"ipc_codes,omitempty"`
	CPCCodes []string `json:"cpc_codes,omitempty"`
	FICodes  []string `json:"fi_codes,omitempty"`
	FTCodes  []string `json:"ft_codes,omitempty"`
	// FINorm is the subgroup-normalized form of FICodes, derived on ingest.
	FINorm []string `json:"fi_norm,omitempty"`

	Title      string `json:"title,omitempty"`
	Abst       string `json:"abst,omitempty"`
	Claim      string `json:"claim,omitempty"`
	Desc       string `json:"desc,omitempty"`
	AppDocID   string `json:"app_doc_id,omitempty"`
	AppID      string `json:"app_id,omitempty"`
	PubID      string `json:"pub_id,omitempty"`
	ExamID     string `json:"exam_id,omitempty"`
	AppDate    string `json:"app_date,omitempty"`
	PubDate    string `json:"pub_date,omitempty"`
	Applicants string `json:"applicants,omitempty"`
}

// DeriveFINorm fills FINorm from FICodes when absent.
func (d *Document) DeriveFINorm() {
	if len(d.FINorm) == 0 && len(d.FICodes) > 0 {
		d.FINorm = ident.NormalizeFIList(d.FICodes)
	}
}

// Codes returns the document's classification codes keyed by taxonomy.
// The "fi" entry holds raw codes; "fi_norm" holds the subgroup forms.
func (d *Document) Codes() map[string][]string {
	return map[string][]string{
		"ipc":     d.IPCCodes,
		"cpc":     d.CPCCodes,
		"fi":      d.FICodes,
		"fi_norm": d.FINorm,
		"ft":      d.FTCodes,
	}
}

// TextField returns the named text/identifier field value.
func (d *Document) TextField(name string) string {
	switch name {
	case FieldTitle:
		return d.Title
	case FieldAbst:
		return d.Abst
	case FieldClaim:
		return d.Claim
	case FieldDesc:
		return d.Desc
	case FieldAppDocID:
		return d.AppDocID
	case FieldAppID:
		return d.AppID
	case FieldPubID:
		return d.PubID
	case FieldExamID:
		return d.ExamID
	case FieldAppDate:
		return d.AppDate
	case FieldPubDate:
		return d.PubDate
	case FieldApplicants:
		return d.Applicants
	}
	return ""
}

// SetTextField assigns the named text/identifier field value.
// Unknown names are ignored.
func (d *Document) SetTextField(name, value string) {
	switch name {
	case FieldTitle:
		d.Title = value
	case FieldAbst:
		d.Abst = value
	case FieldClaim:
		d.Claim = value
	case FieldDesc:
		d.Desc = value
	case FieldAppDocID:
		d.AppDocID = value
	case FieldAppID:
		d.AppID = value
	case FieldPubID:
		d.PubID = value
	case FieldExamID:
		d.ExamID = value
	case FieldAppDate:
		d.AppDate = value
	case FieldPubDate:
		d.PubDate = value
	case FieldApplicants:
		d.Applicants = value
	}
}

// AllTextFields lists every text/identifier field name stored per document.
var AllTextFields = []string{
	FieldTitle, FieldAbst, FieldClaim, FieldDesc,
	FieldAppDocID, FieldAppID, FieldPubID, FieldExamID,
	FieldAppDate, FieldPubDate, FieldApplicants,
}

// CodeFreqs maps taxonomy -> code -> occurrence count.
type CodeFreqs map[string]map[string]int
