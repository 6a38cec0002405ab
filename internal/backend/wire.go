package backend

import "github.com/jl1nie/rrfusion/internal/model"

// Upstream wire field names differ from the internal short forms.
var wireFieldName = map[string]string{
	model.FieldAbst:  "abstract",
	model.FieldClaim: "claims",
	model.FieldDesc:  "description",
}

var localFieldName = map[string]string{
	"abstract":    model.FieldAbst,
	"claims":      model.FieldClaim,
	"description": model.FieldDesc,
}

func toWireField(name string) string {
	if wire, ok := wireFieldName[name]; ok {
		return wire
	}
	return name
}

func toLocalField(name string) string {
	if local, ok := localFieldName[name]; ok {
		return local
	}
	return name
}

func toWireFields(fields []string) []string {
	if fields == nil {
		return nil
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = toWireField(f)
	}
	return out
}

func toWireFieldCaps(caps map[string]int) map[string]int {
	if caps == nil {
		return nil
	}
	out := make(map[string]int, len(caps))
	for f, cap := range caps {
		out[toWireField(f)] = cap
	}
	return out
}

func toLocalFieldMap(m FieldMap) FieldMap {
	out := make(FieldMap, len(m))
	for docID, fields := range m {
		local := make(map[string]string, len(fields))
		for f, v := range fields {
			local[toLocalField(f)] = v
		}
		out[docID] = local
	}
	return out
}

// wireSearchItem mirrors the upstream search response item.
type wireSearchItem struct {
	DocID       string   `json:"doc_id"`
	Score       float64  `json:"score"`
	Title       string   `json:"title"`
	Abstract    string   `json:"abstract"`
	Claims      string   `json:"claims"`
	Description string   `json:"description"`
	AppDocID    string   `json:"app_doc_id"`
	AppID       string   `json:"app_id"`
	PubID       string   `json:"pub_id"`
	ExamID      string   `json:"exam_id"`
	AppDate     string   `json:"app_date"`
	PubDate     string   `json:"pub_date"`
	Applicants  string   `json:"applicants"`
	IPCCodes    []string `json:"ipc_codes"`
	CPCCodes    []string `json:"cpc_codes"`
	FICodes     []string `json:"fi_codes"`
	FTCodes     []string `json:"ft_codes"`
}

// wireSearchResponse mirrors the upstream search response envelope.
type wireSearchResponse struct {
	Items     []wireSearchItem          `json:"items"`
	CodeFreqs map[string]map[string]int `json:"code_freqs"`
}

func (r *wireSearchResponse) toResult() *SearchResult {
	docs := make([]model.Document, len(r.Items))
	for i, item := range r.Items {
		docs[i] = model.Document{
			DocID:      item.DocID,
			Score:      item.Score,
			Title:      item.Title,
			Abst:       item.Abstract,
			Claim:      item.Claims,
			Desc:       item.Description,
			AppDocID:   item.AppDocID,
			AppID:      item.AppID,
			PubID:      item.PubID,
			ExamID:     item.ExamID,
			AppDate:    item.AppDate,
			PubDate:    item.PubDate,
			Applicants: item.Applicants,
			IPCCodes:   item.IPCCodes,
			CPCCodes:   item.CPCCodes,
			FICodes:    item.FICodes,
			FTCodes:    item.FTCodes,
		}
		docs[i].DeriveFINorm()
	}
	freqs := make(model.CodeFreqs, len(r.CodeFreqs))
	for tax, counts := range r.CodeFreqs {
		freqs[tax] = counts
	}
	return &SearchResult{Docs: docs, CodeFreqs: freqs}
}
