package backend

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/jl1nie/rrfusion/internal/model"
	"github.com/jl1nie/rrfusion/internal/snippet"
)

// stubWords seeds generated text.
var stubWords = []string{
	"quantum", "optical", "network", "fusion", "semiconductor",
	"antennas", "wireless", "battery", "circuit", "neural",
	"synthesis", "hydrogen", "blockchain", "latency", "compression",
	"diagnostics", "robotics", "control", "filter", "resonator",
}

var (
	stubIPC = []string{"H04L", "H04W", "G06F", "H01L", "G02F", "A61B", "C07D", "B60L"}
	stubCPC = []string{"H04L9/32", "H04W72/04", "G06F16/27", "H01L29/12", "G02F1/13", "A61B5/00", "C07D401/12", "B60L11/18"}
	stubFI  = []string{"H04L1/00", "H04W24/00", "G06F3/00", "B60L3/00"}
	stubFT  = []string{"432", "562", "H439", "G261"}
)

const stubMaxResults = 2000

// Stub is a deterministic in-process backend. The same (lane, query, top_k)
// always yields the same ranked list, and each doc_id always yields the same
// text and code lists, so tests and local runs are reproducible without any
// upstream service.
type Stub struct{}

// NewStub returns the deterministic stub backend.
func NewStub() *Stub { return &Stub{} }

// seededRand derives a rand.Rand from the SHA-1 of the seed string.
func seededRand(seed string) *rand.Rand {
	sum := sha1.Sum([]byte(seed))
	return rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))
}

// Search generates a reproducible ranked list for the lane and query.
func (s *Stub) Search(_ context.Context, params model.SearchParams, lane model.Lane) (*SearchResult, error) {
	limit := params.TopK()
	if limit > stubMaxResults {
		limit = stubMaxResults
	}
	rng := seededRand(fmt.Sprintf("%s:%s:%d", lane, params.QueryText(), limit))

	seen := make(map[string]bool, limit)
	docs := make([]model.Document, 0, limit)
	freqs := model.CodeFreqs{"ipc": {}, "cpc": {}, "fi": {}, "ft": {}}

	for rank := 0; rank < limit; rank++ {
		docID := stubDocID(rng)
		for seen[docID] {
			docID = stubDocID(rng)
		}
		seen[docID] = true

		doc := stubDoc(docID)
		doc.Score = 1.0 / (float64(rank+1) + rng.Float64())
		for _, code := range doc.IPCCodes {
			freqs["ipc"][code]++
		}
		for _, code := range doc.CPCCodes {
			freqs["cpc"][code]++
		}
		for _, code := range doc.FICodes {
			freqs["fi"][code]++
		}
		for _, code := range doc.FTCodes {
			freqs["ft"][code]++
		}
		docs = append(docs, doc)
	}
	return &SearchResult{Docs: docs, CodeFreqs: freqs}, nil
}

// FetchSnippets regenerates each doc and truncates to the requested caps.
func (s *Stub) FetchSnippets(_ context.Context, req model.GetSnippetsRequest) (FieldMap, error) {
	out := make(FieldMap, len(req.IDs))
	for _, docID := range req.IDs {
		doc := stubDoc(docID)
		fields := make(map[string]string, len(req.Fields))
		for _, field := range req.Fields {
			value := doc.TextField(field)
			if limit, ok := req.PerFieldChars[field]; ok {
				value = snippet.Truncate(value, limit)
			}
			fields[field] = value
		}
		out[docID] = fields
	}
	return out, nil
}

// FetchPublication regenerates each doc without truncation.
func (s *Stub) FetchPublication(_ context.Context, req model.GetPublicationRequest) (FieldMap, error) {
	out := make(FieldMap, len(req.IDs))
	for _, docID := range req.IDs {
		doc := stubDoc(docID)
		fields := make(map[string]string, len(req.Fields))
		for _, field := range req.Fields {
			fields[field] = doc.TextField(field)
		}
		out[docID] = fields
	}
	return out, nil
}

// Close is a no-op.
func (s *Stub) Close() error { return nil }

// stubDocID produces "JP" + 10 digits + one uppercase letter.
func stubDocID(rng *rand.Rand) string {
	var sb strings.Builder
	sb.WriteString("JP")
	for i := 0; i < 10; i++ {
		sb.WriteByte(byte('0' + rng.Intn(10)))
	}
	sb.WriteByte(byte('A' + rng.Intn(26)))
	return sb.String()
}

// stubDoc derives a document entirely from its id.
func stubDoc(docID string) model.Document {
	rng := seededRand(docID)
	doc := model.Document{
		DocID:    docID,
		IPCCodes: stubSample(rng, stubIPC, 1, 3),
		CPCCodes: stubSample(rng, stubCPC, 1, 3),
		FICodes:  stubSample(rng, stubFI, 0, 2),
		FTCodes:  stubSample(rng, stubFT, 0, 2),
	}
	tail := docID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	doc.Title = fmt.Sprintf("%s %s system %s",
		titleWord(stubWords[rng.Intn(len(stubWords))]),
		titleWord(stubWords[rng.Intn(len(stubWords))]),
		docID[len(docID)-3:])
	doc.Abst = stubParagraph(rng, 2, 10)
	doc.Claim = stubParagraph(rng, 1, 14)
	doc.Desc = stubParagraph(rng, 4, 12)
	doc.AppDocID = docID
	doc.AppID = "APP" + tail
	doc.PubID = "DOC" + tail
	doc.ExamID = "EXAM" + strings.ToUpper(docID[len(docID)-5:])
	doc.DeriveFINorm()
	return doc
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}

func stubParagraph(rng *rand.Rand, sentences, words int) string {
	parts := make([]string, sentences)
	for i := range parts {
		chunk := make([]string, words)
		for j := range chunk {
			chunk[j] = stubWords[rng.Intn(len(stubWords))]
		}
		sentence := strings.Join(chunk, " ")
		parts[i] = strings.ToUpper(sentence[:1]) + sentence[1:] + "."
	}
	return strings.Join(parts, " ")
}

// stubSample draws between lo and hi distinct codes, sorted for stability.
func stubSample(rng *rand.Rand, pool []string, lo, hi int) []string {
	n := lo + rng.Intn(hi-lo+1)
	if n == 0 {
		return nil
	}
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = pool[j]
	}
	sort.Strings(out)
	return out
}
