package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jl1nie/rrfusion/internal/config"
	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/model"
)

const (
	maxErrorBodyBytes = 512
	publicationChunk  = 50
	publicationFanout = 4
)

// HTTPBackend posts JSON to a remote lane service and normalizes the
// responses. One instance may serve several lanes.
type HTTPBackend struct {
	client           *http.Client
	baseURL          string
	searchPath       string
	snippetsPath     string
	publicationsPath string
	numbersPath      string
	apiKey           string
	log              *slog.Logger

	closeOnce sync.Once
}

// NewHTTP builds an HTTPBackend from config.
func NewHTTP(cfg config.BackendConfig, log *slog.Logger) *HTTPBackend {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		client:           &http.Client{Timeout: timeout},
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		searchPath:       strings.TrimRight(cfg.SearchPath, "/"),
		snippetsPath:     strings.TrimRight(cfg.SnippetsPath, "/"),
		publicationsPath: strings.TrimRight(cfg.PublicationsPath, "/"),
		numbersPath:      strings.TrimRight(cfg.NumbersPath, "/"),
		apiKey:           cfg.APIKey,
		log:              log,
	}
}

// Search posts the lane request to {search_path}/{lane}.
func (b *HTTPBackend) Search(ctx context.Context, params model.SearchParams, lane model.Lane) (*SearchResult, error) {
	payload := b.searchPayload(params)
	var wire wireSearchResponse
	found, err := b.postJSON(ctx, fmt.Sprintf("%s/%s", b.searchPath, lane), payload, &wire)
	if err != nil {
		return nil, err
	}
	if !found {
		return &SearchResult{Docs: nil, CodeFreqs: model.CodeFreqs{}}, nil
	}
	return wire.toResult(), nil
}

// searchPayload translates the canonical params into the upstream body.
func (b *HTTPBackend) searchPayload(params model.SearchParams) map[string]any {
	payload := map[string]any{}
	switch {
	case params.Fulltext != nil:
		p := params.Fulltext
		payload["query"] = p.Query
		payload["filters"] = p.Filters
		payload["fields"] = toWireFields(p.Fields)
		payload["top_k"] = p.TopK
		if len(p.FieldBoosts) > 0 {
			boosts := make(map[string]float64, len(p.FieldBoosts))
			for f, w := range p.FieldBoosts {
				boosts[toWireField(f)] = w
			}
			payload["field_boosts"] = boosts
		}
		if p.TraceID != "" {
			payload["trace_id"] = p.TraceID
		}
	case params.Semantic != nil:
		p := params.Semantic
		payload["text"] = p.Text
		payload["filters"] = p.Filters
		payload["fields"] = toWireFields(p.Fields)
		payload["top_k"] = p.TopK
		payload["semantic_style"] = string(p.SemanticStyle)
		if p.FeatureScope != "" {
			payload["feature_scope"] = string(p.FeatureScope)
		}
		if p.TraceID != "" {
			payload["trace_id"] = p.TraceID
		}
	}
	return payload
}

// FetchSnippets posts the id list to the snippets endpoint and maps wire
// field names back to the internal short forms.
func (b *HTTPBackend) FetchSnippets(ctx context.Context, req model.GetSnippetsRequest) (FieldMap, error) {
	payload := map[string]any{
		"ids":    req.IDs,
		"fields": toWireFields(req.Fields),
	}
	if len(req.PerFieldChars) > 0 {
		payload["per_field_chars"] = toWireFieldCaps(req.PerFieldChars)
	}
	if req.TraceID != "" {
		payload["trace_id"] = req.TraceID
	}
	var wire FieldMap
	found, err := b.postJSON(ctx, b.snippetsPath, payload, &wire)
	if err != nil {
		return nil, err
	}
	if !found {
		return FieldMap{}, nil
	}
	return toLocalFieldMap(wire), nil
}

// FetchPublication resolves identifiers to app-doc ids when needed, then
// fetches records in bounded-parallel chunks. Results are keyed by the
// caller's original identifiers.
func (b *HTTPBackend) FetchPublication(ctx context.Context, req model.GetPublicationRequest) (FieldMap, error) {
	appDocByRaw, err := b.resolveIdentifiers(ctx, req.IDs, req.IDType)
	if err != nil {
		return nil, err
	}

	appDocIDs := make([]string, 0, len(req.IDs))
	for _, raw := range req.IDs {
		appDocIDs = append(appDocIDs, appDocByRaw[raw])
	}

	var (
		mu     sync.Mutex
		merged = make(FieldMap, len(req.IDs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(publicationFanout)
	for start := 0; start < len(appDocIDs); start += publicationChunk {
		end := min(start+publicationChunk, len(appDocIDs))
		chunk := appDocIDs[start:end]
		g.Go(func() error {
			payload := map[string]any{
				"ids":    chunk,
				"fields": toWireFields(req.Fields),
			}
			if len(req.PerFieldChars) > 0 {
				payload["per_field_chars"] = toWireFieldCaps(req.PerFieldChars)
			}
			if req.TraceID != "" {
				payload["trace_id"] = req.TraceID
			}
			var wire FieldMap
			found, err := b.postJSON(gctx, b.publicationsPath, payload, &wire)
			if err != nil {
				return err
			}
			if !found {
				return nil
			}
			local := toLocalFieldMap(wire)
			mu.Lock()
			for id, fields := range local {
				merged[id] = fields
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Re-key by the caller's identifiers.
	out := make(FieldMap, len(req.IDs))
	for _, raw := range req.IDs {
		if fields, ok := merged[appDocByRaw[raw]]; ok {
			out[raw] = fields
		}
	}
	return out, nil
}

// resolveIdentifiers maps every raw identifier to an app-doc id. Identifiers
// already in the app-doc namespace pass through. Anything else goes through
// the numbers endpoint; an unresolved identifier is an integrity failure.
func (b *HTTPBackend) resolveIdentifiers(ctx context.Context, ids []string, idType string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	var pending []string
	for _, raw := range ids {
		t := idType
		if t == "" {
			t = guessIDType(raw)
		}
		if t == model.IDTypeAppDocID {
			out[raw] = raw
		} else {
			pending = append(pending, raw)
		}
	}
	if len(pending) == 0 {
		return out, nil
	}

	payload := map[string]any{"numbers": pending}
	if idType != "" {
		payload["id_type"] = idType
	}
	var wire struct {
		Resolved map[string]string `json:"resolved"`
	}
	found, err := b.postJSON(ctx, b.numbersPath, payload, &wire)
	if err != nil {
		return nil, err
	}
	if !found {
		wire.Resolved = nil
	}
	for _, raw := range pending {
		appDoc, ok := wire.Resolved[raw]
		if !ok || appDoc == "" {
			return nil, errors.Integrity(fmt.Sprintf("identifier %q could not be resolved to an app-doc id", raw)).
				WithDetail("identifier", raw)
		}
		out[raw] = appDoc
	}
	return out, nil
}

// guessIDType classifies a free-form publication number.
func guessIDType(id string) string {
	switch {
	case strings.HasPrefix(id, "EXAM"):
		return model.IDTypeExamID
	case strings.HasPrefix(id, "DOC"):
		return model.IDTypePubID
	case isAppDocShaped(id):
		return model.IDTypeAppDocID
	case isAllDigits(id):
		return model.IDTypeAppID
	}
	return ""
}

// isAppDocShaped matches the internal app-doc form: a two-letter country
// prefix, digits, and an optional trailing kind letter.
func isAppDocShaped(id string) bool {
	if len(id) < 4 {
		return false
	}
	if !isUpperAlpha(id[0]) || !isUpperAlpha(id[1]) {
		return false
	}
	body := id[2:]
	if isUpperAlpha(body[len(body)-1]) {
		body = body[:len(body)-1]
	}
	return len(body) > 0 && isAllDigits(body)
}

func isUpperAlpha(c byte) bool { return c >= 'A' && c <= 'Z' }

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Close shuts the idle connection pool. Safe to call multiple times.
func (b *HTTPBackend) Close() error {
	b.closeOnce.Do(func() {
		b.client.CloseIdleConnections()
	})
	return nil
}

// postJSON posts a JSON body and decodes the response into out. A 404
// returns (false, nil) so callers can coerce it to an empty result. Other
// non-2xx statuses become typed backend errors; request failures become
// transport errors.
func (b *HTTPBackend) postJSON(ctx context.Context, path string, payload any, out any) (bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return false, errors.Internal("encode request body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, errors.Internal("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return false, transportError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return false, errors.BackendHTTP(resp.StatusCode, strings.TrimSpace(string(snippet)), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Internal(fmt.Sprintf("decode response from %s", path), err)
	}
	return true, nil
}

// transportError classifies a request failure into the transport taxonomy.
func transportError(path string, err error) error {
	code := errors.CodeTransport
	var (
		netErr  net.Error
		dnsErr  *net.DNSError
		certErr *tls.CertificateVerificationError
		recErr  tls.RecordHeaderError
		unkErr  x509.UnknownAuthorityError
		invErr  x509.CertificateInvalidError
	)
	switch {
	case stderrors.As(err, &dnsErr):
		code = errors.CodeDNS
	case stderrors.As(err, &certErr), stderrors.As(err, &recErr),
		stderrors.As(err, &unkErr), stderrors.As(err, &invErr):
		code = errors.CodeTLS
	case stderrors.As(err, &netErr) && netErr.Timeout():
		code = errors.CodeTimeout
	case stderrors.Is(err, context.DeadlineExceeded):
		code = errors.CodeTimeout
	}
	return errors.Transport(code, fmt.Sprintf("request to %s failed", path), err)
}
