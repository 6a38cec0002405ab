package engine

import (
	"context"
	"time"

	"github.com/jl1nie/rrfusion/internal/backend"
	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/model"
	"github.com/jl1nie/rrfusion/internal/snippet"
)

// PeekSnippets pages budgeted snippets out of a run's ranking.
func (e *Engine) PeekSnippets(ctx context.Context, req model.PeekRequest) (*model.PeekResponse, error) {
	start := time.Now()
	meta, err := e.store.GetRunMeta(ctx, req.RunID)
	if err != nil {
		return nil, errors.Internal("load run meta", err)
	}
	if meta == nil {
		return nil, errors.NotFound("run " + req.RunID + " not found or expired")
	}
	key := meta.RankingKey()
	if key == "" {
		return nil, errors.Internal("run "+req.RunID+" has no ranking key", nil)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = model.DefaultPeekLimit
	}
	if limit > e.cfg.Peek.MaxDocs {
		limit = e.cfg.Peek.MaxDocs
	}
	if req.Offset < 0 {
		return nil, errors.Validation("offset must not be negative")
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = model.DefaultPeekFields()
	}
	caps := req.PerFieldChars
	if len(caps) == 0 {
		caps = model.DefaultPeekFieldChars()
	}
	budget := req.BudgetBytes
	if budget <= 0 || budget > e.cfg.Peek.BudgetBytes {
		budget = e.cfg.Peek.BudgetBytes
	}
	caps = snippet.AdjustCaps(fields, caps, budget)

	rows, err := e.store.RankingSlice(ctx, key, int64(req.Offset), int64(req.Offset+limit-1), true)
	if err != nil {
		return nil, errors.Internal("read ranking", err)
	}
	docIDs := model.DocIDs(rows)

	docs, err := e.loadDocsWithBackfill(ctx, docIDs, fields, e.snippetLane(meta))
	if err != nil {
		return nil, err
	}

	items := make([]model.Snippet, 0, len(docIDs))
	for _, docID := range docIDs {
		items = append(items, snippet.Build(docID, docs[docID], fields, caps))
	}
	capped, used, truncated := snippet.CapByBudget(items, budget)
	if len(capped) == 0 && len(items) > 0 {
		if item := snippet.FallbackSingle(docIDs[0], docs[docIDs[0]], fields, caps, budget); item != nil {
			capped = []model.Snippet{item}
			used = snippet.EncodedSize(item)
			truncated = true
		}
	}

	total, err := e.store.RankingSize(ctx, key)
	if err != nil {
		return nil, errors.Internal("count ranking", err)
	}
	var cursor *int
	if int64(req.Offset+len(capped)) < total {
		next := req.Offset + len(capped)
		cursor = &next
	}

	return &model.PeekResponse{
		RunID:    req.RunID,
		Snippets: capped,
		Meta: model.PeekMeta{
			UsedBytes:  used,
			Truncated:  truncated,
			PeekCursor: cursor,
			TotalDocs:  total,
			Retrieved:  len(rows),
			Returned:   len(capped),
			TookMS:     time.Since(start).Milliseconds(),
		},
	}, nil
}

// snippetLane picks the backend lane used for snippet back-fill.
func (e *Engine) snippetLane(meta *model.RunMeta) model.Lane {
	if meta.RunType == model.RunTypeLane && meta.Lane.Valid() {
		return meta.Lane
	}
	return model.LaneFulltext
}

// loadDocsWithBackfill loads docs from the store, fetching missing text from
// the backend and upserting it for future reads.
func (e *Engine) loadDocsWithBackfill(ctx context.Context, docIDs, fields []string, lane model.Lane) (map[string]*model.Document, error) {
	docs, err := e.store.GetDocs(ctx, docIDs)
	if err != nil {
		return nil, errors.Internal("load docs", err)
	}

	var missing []string
	for _, docID := range docIDs {
		doc, ok := docs[docID]
		if !ok || missingAnyField(doc, fields) {
			missing = append(missing, docID)
		}
	}
	if len(missing) == 0 {
		return docs, nil
	}

	be := e.backends.Get(lane)
	if be == nil {
		return docs, nil
	}
	fetched, err := be.FetchSnippets(ctx, model.GetSnippetsRequest{IDs: missing, Fields: fields})
	if err != nil {
		// Back-fill is best effort; the snippet shaper tolerates gaps.
		e.log.WarnContext(ctx, "snippet back-fill failed", "error", err, "docs", len(missing))
		return docs, nil
	}

	upserts := make([]model.Document, 0, len(fetched))
	for docID, fieldValues := range fetched {
		doc, ok := docs[docID]
		if !ok {
			doc = &model.Document{DocID: docID}
			docs[docID] = doc
		}
		for field, value := range fieldValues {
			if value != "" && doc.TextField(field) == "" {
				doc.SetTextField(field, value)
			}
		}
		upserts = append(upserts, *doc)
	}
	if len(upserts) > 0 {
		if err := e.store.UpsertDocs(ctx, upserts); err != nil {
			e.log.WarnContext(ctx, "snippet upsert failed", "error", err)
		}
	}
	return docs, nil
}

func missingAnyField(doc *model.Document, fields []string) bool {
	for _, field := range fields {
		if doc.TextField(field) == "" {
			switch field {
			case model.FieldTitle, model.FieldAbst, model.FieldClaim, model.FieldDesc,
				model.FieldAppDocID, model.FieldAppID, model.FieldPubID:
				return true
			}
		}
	}
	return false
}

// GetSnippets returns shaped fields for a curated id list. No paging, no
// byte budget.
func (e *Engine) GetSnippets(ctx context.Context, req model.GetSnippetsRequest) (map[string]model.Snippet, error) {
	if len(req.IDs) == 0 {
		return nil, errors.Validation("ids must not be empty")
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = model.DefaultGetFields()
	}
	caps := req.PerFieldChars
	if len(caps) == 0 {
		caps = model.DefaultGetFieldChars()
	}

	docs, err := e.loadDocsWithBackfill(ctx, req.IDs, fields, model.LaneFulltext)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.Snippet, len(req.IDs))
	for _, docID := range req.IDs {
		item := snippet.Build(docID, docs[docID], fields, caps)
		delete(item, "id")
		out[docID] = item
	}
	return out, nil
}

// GetPublication delegates to the fulltext backend, applying per-field caps
// to the returned records.
func (e *Engine) GetPublication(ctx context.Context, req model.GetPublicationRequest) (map[string]model.Snippet, error) {
	if len(req.IDs) == 0 {
		return nil, errors.Validation("ids must not be empty")
	}
	if len(req.Fields) == 0 {
		req.Fields = model.DefaultPublicationFields()
	}

	be := e.backends.Get(model.LaneFulltext)
	if be == nil {
		return nil, errors.Internal("no fulltext backend registered", nil)
	}
	fetched, err := be.FetchPublication(ctx, req)
	if err != nil {
		return nil, err
	}
	return shapeFieldMap(fetched, req.PerFieldChars), nil
}

func shapeFieldMap(m backend.FieldMap, caps map[string]int) map[string]model.Snippet {
	out := make(map[string]model.Snippet, len(m))
	for docID, fields := range m {
		item := make(model.Snippet, len(fields))
		for field, value := range fields {
			if limit, ok := caps[field]; ok {
				value = snippet.Truncate(value, limit)
			}
			item[field] = value
		}
		out[docID] = item
	}
	return out
}
