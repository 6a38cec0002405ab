// Package engine orchestrates the fusion workflow: lane searches against the
// backends, blending, run lifecycle, snippet paging, and provenance. All
// shared resources are injected once at startup; the engine holds no global
// state.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/jl1nie/rrfusion/internal/backend"
	"github.com/jl1nie/rrfusion/internal/config"
	"github.com/jl1nie/rrfusion/internal/errors"
	"github.com/jl1nie/rrfusion/internal/fusion"
	"github.com/jl1nie/rrfusion/internal/ident"
	"github.com/jl1nie/rrfusion/internal/model"
	"github.com/jl1nie/rrfusion/internal/store"
)

const topCodePreview = 5

// Engine wires the state store, the backend registry, and the fusion math
// into the orchestrator operations.
type Engine struct {
	store    *store.Store
	backends *backend.Registry
	cfg      *config.Config
	log      *slog.Logger
}

// New constructs an Engine over already-opened resources.
func New(st *store.Store, backends *backend.Registry, cfg *config.Config, log *slog.Logger) *Engine {
	return &Engine{store: st, backends: backends, cfg: cfg, log: log}
}

// Close tears down the backend registry, then the store client.
func (e *Engine) Close() error {
	err := e.backends.Close()
	if cerr := e.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// LaneSearch executes one lane search, persists the run, and returns its
// handle.
func (e *Engine) LaneSearch(ctx context.Context, lane model.Lane, params model.SearchParams) (*model.SearchToolResponse, error) {
	start := time.Now()
	if !lane.Valid() {
		return nil, errors.Validationf("unknown lane %q", lane)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	be := e.backends.Get(lane)
	if be == nil {
		return nil, errors.Validationf("no backend registered for lane %q", lane)
	}

	res, err := be.Search(ctx, params, lane)
	if err != nil {
		return nil, err
	}

	queryHash := ident.QueryHash(params.QueryText(), params.FilterConds())
	runID := ident.NewLaneRunID(string(lane))
	count := len(res.Docs)

	meta := &model.RunMeta{
		Query:         params.QueryText(),
		Filters:       params.FilterConds(),
		TopK:          params.TopK(),
		CountReturned: count,
		Truncated:     count < params.TopK(),
		Params:        &params,
		TookMS:        time.Since(start).Milliseconds(),
	}
	if err := e.store.PutLaneRun(ctx, runID, string(lane), queryHash, res.Docs, meta, res.CodeFreqs); err != nil {
		return nil, errors.Internal("persist lane run", err)
	}

	e.log.InfoContext(ctx, "lane search stored",
		"lane", lane, "run_id", runID, "count", count, "query_hash", queryHash)

	return &model.SearchToolResponse{
		Lane:          lane,
		RunID:         runID,
		TopK:          params.TopK(),
		CountReturned: count,
		Truncated:     meta.Truncated,
		TookMS:        time.Since(start).Milliseconds(),
		CodeFreqs:     res.CodeFreqs,
		TopCodes:      fusion.TopCodes(res.CodeFreqs, topCodePreview),
	}, nil
}

// RunDocIDs returns the first n doc ids of a run's ranking, best first.
func (e *Engine) RunDocIDs(ctx context.Context, runID string, n int) ([]string, error) {
	meta, err := e.store.GetRunMeta(ctx, runID)
	if err != nil {
		return nil, errors.Internal("load run meta", err)
	}
	if meta == nil {
		return nil, errors.NotFound("run " + runID + " not found or expired")
	}
	if n <= 0 {
		n = meta.TopK
	}
	rows, err := e.store.RankingSlice(ctx, meta.RankingKey(), 0, int64(n-1), true)
	if err != nil {
		return nil, errors.Internal("read ranking", err)
	}
	return model.DocIDs(rows), nil
}

// MultiLaneSearch runs batch entries strictly in order. A failed entry is
// recorded and the batch continues.
func (e *Engine) MultiLaneSearch(ctx context.Context, entries []model.MultiLaneEntry, traceID string) (*model.MultiLaneResponse, error) {
	if len(entries) == 0 {
		return nil, errors.Validation("multi-lane batch must contain at least one entry")
	}
	start := time.Now()
	resp := &model.MultiLaneResponse{TraceID: traceID}

	for _, entry := range entries {
		entryStart := time.Now()
		result := model.MultiLaneEntryResult{
			Alias: entry.Alias,
			Tool:  entry.Tool,
			Lane:  entry.Lane,
		}
		handle, err := e.runBatchEntry(ctx, entry)
		result.TookMS = time.Since(entryStart).Milliseconds()
		if err != nil {
			result.Status = model.MultiLaneError
			result.Error = &model.MultiLaneEntryError{
				Code:    errors.GetCode(err),
				Message: err.Error(),
			}
			resp.ErrorCount++
		} else {
			result.Status = model.MultiLaneSuccess
			result.Handle = handle
			resp.SuccessCount++
		}
		resp.Results = append(resp.Results, result)
	}

	resp.TookMSTotal = time.Since(start).Milliseconds()
	return resp, nil
}

// runBatchEntry checks tool/lane compatibility, then delegates to LaneSearch.
func (e *Engine) runBatchEntry(ctx context.Context, entry model.MultiLaneEntry) (*model.SearchToolResponse, error) {
	switch entry.Tool {
	case model.MultiLaneToolFulltext:
		if entry.Lane != model.LaneFulltext {
			return nil, errors.Validationf("tool %q requires lane fulltext, got %q", entry.Tool, entry.Lane)
		}
		if entry.Params.Fulltext == nil {
			return nil, errors.Validation("fulltext entry requires fulltext params")
		}
	case model.MultiLaneToolSemantic:
		if entry.Lane != model.LaneSemantic && entry.Lane != model.LaneOriginalDense {
			return nil, errors.Validationf("tool %q requires a semantic lane, got %q", entry.Tool, entry.Lane)
		}
		if entry.Params.Semantic == nil {
			return nil, errors.Validation("semantic entry requires semantic params")
		}
	default:
		return nil, errors.Validationf("unknown batch tool %q", entry.Tool)
	}
	return e.LaneSearch(ctx, entry.Lane, entry.Params)
}
