package backend

import (
	"log/slog"

	"github.com/jl1nie/rrfusion/internal/config"
	"github.com/jl1nie/rrfusion/internal/model"
)

// Registry resolves lane tags to their configured backends. The same
// instance may serve several lanes; Close runs once per unique instance.
type Registry struct {
	backends map[model.Lane]Backend
}

// NewRegistry wires the default lane assignment: the upstream adapter serves
// fulltext and semantic, the dense adapter serves original_dense. With
// use_stub set, the deterministic stub serves every lane.
func NewRegistry(cfg config.BackendsConfig, log *slog.Logger) *Registry {
	r := &Registry{backends: make(map[model.Lane]Backend)}
	if cfg.UseStub {
		stub := NewStub()
		for _, lane := range model.Lanes {
			r.backends[lane] = stub
		}
		return r
	}
	upstream := NewHTTP(cfg.Upstream, log)
	r.backends[model.LaneFulltext] = upstream
	r.backends[model.LaneSemantic] = upstream
	r.backends[model.LaneOriginalDense] = NewHTTP(cfg.Dense, log)
	return r
}

// Get returns the backend for a lane, or nil when none is registered.
func (r *Registry) Get(lane model.Lane) Backend {
	return r.backends[lane]
}

// Register assigns a backend to a lane, replacing any existing assignment.
func (r *Registry) Register(lane model.Lane, b Backend) {
	r.backends[lane] = b
}

// Lanes returns the registered lane tags.
func (r *Registry) Lanes() []model.Lane {
	lanes := make([]model.Lane, 0, len(r.backends))
	for lane := range r.backends {
		lanes = append(lanes, lane)
	}
	return lanes
}

// Close closes each distinct backend instance exactly once.
func (r *Registry) Close() error {
	seen := make(map[Backend]bool, len(r.backends))
	var first error
	for _, b := range r.backends {
		if seen[b] {
			continue
		}
		seen[b] = true
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
