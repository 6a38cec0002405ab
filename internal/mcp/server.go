package mcp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jl1nie/rrfusion/internal/config"
	"github.com/jl1nie/rrfusion/internal/engine"
	"github.com/jl1nie/rrfusion/pkg/version"
)

// Server is the MCP tool surface of rrfusion. It bridges LLM agents with the
// fusion engine over stdio or streamable HTTP.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	config *config.Config
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates the MCP server and registers all tools.
func NewServer(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine: eng,
		config: cfg,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "rrfusion",
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "rrfusion", version.Version
}

// toolDescriptions is the registration order and the ListTools source.
var toolDescriptions = []ToolInfo{
	{
		Name:        "search_fulltext",
		Description: "Run a lexical patent search and return the ranked document identifiers. A JP country filter is applied unless the filters name another country. The returned run_id can feed rrf_blend_frontier.",
	},
	{
		Name:        "search_semantic",
		Description: "Run a dense semantic patent search and return the ranked document identifiers. Same filter handling and run_id semantics as search_fulltext.",
	},
	{
		Name:        "rrf_search_fulltext_raw",
		Description: "Full-control lexical lane search. Returns the lane-run handle with result counts and the top classification codes, not the documents themselves.",
	},
	{
		Name:        "rrf_search_semantic_raw",
		Description: "Full-control dense lane search. semantic_style=original_dense routes to the internal dense backend. Returns a lane-run handle.",
	},
	{
		Name:        "rrf_blend_frontier",
		Description: "Fuse cached lane runs with reciprocal rank fusion, code-aware boosts, and a precision/recall frontier over candidate cut-offs. Returns the fusion-run handle, top pairs, contributions, and quality metrics.",
	},
	{
		Name:        "rrf_mutate_run",
		Description: "Derive a child fusion run by overlaying a weight/rrf_k/beta delta on a parent run's recipe and re-blending its original source runs. Lane rankings are never modified.",
	},
	{
		Name:        "run_multilane_search",
		Description: "Execute several lane searches strictly in sequence. Each entry succeeds or fails on its own; the batch always returns with per-entry status.",
	},
	{
		Name:        "peek_snippets",
		Description: "Page byte-budgeted snippets out of a run's ranking. Missing document text is back-filled from the backend. Identifier fields are always included.",
	},
	{
		Name:        "get_snippets",
		Description: "Fetch shaped snippet fields for an explicit list of document ids. No paging and no byte budget.",
	},
	{
		Name:        "get_publication",
		Description: "Fetch publication records by pub_id, app_doc_id, app_id, or exam_id. Identifiers that cannot be resolved fail the request.",
	},
	{
		Name:        "get_provenance",
		Description: "Report a run's recipe, lineage, lane contributions, code distributions, and metrics. Works for lane and fusion runs.",
	},
	{
		Name:        "register_representatives",
		Description: "Attach up to 30 labeled (A/B/C) representative documents to a fusion run, once. Returns the updated provenance.",
	},
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), toolDescriptions...)
}

func toolDescription(name string) string {
	for _, t := range toolDescriptions {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	add := func(name string, register func(name, desc string)) {
		register(name, toolDescription(name))
		s.logger.Debug("Registered tool", slog.String("name", name))
	}

	add("search_fulltext", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleSearchFulltext)
	})
	add("search_semantic", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleSearchSemantic)
	})
	add("rrf_search_fulltext_raw", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleFulltextRaw)
	})
	add("rrf_search_semantic_raw", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleSemanticRaw)
	})
	add("rrf_blend_frontier", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleBlend)
	})
	add("rrf_mutate_run", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleMutate)
	})
	add("run_multilane_search", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleMultiLane)
	})
	add("peek_snippets", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handlePeek)
	})
	add("get_snippets", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleGetSnippets)
	})
	add("get_publication", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleGetPublication)
	})
	add("get_provenance", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleProvenance)
	})
	add("register_representatives", func(name, desc string) {
		mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc}, s.handleRegisterRepresentatives)
	})

	s.logger.Info("MCP tools registered", slog.Int("count", len(toolDescriptions)))
}

// Handler returns the streamable HTTP handler with logging and optional
// bearer auth applied. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.config.Server.AuthToken != "" {
		r.Use(s.bearerAuth)
	}

	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/mcp", streamable)
	r.Handle("/mcp/*", streamable)
	return r
}

// bearerAuth rejects requests without the configured bearer token.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == r.Header.Get("Authorization") ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Server.AuthToken)) != 1 {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve starts the server on the given transport: "stdio" for JSON-RPC over
// stdin/stdout, "http" for streamable HTTP on addr.
func (s *Server) Serve(ctx context.Context, transport, addr string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport),
		slog.String("addr", addr))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	case "http":
		srv := &http.Server{
			Addr:              addr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			s.logger.Info("MCP server stopped gracefully")
			return nil
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
				return err
			}
			return nil
		}
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, http)", transport)
	}
}
