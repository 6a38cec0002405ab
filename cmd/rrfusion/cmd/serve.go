package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jl1nie/rrfusion/internal/backend"
	"github.com/jl1nie/rrfusion/internal/config"
	"github.com/jl1nie/rrfusion/internal/engine"
	"github.com/jl1nie/rrfusion/internal/logging"
	"github.com/jl1nie/rrfusion/internal/mcp"
	"github.com/jl1nie/rrfusion/internal/store"
)

type serveOptions struct {
	transport  string
	configPath string
	logLevel   string
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP tool server",
		Long: `Start the rrfusion MCP server.

The stdio transport speaks JSON-RPC on stdin/stdout for MCP hosts such as
Claude Code. The http transport serves streamable HTTP on the configured
host and port, with optional bearer-token auth.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.transport, "transport", "t", "stdio", "Transport: stdio or http")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	return cmd
}

// runServe wires configuration, logging, the state store, the backend
// registry, and the engine, then blocks serving MCP until interrupted.
func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	// Stdout belongs to the stdio transport; logs go to file and stderr.
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	st, err := store.Open(cfg.RedisURL, store.Options{
		Snapshot:   cfg.Snapshot,
		DataTTL:    time.Duration(cfg.TTL.DataHours) * time.Hour,
		SnippetTTL: time.Duration(cfg.TTL.SnippetHours) * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	backends := backend.NewRegistry(cfg.Backends, logger)
	eng := engine.New(st, backends, cfg, logger)
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("engine close failed", slog.String("error", err.Error()))
		}
	}()

	srv, err := mcp.NewServer(eng, cfg, logger)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return srv.Serve(ctx, opts.transport, addr)
}
