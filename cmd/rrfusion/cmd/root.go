// Package cmd provides the CLI commands for rrfusion.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jl1nie/rrfusion/pkg/version"
)

// NewRootCmd creates the root command for the rrfusion CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rrfusion",
		Short: "Patent-search RRF fusion engine with an MCP tool surface",
		Long: `rrfusion fuses lexical and dense patent-search lanes with reciprocal
rank fusion, code-aware boosts, and a precision/recall frontier, exposing
the workflow as MCP tools over stdio or streamable HTTP.

Running 'rrfusion' with no arguments serves MCP over stdio.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			// MCP over stdio owns stdout; nothing may be printed before
			// the server starts.
			return runServe(cmd.Context(), serveOptions{transport: "stdio"})
		},
	}

	cmd.SetVersionTemplate("rrfusion version {{.Version}}\n")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
