// Package main provides the entry point for the rrfusion CLI.
package main

import (
	"os"

	"github.com/jl1nie/rrfusion/cmd/rrfusion/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
