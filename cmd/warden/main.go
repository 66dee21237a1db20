// Package main provides the CLI entry point for warden, the local agent
// core: a JSON-RPC service coordinating an LLM
// provider, a policy-gated tool registry, and an on-disk consent ledger.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the root command and every subcommand. Kept
// separate from main so tests can exercise it without os.Exit.
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "warden",
		Short:        "warden - local consent-gated agent core",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.AddCommand(
		buildServeCmd(),
		buildToolsCmd(),
		buildHealthCmd(),
	)
	return root
}
