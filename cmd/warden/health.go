package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/agentservice"
	cfgpkg "github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/store"
)

// buildHealthCmd creates the "health" command, a one-shot local read of
// system.health against the configured store without
// starting any RPC listener.
func buildHealthCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report system health against the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd.OutOrStdout(), configPath, jsonOutput)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "warden.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func runHealth(w io.Writer, configPath string, jsonOutput bool) error {
	cfg, err := cfgpkg.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st := store.New(cfg.Store.Dir, nil)
	reg := registry.NewDefault()
	providers := buildProviderRegistry(cfg.Provider)

	svc, err := agentservice.New(st, reg, providers, cfg.Project.DefaultRoot, nil, realClock)
	if err != nil {
		return fmt.Errorf("init agent service: %w", err)
	}
	defer svc.Shutdown()

	health, err := svc.SystemHealth()
	if err != nil {
		return fmt.Errorf("system health: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(health)
	}

	fmt.Fprintf(w, "project path:     %s\n", health.ProjectPath)
	fmt.Fprintf(w, "active provider:  %s\n", orNone(health.ActiveProvider))
	fmt.Fprintf(w, "provider count:   %d\n", health.ProviderCount)
	fmt.Fprintf(w, "pending consents: %d\n", health.PendingConsents)
	fmt.Fprintf(w, "mcp servers:      %d running / %d total\n", health.McpRunning, health.McpTotal)
	for _, warning := range health.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
