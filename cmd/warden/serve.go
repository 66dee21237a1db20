package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/agentservice"
	cfgpkg "github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/janitor"
	"github.com/wardenhq/warden/internal/metrics"
	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/provider"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/rpc"
	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/internal/tracing"
)

// buildServeCmd creates the "serve" command that starts the RPC service
// over HTTP and/or stdio.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the warden RPC service",
		Long: `Start the warden JSON-RPC service over HTTP (POST /jsonrpc) and,
when server.stdio is set, over LSP-style Content-Length framed stdio.

Graceful shutdown runs on SIGINT/SIGTERM: every tracked MCP child is
stopped before the process exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "warden.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := cfgpkg.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := slog.Default()
	st := store.New(cfg.Store.Dir, nil)

	reg := registry.NewDefault()
	providers := buildProviderRegistry(cfg.Provider)

	svc, err := agentservice.New(st, reg, providers, cfg.Project.DefaultRoot, log, realClock)
	if err != nil {
		return fmt.Errorf("init agent service: %w", err)
	}
	defer svc.Shutdown()

	if cfg.Provider.Active != "" {
		if state, err := st.ReadProviderState(); err == nil && state.ActiveProvider == "" {
			_ = svc.SetActiveProvider(cfg.Provider.Active)
		}
	}
	// Seed file-configured provider configs into the store without
	// clobbering configs set over RPC.
	if len(cfg.Provider.Configs) > 0 {
		state, err := st.ReadProviderState()
		if err == nil {
			for name, raw := range cfg.Provider.Configs {
				if _, exists := state.Configs[name]; !exists && json.Valid([]byte(raw)) {
					_ = svc.SetProviderConfig(name, json.RawMessage(raw))
				}
			}
		}
	}

	svc.SetConsentTTL(cfg.Consent.TTLSeconds)
	m := metrics.New()
	svc.SetMetrics(m)

	tracer, shutdownTracer := tracing.New(tracing.Config{
		ServiceName: "warden",
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	})
	defer func() { _ = shutdownTracer(context.Background()) }()
	svc.SetTracer(tracer)

	j, err := janitor.New(cfg.Janitor.Interval, svc, log)
	if err != nil {
		return fmt.Errorf("init janitor: %w", err)
	}
	j.Start()
	defer j.Stop()

	watcher := store.NewWatcher(cfg.Store.Dir, log)
	defer watcher.Close()

	startAutoStartServers(svc, cfg.Mcp.AutoStart, log)

	dispatcher := rpc.NewDispatcher(rpc.BuildMethodTable(svc)).WithTracer(tracer).WithMetrics(m)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 2)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", rpc.HTTPHandler(dispatcher))

	httpServer := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: mux}
	go func() {
		log.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if cfg.Server.Stdio {
		go func() {
			if err := rpc.ServeStdio(dispatcher, os.Stdin, os.Stdout); err != nil {
				errCh <- fmt.Errorf("stdio server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		cancel()
		_ = httpServer.Close()
		return err
	}

	return httpServer.Close()
}

func realClock() int64 { return time.Now().Unix() }

// startAutoStartServers starts every registered MCP server whose name is in
// autoStart. Failures are logged, never fatal: a missing binary should not
// keep the RPC surface from coming up.
func startAutoStartServers(svc *agentservice.AgentService, autoStart []string, log *slog.Logger) {
	if len(autoStart) == 0 {
		return
	}
	wanted := make(map[string]bool, len(autoStart))
	for _, name := range autoStart {
		wanted[name] = true
	}
	servers, err := svc.ListMcpServers()
	if err != nil {
		log.Error("list mcp servers for auto-start", "error", err)
		return
	}
	for _, rec := range servers {
		if !wanted[rec.Name] {
			continue
		}
		if _, err := svc.StartMcpServer(rec.ID); err != nil {
			log.Error("auto-start mcp server failed", "name", rec.Name, "id", rec.ID, "error", err)
		} else {
			log.Info("auto-started mcp server", "name", rec.Name, "id", rec.ID)
		}
	}
}

// buildProviderRegistry wires the built-in openai/anthropic factories,
// each resolving per-call config_json over the static file defaults.
func buildProviderRegistry(defaults cfgpkg.ProviderConfig) *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register("openai", func(cfg model.ProviderConfig) (provider.Provider, error) {
		resolved := resolveOpenAI(cfg, defaults.OpenAI)
		return provider.NewOpenAIProvider(resolved)
	})
	reg.Register("anthropic", func(cfg model.ProviderConfig) (provider.Provider, error) {
		resolved := resolveAnthropic(cfg, defaults.Anthro)
		return provider.NewAnthropicProvider(resolved)
	})
	// Deterministic offline provider, usable without any credentials.
	reg.Register("openai-stub", func(model.ProviderConfig) (provider.Provider, error) {
		return provider.NewStubProvider("openai-stub"), nil
	})
	return reg
}

type providerOverrides struct {
	APIKey    string `json:"api_key"`
	APIKeyEnv string `json:"api_key_env"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
}

func decodeOverrides(raw json.RawMessage) providerOverrides {
	var out providerOverrides
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func resolveOpenAI(cfg model.ProviderConfig, defaults cfgpkg.OpenAIConfig) provider.OpenAIConfig {
	o := decodeOverrides(cfg.ConfigJSON)
	apiKeyEnv := firstNonEmpty(o.APIKeyEnv, defaults.APIKeyEnv, "OPENAI_API_KEY")
	return provider.OpenAIConfig{
		APIKey:  firstNonEmpty(o.APIKey, resolveAPIKeyEnv(apiKeyEnv)),
		BaseURL: firstNonEmpty(o.BaseURL, defaults.BaseURL),
		Model:   firstNonEmpty(cfg.Model, o.Model, defaults.Model),
	}
}

func resolveAnthropic(cfg model.ProviderConfig, defaults cfgpkg.AnthropicConfig) provider.AnthropicConfig {
	o := decodeOverrides(cfg.ConfigJSON)
	apiKeyEnv := firstNonEmpty(o.APIKeyEnv, defaults.APIKeyEnv, "ANTHROPIC_API_KEY")
	return provider.AnthropicConfig{
		APIKey:       firstNonEmpty(o.APIKey, resolveAPIKeyEnv(apiKeyEnv)),
		BaseURL:      firstNonEmpty(o.BaseURL, defaults.BaseURL),
		DefaultModel: firstNonEmpty(cfg.Model, o.Model, defaults.Model),
	}
}

// resolveAPIKeyEnv reads the named env var, falling back to
// "<name>_FILE" when the direct value
// is empty.
func resolveAPIKeyEnv(name string) string {
	if name == "" {
		return ""
	}
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	if path := strings.TrimSpace(os.Getenv(name + "_FILE")); path != "" {
		if content, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
