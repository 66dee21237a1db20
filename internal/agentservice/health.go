package agentservice

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wardenhq/warden/internal/model"
)

// Health is the aggregate status returned by system.health.
type Health struct {
	ActiveProvider  string   `json:"active_provider,omitempty"`
	ProviderCount   int      `json:"provider_count"`
	PendingConsents int      `json:"pending_consents"`
	McpTotal        int      `json:"mcp_total"`
	McpRunning      int      `json:"mcp_running"`
	ProjectPath     string   `json:"project_path"`
	Warnings        []string `json:"warnings"`
}

// SystemHealth aggregates active_provider, provider_count, pending
// consents, MCP totals (after a reap sweep), the project path, and the
// warnings list.
func (s *AgentService) SystemHealth() (Health, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.ReadProviderState()
	if err != nil {
		return Health{}, err
	}

	pendingCount, err := s.countPendingConsentsLocked()
	if err != nil {
		return Health{}, err
	}

	servers, err := s.listMcpServersLocked()
	if err != nil {
		return Health{}, err
	}
	running := 0
	anyRunningOnDisk := false
	for _, rec := range servers {
		if rec.Status == model.McpRunning {
			running++
			anyRunningOnDisk = true
		}
	}

	health := Health{
		ActiveProvider:  state.ActiveProvider,
		ProviderCount:   len(state.Configs),
		PendingConsents: pendingCount,
		McpTotal:        len(servers),
		McpRunning:      running,
		ProjectPath:     s.projectRoot,
	}
	health.Warnings = s.buildWarnings(state, anyRunningOnDisk)
	return health, nil
}

func (s *AgentService) countPendingConsentsLocked() (int, error) {
	records, err := s.store.ListPendingConsents()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range records {
		if r.Status == model.ConsentPending && s.now() > r.ExpiresAt {
			r.Status = model.ConsentExpired
			_ = s.store.PutPendingConsent(r)
			continue
		}
		if r.Status == model.ConsentPending {
			count++
		}
	}
	return count, nil
}

func (s *AgentService) buildWarnings(state model.ProviderState, anyMcpRunning bool) []string {
	var warnings []string

	if state.ActiveProvider == "" {
		warnings = append(warnings, "no active provider selected")
	} else {
		cfg := state.Configs[state.ActiveProvider]
		if !hasAuth(cfg) {
			warnings = append(warnings, fmt.Sprintf("active provider '%s' has no configured auth", state.ActiveProvider))
		}
		if envName := authEnvName(cfg); envName != "" && strings.TrimSpace(os.Getenv(envName)) == "" {
			warnings = append(warnings, fmt.Sprintf("provider auth env var '%s' is not set or empty", envName))
		}
	}

	info, err := os.Stat(s.projectRoot)
	switch {
	case err != nil:
		warnings = append(warnings, fmt.Sprintf("project path '%s' does not exist", s.projectRoot))
	case !info.IsDir():
		warnings = append(warnings, fmt.Sprintf("project path '%s' is not a directory", s.projectRoot))
	}

	if anyMcpRunning {
		warnings = append(warnings, "one or more MCP servers are running")
	}

	return warnings
}

func authEnvName(cfg json.RawMessage) string {
	if len(cfg) == 0 {
		return ""
	}
	var decoded map[string]any
	if err := json.Unmarshal(cfg, &decoded); err != nil {
		return ""
	}
	for _, key := range []string{"api_key_env", "token_env"} {
		if v, ok := decoded[key].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
