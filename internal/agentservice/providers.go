package agentservice

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// ProviderSummary is the listing-friendly projection of one configured or
// built-in provider (providers.list).
type ProviderSummary struct {
	Name          string `json:"name"`
	IsActive      bool   `json:"is_active"`
	HasAuth       bool   `json:"has_auth"`
	ConfigSummary string `json:"config_summary"`
}

// secretField matches config_json keys whose values are redacted on
// display.
var secretField = regexp.MustCompile(`(?i)api_key|apikey|token|authorization|password|secret`)

// ListProviders enumerates the union of built-in provider names and
// configured names, each annotated with activity and auth state.
func (s *AgentService) ListProviders() ([]ProviderSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.ReadProviderState()
	if err != nil {
		return nil, err
	}

	names := map[string]bool{}
	for _, n := range s.providers.Names() {
		names[n] = true
	}
	for n := range state.Configs {
		names[n] = true
	}

	out := make([]ProviderSummary, 0, len(names))
	for name := range names {
		cfg := state.Configs[name]
		out = append(out, ProviderSummary{
			Name:          name,
			IsActive:      name == state.ActiveProvider,
			HasAuth:       hasAuth(cfg),
			ConfigSummary: configSummary(cfg),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetActiveProvider updates the persisted active_provider.
func (s *AgentService) SetActiveProvider(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.ReadProviderState()
	if err != nil {
		return err
	}
	state.ActiveProvider = name
	return s.store.WriteProviderState(state)
}

// SetProviderConfig writes the raw config_json for name as given;
// secrets are redacted only on read.
func (s *AgentService) SetProviderConfig(name string, cfg json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.ReadProviderState()
	if err != nil {
		return err
	}
	if state.Configs == nil {
		state.Configs = map[string]json.RawMessage{}
	}
	state.Configs[name] = cfg
	return s.store.WriteProviderState(state)
}

// GetProviderConfig returns name's config_json with inline secrets
// redacted for display.
func (s *AgentService) GetProviderConfig(name string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.ReadProviderState()
	if err != nil {
		return nil, err
	}
	cfg, ok := state.Configs[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return redactConfig(cfg), nil
}

// hasAuth reports whether cfg carries usable credentials: a non-empty
// api_key/token, or a non-empty api_key_env/token_env naming a populated
// environment variable.
func hasAuth(cfg json.RawMessage) bool {
	if len(cfg) == 0 {
		return false
	}
	var decoded map[string]any
	if err := json.Unmarshal(cfg, &decoded); err != nil {
		return false
	}
	for _, key := range []string{"api_key", "token"} {
		if v, ok := decoded[key].(string); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	for _, key := range []string{"api_key_env", "token_env"} {
		if v, ok := decoded[key].(string); ok && strings.TrimSpace(v) != "" {
			if strings.TrimSpace(os.Getenv(v)) != "" {
				return true
			}
		}
	}
	return false
}

func configSummary(cfg json.RawMessage) string {
	if len(cfg) == 0 {
		return "no configuration"
	}
	var decoded map[string]any
	if err := json.Unmarshal(cfg, &decoded); err != nil {
		return "invalid configuration"
	}
	keys := make([]string, 0, len(decoded))
	for k := range decoded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("configured: %s", strings.Join(keys, ", "))
}

// redactConfig replaces secret-looking string values with "[REDACTED]"
// while preserving non-secret fields.
func redactConfig(cfg json.RawMessage) json.RawMessage {
	var decoded map[string]any
	if err := json.Unmarshal(cfg, &decoded); err != nil {
		return cfg
	}
	for k, v := range decoded {
		if _, ok := v.(string); ok && secretField.MatchString(k) {
			decoded[k] = "[REDACTED]"
		}
	}
	out, err := json.Marshal(decoded)
	if err != nil {
		return cfg
	}
	return out
}
