// Package provider implements the Provider capability contract: a pure
// chat call that returns either final assistant text or a batch of
// proposed tool calls, given the conversation plus any prior tool
// results. Concrete adapters wrap the Anthropic and OpenAI SDKs; a
// deterministic StubProvider backs local testing without network access.
package provider

import (
	"context"
	"encoding/json"

	"github.com/wardenhq/warden/internal/model"
)

// Result is the tagged union a Provider.Chat call returns: exactly one of
// Text or Calls is meaningful, mirroring the FinalText(string) |
// ToolCalls([ToolCall]) union.
type Result struct {
	Text  string
	Calls []model.ToolCall
}

// IsFinal reports whether this Result is a final-text response.
func (r Result) IsFinal() bool { return r.Calls == nil }

// Provider is implemented by every LLM backend the orchestrator can drive.
type Provider interface {
	// Name identifies the provider for routing, audits, and metrics.
	Name() string

	// Chat advances the conversation by one provider turn. priorToolResults
	// carries the results of any tool calls executed since the last Chat
	// call for this run, in insertion order.
	Chat(ctx context.Context, messages []model.ChatMessage, tools []model.Tool, priorToolResults []model.ToolResult, cfg model.ProviderConfig) (Result, error)
}

// Registry resolves a configured provider name to a live Provider. The
// AgentService rebuilds (does not share) an orchestrator's Provider per
// call so that provider_config changes take effect immediately.
type Registry struct {
	factories map[string]func(cfg model.ProviderConfig) (Provider, error)
}

// NewRegistry returns a registry with no providers configured.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func(model.ProviderConfig) (Provider, error))}
}

// Register installs a factory for a provider name.
func (r *Registry) Register(name string, factory func(cfg model.ProviderConfig) (Provider, error)) {
	r.factories[name] = factory
}

// Names lists every registered provider name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	return names
}

// Build instantiates the named provider against the given config.
func (r *Registry) Build(name string, cfg model.ProviderConfig) (Provider, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return factory(cfg)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

func marshalArgs(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
