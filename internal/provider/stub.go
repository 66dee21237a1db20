package provider

import (
	"context"
	"strings"

	"github.com/wardenhq/warden/internal/model"
)

// StubProvider is a deterministic provider for end-to-end exercises and
// tests that must not depend on network access. It inspects the latest
// user message for a small set of trigger phrases and
// proposes the matching tool call whenever no ToolResult is on hand; once
// any ToolResult is on hand it returns final text summarizing it.
type StubProvider struct {
	name string
}

// NewStubProvider returns a StubProvider registered under name (e.g.
// "openai-stub").
func NewStubProvider(name string) *StubProvider {
	if name == "" {
		name = "stub"
	}
	return &StubProvider{name: name}
}

func (p *StubProvider) Name() string { return p.name }

func (p *StubProvider) Chat(_ context.Context, messages []model.ChatMessage, _ []model.Tool, priorToolResults []model.ToolResult, _ model.ProviderConfig) (Result, error) {
	if len(priorToolResults) > 0 {
		return Result{Text: summarize(priorToolResults)}, nil
	}

	lastUser := lastUserMessage(messages)
	lower := strings.ToLower(lastUser)
	switch {
	case strings.Contains(lower, "activate"):
		name := extractAppName(lastUser)
		return Result{Calls: []model.ToolCall{{
			Name:          "desktop.app.activate",
			ArgumentsJSON: marshalArgs(map[string]string{"name": name}),
			ToolCallID:    "call-1",
		}}}, nil
	case strings.Contains(lower, "what time"):
		return Result{Calls: []model.ToolCall{{
			Name:          "time.now",
			ArgumentsJSON: marshalArgs(map[string]string{}),
			ToolCallID:    "call-1",
		}}}, nil
	case strings.Contains(lower, "cat "):
		path := strings.TrimSpace(lastUser[strings.Index(lower, "cat ")+len("cat "):])
		return Result{Calls: []model.ToolCall{{
			Name:          "file.read_text",
			ArgumentsJSON: marshalArgs(map[string]string{"path": path}),
			ToolCallID:    "call-1",
		}}}, nil
	case strings.Contains(lower, "mystery"):
		return Result{Calls: []model.ToolCall{{
			Name:          "mystery.op",
			ArgumentsJSON: marshalArgs(map[string]string{}),
			ToolCallID:    "call-1",
		}}}, nil
	default:
		return Result{Text: "Hello, how can I help?"}, nil
	}
}

func lastUserMessage(messages []model.ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func extractAppName(text string) string {
	const marker = "activate "
	idx := strings.LastIndex(strings.ToLower(text), marker)
	if idx < 0 {
		return "Browser"
	}
	return strings.TrimSpace(text[idx+len(marker):])
}

func summarize(results []model.ToolResult) string {
	if len(results) == 0 {
		return "Done."
	}
	return "Completed " + results[0].Name + "."
}
