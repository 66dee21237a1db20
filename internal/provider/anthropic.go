package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wardenhq/warden/internal/model"
)

// AnthropicProvider adapts the Anthropic Messages API to the Provider
// contract with a single non-streaming call per orchestrator round; the
// orchestrator itself provides the multi-round loop.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int64
}

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int64
}

// NewAnthropicProvider builds an AnthropicProvider from cfg.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(opts...),
		defaultModel: model,
		maxTokens:    maxTokens,
	}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Chat(ctx context.Context, messages []model.ChatMessage, tools []model.Tool, priorToolResults []model.ToolResult, cfg model.ProviderConfig) (Result, error) {
	reqModel := p.defaultModel
	if cfg.Model != "" {
		reqModel = cfg.Model
	}

	msgParams, system, err := convertAnthropicMessages(messages, priorToolResults)
	if err != nil {
		return Result{}, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(reqModel),
		Messages:  msgParams,
		MaxTokens: p.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if len(tools) > 0 {
		toolParams, err := convertAnthropicTools(tools)
		if err != nil {
			return Result{}, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = toolParams
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("anthropic provider request failed: %w", err)
	}

	var text strings.Builder
	var calls []model.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			tu := block.AsToolUse()
			calls = append(calls, model.ToolCall{
				Name:          tu.Name,
				ArgumentsJSON: marshalArgs(tu.Input),
				ToolCallID:    tu.ID,
			})
		}
	}
	if len(calls) > 0 {
		return Result{Calls: calls}, nil
	}
	return Result{Text: text.String()}, nil
}

func convertAnthropicMessages(messages []model.ChatMessage, priorToolResults []model.ToolResult) ([]anthropic.MessageParam, string, error) {
	var out []anthropic.MessageParam
	var system string

	for _, m := range messages {
		if m.Role == model.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		var content []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			content = append(content, anthropic.NewTextBlock(m.Content))
		}
		if m.Role == model.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(content...))
		} else {
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}

	if len(priorToolResults) == 0 {
		return out, system, nil
	}

	toolUseBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(priorToolResults))
	for _, r := range priorToolResults {
		var input map[string]any
		toolUseBlocks = append(toolUseBlocks, anthropic.NewToolUseBlock(r.ToolCallID, input, r.Name))
	}
	out = append(out, anthropic.NewAssistantMessage(toolUseBlocks...))

	resultBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(priorToolResults))
	for _, r := range priorToolResults {
		resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(r.ToolCallID, string(r.ResultJSON), false))
	}
	out = append(out, anthropic.NewUserMessage(resultBlocks...))

	return out, system, nil
}

func convertAnthropicTools(tools []model.Tool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(t.InputJSONSchema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", t.Name, err)
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", t.Name)
		}
		toolParam.OfTool.Description = anthropic.String(t.Description)
		out = append(out, toolParam)
	}
	return out, nil
}
