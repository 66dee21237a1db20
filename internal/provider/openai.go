package provider

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wardenhq/warden/internal/model"
)

// OpenAIProvider adapts an OpenAI-compatible chat-completions endpoint to
// the Provider contract. When the orchestrator re-invokes after executing
// tools, this provider synthesizes a preceding assistant message carrying
// tool_calls[].id equal to each tool_call_id so the subsequent role=tool
// messages correlate, matching the OpenAI wire shape.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAIProvider builds an OpenAIProvider from cfg.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Chat(ctx context.Context, messages []model.ChatMessage, tools []model.Tool, priorToolResults []model.ToolResult, cfg model.ProviderConfig) (Result, error) {
	reqModel := p.model
	if cfg.Model != "" {
		reqModel = cfg.Model
	}

	chatMessages, err := convertOpenAIMessages(messages, priorToolResults)
	if err != nil {
		return Result{}, err
	}

	req := openai.ChatCompletionRequest{
		Model:    reqModel,
		Messages: chatMessages,
		Tools:    convertOpenAITools(tools),
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("openai provider request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{Text: ""}, nil
	}

	choice := resp.Choices[0].Message
	if len(choice.ToolCalls) == 0 {
		return Result{Text: choice.Content}, nil
	}

	calls := make([]model.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		calls = append(calls, model.ToolCall{
			Name:          tc.Function.Name,
			ArgumentsJSON: json.RawMessage(tc.Function.Arguments),
			ToolCallID:    tc.ID,
		})
	}
	return Result{Calls: calls}, nil
}

func convertOpenAITools(tools []model.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params any
		_ = json.Unmarshal(t.InputJSONSchema, &params)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func convertOpenAIMessages(messages []model.ChatMessage, priorToolResults []model.ToolResult) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+len(priorToolResults)+1)
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	if len(priorToolResults) == 0 {
		return out, nil
	}

	// Synthesize the preceding assistant tool_calls message so the
	// role=tool messages below correlate by tool_call_id.
	assistantCalls := make([]openai.ToolCall, 0, len(priorToolResults))
	for _, r := range priorToolResults {
		assistantCalls = append(assistantCalls, openai.ToolCall{
			ID:   r.ToolCallID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      r.Name,
				Arguments: "{}",
			},
		})
	}
	out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: assistantCalls})

	for _, r := range priorToolResults {
		out = append(out, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    string(r.ResultJSON),
			ToolCallID: r.ToolCallID,
		})
	}
	return out, nil
}
