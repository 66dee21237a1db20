// Package orchestrator implements the bounded multi-round loop that
// coordinates Provider, policy, and ActionBackend for one chat turn:
// propose, authorize, execute, observe, repeat until final text or the
// round bound.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/wardenhq/warden/internal/backend"
	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/provider"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/tracing"
	"go.opentelemetry.io/otel/trace"
)

// MaxToolRounds bounds the number of provider tool-call rounds per chat
// turn.
const MaxToolRounds = 4

// tooManyRoundsText is the explicit bounded-termination message emitted
// when a further round would otherwise be attempted.
const tooManyRoundsText = "too many tool rounds"

// confirmationRequiredText is emitted when a round executes nothing and at
// least one of its proposed calls requires consent.
const confirmationRequiredText = "Confirmation required before executing requested tools."

// Orchestrator runs one bounded chat turn against a fixed Provider,
// ToolRegistry, and ActionBackend.
type Orchestrator struct {
	Provider provider.Provider
	Registry *registry.Registry
	Backend  backend.Backend
	Tracer   *tracing.Tracer
}

// New builds an Orchestrator. The AgentService rebuilds one of these per
// chat_request/chat_approve call so provider/backend configuration always
// reflects the current active provider and project root.
func New(p provider.Provider, r *registry.Registry, b backend.Backend) *Orchestrator {
	return &Orchestrator{Provider: p, Registry: r, Backend: b}
}

// WithTracer attaches an optional tracer; a nil Tracer (the New default)
// disables span emission entirely.
func (o *Orchestrator) WithTracer(t *tracing.Tracer) *Orchestrator {
	o.Tracer = t
	return o
}

// Run executes the multi-round tool-call loop and returns a
// ChatResponse. It never mints audit_id, session_id, or consent_token;
// those are the AgentService's responsibility.
func (o *Orchestrator) Run(ctx context.Context, messages []model.ChatMessage, cfg model.ProviderConfig, mode model.Mode, userConfirmed bool) model.ChatResponse {
	var proposed []model.ActionEvent
	var executed []model.ActionEvent
	var toolResults []model.ToolResult
	var actionsExecuted []string

	tools := o.Registry.List()
	authCtx := policy.AuthContext{Mode: string(mode), UserConfirmed: userConfirmed}
	fingerprint := Fingerprint(cfg, mode, messages)

	round := 0
	for {
		result, err := o.Provider.Chat(ctx, messages, tools, toolResults, cfg)
		if err != nil {
			return finalize(proposed, executed, actionsExecuted, fingerprint, fmt.Sprintf("%s provider request failed: %v", o.Provider.Name(), err))
		}
		if result.IsFinal() {
			return finalize(proposed, executed, actionsExecuted, fingerprint, result.Text)
		}

		round++
		if round > MaxToolRounds {
			return finalize(proposed, executed, actionsExecuted, fingerprint, tooManyRoundsText)
		}

		var roundSpan trace.Span
		roundCtx := ctx
		if o.Tracer != nil {
			roundCtx, roundSpan = o.Tracer.StartToolRound(ctx, fingerprint, round)
		}

		roundProducedResult := false
		roundHasConsentRequired := false
		var earlyReturn *model.ChatResponse

		for _, call := range result.Calls {
			known := o.Registry.HasTool(call.Name)
			preview := sanitizePreview(call.ArgumentsJSON)

			if !known {
				event := model.ActionEvent{
					ToolName:         call.Name,
					Status:           model.StatusDenied,
					Reason:           "unknown_tool",
					ArgumentsPreview: preview,
				}
				proposed = append(proposed, event)
				continue
			}

			tier, decision := policy.Authorize(call.Name, known, authCtx)
			switch decision.Outcome {
			case policy.Allow:
				if err := o.Registry.ValidateArguments(call.Name, call.ArgumentsJSON); err != nil {
					proposed = append(proposed, model.ActionEvent{
						ToolName:         call.Name,
						CapabilityTier:   model.CapabilityTier(tier),
						Status:           model.StatusDenied,
						Reason:           "invalid_arguments",
						ArgumentsPreview: preview,
					})
					continue
				}
				proposed = append(proposed, model.ActionEvent{
					ToolName:         call.Name,
					CapabilityTier:   model.CapabilityTier(tier),
					Status:           model.StatusApproved,
					ArgumentsPreview: preview,
				})
				toolResult, err := o.Backend.Execute(roundCtx, call)
				if err != nil {
					resp := finalize(proposed, executed, actionsExecuted, fingerprint, fmt.Sprintf("tool execution failed: %v", err))
					earlyReturn = &resp
					break
				}
				if toolResult.ToolCallID == "" {
					toolResult.ToolCallID = call.ToolCallID
				}
				toolResults = append(toolResults, toolResult)
				executed = append(executed, model.ActionEvent{
					ToolName:         call.Name,
					CapabilityTier:   model.CapabilityTier(tier),
					Status:           model.StatusExecuted,
					ArgumentsPreview: preview,
					EvidenceSummary:  toolResult.Evidence.Summary,
				})
				actionsExecuted = append(actionsExecuted, call.Name)
				roundProducedResult = true
			case policy.RequireConfirmation:
				proposed = append(proposed, model.ActionEvent{
					ToolName:         call.Name,
					CapabilityTier:   model.CapabilityTier(tier),
					Status:           model.StatusConsentRequired,
					Reason:           decision.Reason,
					ArgumentsPreview: preview,
				})
				roundHasConsentRequired = true
			case policy.Deny:
				proposed = append(proposed, model.ActionEvent{
					ToolName:         call.Name,
					CapabilityTier:   model.CapabilityTier(tier),
					Status:           model.StatusDenied,
					Reason:           decision.Reason,
					ArgumentsPreview: preview,
				})
			}
			if earlyReturn != nil {
				break
			}
		}

		if earlyReturn != nil {
			if roundSpan != nil {
				roundSpan.End()
			}
			return *earlyReturn
		}

		if roundHasConsentRequired && !roundProducedResult {
			if roundSpan != nil {
				roundSpan.End()
			}
			return finalize(proposed, executed, actionsExecuted, fingerprint, confirmationRequiredText)
		}

		if roundSpan != nil {
			roundSpan.End()
		}
	}
}

func finalize(proposed, executed []model.ActionEvent, actionsExecuted []string, fingerprint, finalText string) model.ChatResponse {
	return model.ChatResponse{
		FinalText:            finalText,
		RequestFingerprint:   fingerprint,
		ActionsExecuted:      actionsExecuted,
		ProposedActions:      proposed,
		ExecutedActionEvents: executed,
		ActionEvents:         append(append([]model.ActionEvent{}, proposed...), executed...),
	}
}

// Fingerprint computes the stable 64-bit request fingerprint over
// (provider_name, model, mode_tag, [(role, content)...]).
// Identical fields always hash identically; it is never used for
// authorization, only as an idempotency/debug key.
func Fingerprint(cfg model.ProviderConfig, mode model.Mode, messages []model.ChatMessage) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", cfg.ProviderName, cfg.Model, mode)
	for _, m := range messages {
		fmt.Fprintf(h, "\x00%s\x00%s", m.Role, m.Content)
	}
	return fmt.Sprintf("req-%016x", h.Sum64())
}
