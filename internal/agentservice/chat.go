package agentservice

import (
	"context"
	"fmt"

	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/orchestrator"
)

// ErrConsentNotFound is returned when a consent_token/consent_id has no
// matching PendingConsentRecord.
var ErrConsentNotFound = fmt.Errorf("consent_not_found")

// ErrConsentExpired is returned when resolution is attempted past
// expires_at; the record is marked expired as a side effect.
var ErrConsentExpired = fmt.Errorf("consent_expired")

// NotPendingError reports that a consent has already resolved to a
// terminal status; its Error() carries the stable "consent_not_pending:
// <status>" code verbatim.
type NotPendingError struct {
	Status model.ConsentStatus
}

func (e *NotPendingError) Error() string {
	return fmt.Sprintf("consent_not_pending:%s", e.Status)
}

// ChatRequest runs one chat turn. ctx only bounds the
// Provider/ActionBackend I/O the orchestrator performs.
func (s *AgentService) ChatRequest(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatRequestLocked(ctx, req)
}

func (s *AgentService) chatRequestLocked(ctx context.Context, req model.ChatRequest) (model.ChatResponse, error) {
	cfg := req.ProviderConfig
	if cfg.ProviderName == "" {
		state, err := s.store.ReadProviderState()
		if err == nil && state.ActiveProvider != "" {
			cfg.ProviderName = state.ActiveProvider
		}
	}
	req.ProviderConfig = cfg

	if req.SessionID != "" {
		if err := s.appendToSession(req.SessionID, req.Messages); err != nil {
			return model.ChatResponse{}, err
		}
	}

	orch, err := s.buildOrchestrator(cfg)
	if err != nil {
		return model.ChatResponse{}, err
	}

	resp := orch.Run(ctx, req.Messages, cfg, req.Mode, false)
	return s.finishChatTurn(req, resp, req)
}

// ChatApprove resolves a pending consent by approving it, replaying the
// exact bound ChatRequest with user_confirmed=true.
func (s *AgentService) ChatApprove(ctx context.Context, consentID string) (model.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.resolvePending(consentID)
	if err != nil {
		return model.ChatResponse{}, err
	}

	record.Status = model.ConsentApproved
	if err := s.store.PutPendingConsent(record); err != nil {
		return model.ChatResponse{}, err
	}
	s.recordConsentResolution("approved")

	bound := record.BoundRequest
	orch, err := s.buildOrchestrator(bound.ProviderConfig)
	if err != nil {
		return model.ChatResponse{}, err
	}
	resp := orch.Run(ctx, bound.Messages, bound.ProviderConfig, bound.Mode, true)

	final, err := s.finishChatTurn(bound, resp, bound)
	if err != nil {
		return model.ChatResponse{}, err
	}
	final.ExecutionState = model.ExecutionCompleted
	final.ConsentToken = ""
	final.ConsentRequest = nil
	return final, nil
}

// ChatDeny resolves a pending consent by denial, without replaying the
// bound request.
func (s *AgentService) ChatDeny(consentID string) (model.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.resolvePending(consentID)
	if err != nil {
		return model.ChatResponse{}, err
	}

	record.Status = model.ConsentDenied
	if err := s.store.PutPendingConsent(record); err != nil {
		return model.ChatResponse{}, err
	}
	s.recordConsentResolution("denied")

	event := model.ActionEvent{
		ToolName:       record.ToolName,
		CapabilityTier: record.CapabilityTier,
		Status:         model.StatusDenied,
		Reason:         record.Rationale,
	}
	resp := model.ChatResponse{
		FinalText:            "User denied consent for requested actions.",
		RequestFingerprint:   record.RequestFingerprint,
		ExecutionState:       model.ExecutionDenied,
		SessionID:            record.SessionID,
		ProposedActions:      []model.ActionEvent{event},
		ExecutedActionEvents: nil,
		ActionEvents:         []model.ActionEvent{event},
		ActionsExecuted:      []string{fmt.Sprintf("denied:%s:%s", record.ToolName, record.Rationale)},
	}

	auditID := s.auditCounter.Next()
	resp.AuditID = auditID
	if err := s.persistAudit(auditID, record.SessionID, record.BoundRequest.ProviderConfig.ProviderName, resp); err != nil {
		s.log.Error("persist deny audit failed", "error", err)
	}
	return resp, nil
}

// resolvePending fetches the pending record by id, lazily expiring it if
// past its TTL, and rejects any
// resolution attempt against a non-pending record with the stable
// consent_not_pending:<status> code.
func (s *AgentService) resolvePending(consentID string) (model.PendingConsentRecord, error) {
	record, err := s.store.GetPendingConsent(consentID)
	if err != nil {
		return model.PendingConsentRecord{}, ErrConsentNotFound
	}

	if record.Status == model.ConsentPending && s.now() > record.ExpiresAt {
		record.Status = model.ConsentExpired
		_ = s.store.PutPendingConsent(record)
	}

	if record.Status != model.ConsentPending {
		if record.Status == model.ConsentExpired {
			return model.PendingConsentRecord{}, ErrConsentExpired
		}
		return model.PendingConsentRecord{}, &NotPendingError{Status: record.Status}
	}
	return record, nil
}

func (s *AgentService) buildOrchestrator(cfg model.ProviderConfig) (*orchestrator.Orchestrator, error) {
	p, err := s.providers.Build(cfg.ProviderName, cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider %q: %w", cfg.ProviderName, err)
	}
	return orchestrator.New(p, s.registry, s.backendFor()).WithTracer(s.tracer), nil
}

// finishChatTurn finishes a chat turn: mint the user-visible audit id,
// attach a pending consent if needed, append the assistant message, and
// persist the audit entry. originalForBind is the ChatRequest
// that would be bound to any newly minted consent; on the chat_approve
// replay no consent_required event can arise (every tier authorizes with
// user_confirmed=true), so no second consent is ever minted there.
func (s *AgentService) finishChatTurn(req model.ChatRequest, resp model.ChatResponse, originalForBind model.ChatRequest) (model.ChatResponse, error) {
	resp.RequestFingerprint = orchestrator.Fingerprint(req.ProviderConfig, req.Mode, req.Messages)
	resp.AuditID = s.auditCounter.Next()
	resp.SessionID = req.SessionID

	pending := pendingActions(resp.ProposedActions)
	if len(pending) > 0 && originalForBind.Messages != nil {
		consentID := s.consentCounter.Next()
		approvedCount, deniedCount, err := s.countSessionConsentResolutions(req.SessionID)
		if err != nil {
			return model.ChatResponse{}, err
		}
		record := model.PendingConsentRecord{
			ConsentID:            consentID,
			SessionID:            req.SessionID,
			RequestedAt:          s.now(),
			ExpiresAt:            s.now() + s.consentTTL,
			ToolName:             pending[0].ToolName,
			CapabilityTier:       pending[0].CapabilityTier,
			Status:               model.ConsentPending,
			Rationale:            pending[0].Reason,
			ArgumentsPreview:     pending[0].ArgumentsPreview,
			RequestFingerprint:   resp.RequestFingerprint,
			BoundRequest:         originalForBind.Clone(),
			SessionApprovedCount: approvedCount,
			SessionDeniedCount:   deniedCount,
		}
		if err := s.store.PutPendingConsent(record); err != nil {
			return model.ChatResponse{}, err
		}
		resp.ConsentToken = consentID
		resp.ConsentRequest = buildConsentRequest(pending, record.ExpiresAt, s.consentTTL)
		resp.ExecutionState = model.ExecutionAwaitingConsent
	} else {
		resp.ExecutionState = model.ExecutionCompleted
	}

	if req.SessionID != "" {
		if err := s.appendAssistantMessage(req.SessionID, resp.FinalText); err != nil {
			return model.ChatResponse{}, err
		}
	}

	if err := s.persistAudit(resp.AuditID, req.SessionID, req.ProviderConfig.ProviderName, resp); err != nil {
		s.log.Error("persist chat audit failed", "error", err)
	}

	s.recordToolRounds(resp)
	s.refreshGauges()

	return resp, nil
}

// countSessionConsentResolutions tallies how many prior consents in the
// same session resolved to approved/denied, for the audit-only
// SessionApprovedCount/SessionDeniedCount bookkeeping on new consent
// records. Sessionless requests always count zero.
func (s *AgentService) countSessionConsentResolutions(sessionID string) (approved, denied int, err error) {
	if sessionID == "" {
		return 0, 0, nil
	}
	records, err := s.store.ListPendingConsents()
	if err != nil {
		return 0, 0, err
	}
	for _, r := range records {
		if r.SessionID != sessionID {
			continue
		}
		switch r.Status {
		case model.ConsentApproved:
			approved++
		case model.ConsentDenied:
			denied++
		}
	}
	return approved, denied, nil
}

func pendingActions(events []model.ActionEvent) []model.ActionEvent {
	var out []model.ActionEvent
	for _, e := range events {
		if e.Status == model.StatusConsentRequired {
			out = append(out, e)
		}
	}
	return out
}

// buildConsentRequest synthesizes the human-facing ConsentRequest for a
// set of gated actions.
func buildConsentRequest(pending []model.ActionEvent, expiresAt, ttlSeconds int64) *model.ConsentRequest {
	riskSet := map[string]bool{}
	requiresExtra := false
	for _, e := range pending {
		switch e.CapabilityTier {
		case model.TierLocalActions:
			riskSet["local_device_action"] = true
			requiresExtra = true
		case model.TierSystemActions:
			riskSet["system_level_action"] = true
			requiresExtra = true
		}
		if e.ArgumentsPreview != "" {
			riskSet["external_arguments_present"] = true
		}
	}
	if len(pending) > 1 {
		riskSet["multiple_actions_requested"] = true
	}

	var risks []string
	for _, k := range []string{"local_device_action", "system_level_action", "multiple_actions_requested", "external_arguments_present"} {
		if riskSet[k] {
			risks = append(risks, k)
		}
	}

	var summary string
	if len(pending) == 1 {
		summary = fmt.Sprintf("Approve execution of '%s' once for this exact request.", pending[0].ToolName)
	} else {
		summary = fmt.Sprintf("Approve execution of %d actions once for this exact request.", len(pending))
	}

	return &model.ConsentRequest{
		Scope:                          model.ConsentScope,
		HumanSummary:                   summary,
		RiskFactors:                    risks,
		RequiresExtraConfirmationClick: requiresExtra,
		ExpiresAtUnixSeconds:           expiresAt,
		TTLSeconds:                     ttlSeconds,
	}
}

func (s *AgentService) persistAudit(auditID, sessionID, providerName string, resp model.ChatResponse) error {
	entry := model.AuditEntry{
		AuditID:           auditID,
		Timestamp:         s.now(),
		SessionID:         sessionID,
		Provider:          providerName,
		PolicyDecisions:   policyDecisionTriples(resp.ProposedActions),
		ProposedToolCalls: toolNames(resp.ProposedActions),
		ExecutedActions:   resp.ActionsExecuted,
		EvidenceSummaries: evidenceSummaries(resp.ExecutedActionEvents),
	}
	return s.store.AppendAudit(entry)
}

func policyDecisionTriples(events []model.ActionEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, fmt.Sprintf("%s:%s:%s", e.ToolName, e.Status, e.Reason))
	}
	return out
}

func toolNames(events []model.ActionEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ToolName)
	}
	return out
}

func evidenceSummaries(events []model.ActionEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		if e.EvidenceSummary != "" {
			out = append(out, e.EvidenceSummary)
		}
	}
	return out
}
