package agentservice

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/provider"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/store"
)

func newTestService(t *testing.T, clock func() int64) *AgentService {
	t.Helper()
	dir := t.TempDir()
	projectRoot := t.TempDir()

	st := store.New(dir, nil)
	reg := registry.NewDefault()
	providers := provider.NewRegistry()
	providers.Register("openai-stub", func(model.ProviderConfig) (provider.Provider, error) {
		return provider.NewStubProvider("openai-stub"), nil
	})

	svc, err := New(st, reg, providers, projectRoot, nil, clock)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func fixedClock(t int64) func() int64 {
	return func() int64 { return t }
}

func baseRequest() model.ChatRequest {
	return model.ChatRequest{
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: "please activate Browser"}},
		ProviderConfig: model.ProviderConfig{ProviderName: "openai-stub"},
		Mode:           model.ModeRequireConfirmation,
	}
}

func TestChatRequestConsentHappyPath(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))
	resp, err := svc.ChatRequest(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	if resp.ExecutionState != model.ExecutionAwaitingConsent {
		t.Fatalf("expected awaiting_consent, got %s", resp.ExecutionState)
	}
	if resp.ConsentToken == "" {
		t.Fatalf("expected consent token")
	}
	if len(resp.ProposedActions) != 1 || resp.ProposedActions[0].Status != model.StatusConsentRequired {
		t.Fatalf("expected one consent_required action, got %+v", resp.ProposedActions)
	}

	approved, err := svc.ChatApprove(context.Background(), resp.ConsentToken)
	if err != nil {
		t.Fatalf("chat approve: %v", err)
	}
	if approved.ExecutionState != model.ExecutionCompleted {
		t.Fatalf("expected completed, got %s", approved.ExecutionState)
	}
	if len(approved.ExecutedActionEvents) != 1 || approved.ExecutedActionEvents[0].Status != model.StatusExecuted {
		t.Fatalf("expected one executed action, got %+v", approved.ExecutedActionEvents)
	}
	if approved.ExecutedActionEvents[0].ToolName != "desktop.app.activate" {
		t.Fatalf("expected desktop.app.activate executed, got %s", approved.ExecutedActionEvents[0].ToolName)
	}

	if _, err := svc.ChatApprove(context.Background(), resp.ConsentToken); err == nil {
		t.Fatalf("expected second approve to fail")
	} else if npe, ok := err.(*NotPendingError); !ok || npe.Status != model.ConsentApproved {
		t.Fatalf("expected consent_not_pending:approved, got %v", err)
	}
}

func TestChatDenyThenApproveFails(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))
	resp, err := svc.ChatRequest(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}

	denied, err := svc.ChatDeny(resp.ConsentToken)
	if err != nil {
		t.Fatalf("chat deny: %v", err)
	}
	if denied.ExecutionState != model.ExecutionDenied {
		t.Fatalf("expected denied, got %s", denied.ExecutionState)
	}

	if _, err := svc.ChatApprove(context.Background(), resp.ConsentToken); err == nil {
		t.Fatalf("expected approve after deny to fail")
	} else if npe, ok := err.(*NotPendingError); !ok || npe.Status != model.ConsentDenied {
		t.Fatalf("expected consent_not_pending:denied, got %v", err)
	}
}

func TestChatRequestBestEffortExecutesReadOnlyDirectly(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))
	req := model.ChatRequest{
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: "what time is it?"}},
		ProviderConfig: model.ProviderConfig{ProviderName: "openai-stub"},
		Mode:           model.ModeBestEffort,
	}
	resp, err := svc.ChatRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	if resp.ExecutionState != model.ExecutionCompleted {
		t.Fatalf("expected completed, got %s", resp.ExecutionState)
	}
	if len(resp.ExecutedActionEvents) != 1 || resp.ExecutedActionEvents[0].ToolName != "time.now" {
		t.Fatalf("expected time.now executed directly, got %+v", resp.ExecutedActionEvents)
	}
}

func TestChatRequestUnknownToolDenied(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))
	req := model.ChatRequest{
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: "run the mystery tool"}},
		ProviderConfig: model.ProviderConfig{ProviderName: "openai-stub"},
		Mode:           model.ModeBestEffort,
	}
	resp, err := svc.ChatRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}
	if len(resp.ProposedActions) == 0 || resp.ProposedActions[0].Reason != "unknown_tool" {
		t.Fatalf("expected unknown_tool denial, got %+v", resp.ProposedActions)
	}
	if len(resp.ExecutedActionEvents) != 0 {
		t.Fatalf("expected no executions, got %+v", resp.ExecutedActionEvents)
	}
}

func TestConsentExpiresLazily(t *testing.T) {
	var now int64 = 1000
	svc := newTestService(t, func() int64 { return now })

	resp, err := svc.ChatRequest(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("chat request: %v", err)
	}

	now += ConsentTTLSeconds + 1

	if _, err := svc.ChatApprove(context.Background(), resp.ConsentToken); err != ErrConsentExpired {
		t.Fatalf("expected consent_expired, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))

	session, err := svc.CreateSession("")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Title == "" {
		t.Fatalf("expected default title")
	}

	if _, err := svc.AppendSessionMessages(session.ID, []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := svc.GetSession(session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(got.Messages))
	}

	summaries, err := svc.ListSessions()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].MessageCount != 1 {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	deleted, err := svc.DeleteSession(session.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete success, got %v %v", deleted, err)
	}
	deletedAgain, err := svc.DeleteSession(session.ID)
	if err != nil || deletedAgain {
		t.Fatalf("expected idempotent second delete to report false, got %v %v", deletedAgain, err)
	}
}

func TestProviderConfigRoundTripRedactsSecrets(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))

	cfg, _ := json.Marshal(map[string]string{"api_key": "sk-live-xyz", "base_url": "https://api.example.com"})
	if err := svc.SetProviderConfig("openai-stub", cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := svc.SetActiveProvider("openai-stub"); err != nil {
		t.Fatalf("set active: %v", err)
	}

	got, err := svc.GetProviderConfig("openai-stub")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["api_key"] != "[REDACTED]" {
		t.Fatalf("expected redacted api_key, got %q", decoded["api_key"])
	}
	if decoded["base_url"] != "https://api.example.com" {
		t.Fatalf("expected base_url preserved, got %q", decoded["base_url"])
	}

	list, err := svc.ListProviders()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var found bool
	for _, p := range list {
		if p.Name == "openai-stub" {
			found = true
			if !p.IsActive || !p.HasAuth {
				t.Fatalf("expected active+authed summary, got %+v", p)
			}
		}
	}
	if !found {
		t.Fatalf("expected openai-stub in listing")
	}
}

func TestMcpServerLifecycle(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))

	record, err := svc.AddMcpServer("sleepy", "sleep", []string{"30"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if record.Status != model.McpStopped {
		t.Fatalf("expected stopped, got %s", record.Status)
	}

	started, err := svc.StartMcpServer(record.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != model.McpRunning {
		t.Fatalf("expected running, got %s", started.Status)
	}

	stopped, err := svc.StopMcpServer(record.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stopped.Status != model.McpStopped {
		t.Fatalf("expected stopped, got %s", stopped.Status)
	}

	list, err := svc.ListMcpServers()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.McpStopped {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestMcpServerStartFailureRecordsReason(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))
	record, err := svc.AddMcpServer("broken", "/nonexistent/not-a-real-binary", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.StartMcpServer(record.ID); err == nil {
		t.Fatalf("expected start failure")
	}
	got, err := svc.store.GetMcpServer(record.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.McpStopped || got.FailureReason == "" {
		t.Fatalf("expected stopped with failure reason, got %+v", got)
	}
}

func TestSystemHealthWarnsOnNoActiveProvider(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))
	health, err := svc.SystemHealth()
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	found := false
	for _, w := range health.Warnings {
		if w == "no active provider selected" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected no-active-provider warning, got %+v", health.Warnings)
	}
}

func TestAuditListBySessionAndGetAudit(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))
	session, err := svc.CreateSession("")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	req := baseRequest()
	req.SessionID = session.ID
	if _, err := svc.ChatRequest(context.Background(), req); err != nil {
		t.Fatalf("chat request: %v", err)
	}

	entries, err := svc.ListAudit(session.ID, 0)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != session.ID {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}

	entry, err := svc.GetAudit(entries[0].AuditID)
	if err != nil {
		t.Fatalf("get audit: %v", err)
	}
	if entry.AuditID != entries[0].AuditID {
		t.Fatalf("mismatched audit id")
	}
}

func TestProjectOpenRejectsNonDirectory(t *testing.T) {
	svc := newTestService(t, fixedClock(1000))
	status, err := svc.OpenProject("/definitely/not/a/real/path")
	if err != nil {
		t.Fatalf("open project: %v", err)
	}
	if status.Exists {
		t.Fatalf("expected nonexistent path")
	}
}
