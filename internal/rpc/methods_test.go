package rpc

import (
	"encoding/json"
	"testing"

	"github.com/wardenhq/warden/internal/agentservice"
	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/provider"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/store"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	st := store.New(t.TempDir(), nil)
	reg := registry.NewDefault()
	providers := provider.NewRegistry()
	providers.Register("openai-stub", func(model.ProviderConfig) (provider.Provider, error) {
		return provider.NewStubProvider("openai-stub"), nil
	})

	svc, err := agentservice.New(st, reg, providers, t.TempDir(), nil, func() int64 { return 1000 })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return NewDispatcher(BuildMethodTable(svc))
}

func call(t *testing.T, d *Dispatcher, method string, params any) Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = b
	}
	req, err := json.Marshal(Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: raw})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(d.Handle(req), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestToolsListReturnsBuiltins(t *testing.T) {
	d := newTestDispatcher(t)
	resp := call(t, d, "tools.list", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	out, _ := json.Marshal(resp.Result)
	var decoded struct {
		Tools []model.Tool `json:"tools"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Tools) == 0 {
		t.Fatalf("expected built-in tools")
	}
}

func TestChatRequestThenConsentApproveViaRPC(t *testing.T) {
	d := newTestDispatcher(t)
	req := model.ChatRequest{
		Messages:       []model.ChatMessage{{Role: model.RoleUser, Content: "please activate Browser"}},
		ProviderConfig: model.ProviderConfig{ProviderName: "openai-stub"},
		Mode:           model.ModeRequireConfirmation,
	}
	resp := call(t, d, "chat.request", req)
	if resp.Error != nil {
		t.Fatalf("chat.request error: %+v", resp.Error)
	}
	out, _ := json.Marshal(resp.Result)
	var chatResp model.ChatResponse
	if err := json.Unmarshal(out, &chatResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if chatResp.ExecutionState != model.ExecutionAwaitingConsent {
		t.Fatalf("expected awaiting_consent, got %s", chatResp.ExecutionState)
	}

	approveResp := call(t, d, "consent.approve", map[string]string{"consent_id": chatResp.ConsentToken})
	if approveResp.Error != nil {
		t.Fatalf("consent.approve error: %+v", approveResp.Error)
	}
}

func TestConsentApproveUnknownIDReturnsDomainError(t *testing.T) {
	d := newTestDispatcher(t)
	resp := call(t, d, "consent.approve", map[string]string{"consent_id": "consent-999999"})
	if resp.Error == nil || resp.Error.Code != CodeDomainError || resp.Error.Message != "consent_not_found" {
		t.Fatalf("expected consent_not_found domain error, got %+v", resp.Error)
	}
}

func TestSystemHealthViaRPC(t *testing.T) {
	d := newTestDispatcher(t)
	resp := call(t, d, "system.health", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestRPCRawNestedDispatchUsesOuterID(t *testing.T) {
	d := newTestDispatcher(t)
	inner, _ := json.Marshal(Request{JSONRPC: "2.0", ID: json.RawMessage(`99`), Method: "tools.list"})
	outer, _ := json.Marshal(Request{JSONRPC: "2.0", ID: json.RawMessage(`"outer-id"`), Method: "rpc.raw", Params: inner})

	var decoded Response
	if err := json.Unmarshal(d.Handle(outer), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(decoded.ID) != `"outer-id"` {
		t.Fatalf("expected outer id to be authoritative, got %s", decoded.ID)
	}
}

func TestRPCRawRejectsNestedRaw(t *testing.T) {
	d := newTestDispatcher(t)
	inner, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "rpc.raw"})
	outer, _ := json.Marshal(Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "rpc.raw", Params: inner})

	var decoded Response
	if err := json.Unmarshal(d.Handle(outer), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ := json.Marshal(decoded.Result)
	var innerResp Response
	if err := json.Unmarshal(out, &innerResp); err != nil {
		t.Fatalf("decode nested response: %v", err)
	}
	if innerResp.Error == nil || innerResp.Error.Code != CodeInvalidParams {
		t.Fatalf("expected nested rpc.raw to be rejected, got %+v", innerResp.Error)
	}
}
