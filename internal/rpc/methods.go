package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wardenhq/warden/internal/agentservice"
	"github.com/wardenhq/warden/internal/model"
)

// BuildMethodTable wires every RPC method to svc. The returned table does
// not include "rpc.raw"; Dispatcher.Handle special-cases nested dispatch
// so the outer request id stays authoritative.
func BuildMethodTable(svc *agentservice.AgentService) MethodTable {
	t := MethodTable{}

	t["tools.list"] = func(json.RawMessage) (any, *Error) {
		return map[string]any{"tools": svc.ListTools()}, nil
	}

	t["chat.request"] = func(params json.RawMessage) (any, *Error) {
		var req model.ChatRequest
		if err := decode(params, &req); err != nil {
			return nil, invalidParams(err)
		}
		resp, err := svc.ChatRequest(context.Background(), req)
		if err != nil {
			return nil, internalError(err)
		}
		return resp, nil
	}

	t["chat.approve"] = consentTokenHandler(func(token string) (any, error) {
		return svc.ChatApprove(context.Background(), token)
	})
	t["chat.deny"] = consentTokenHandler(func(token string) (any, error) {
		return svc.ChatDeny(token)
	})
	// consent.approve/deny are aliases of chat.approve/deny keyed by
	// consent_id instead of consent_token.
	t["consent.approve"] = consentIDHandler(func(id string) (any, error) {
		return svc.ChatApprove(context.Background(), id)
	})
	t["consent.deny"] = consentIDHandler(func(id string) (any, error) {
		return svc.ChatDeny(id)
	})
	t["consent.list"] = func(json.RawMessage) (any, *Error) {
		records, err := svc.ListPendingConsents()
		if err != nil {
			return nil, internalError(err)
		}
		return map[string]any{"consents": records}, nil
	}

	t["sessions.create"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			Title string `json:"title"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		session, err := svc.CreateSession(p.Title)
		if err != nil {
			return nil, internalError(err)
		}
		return session, nil
	}
	t["sessions.list"] = func(json.RawMessage) (any, *Error) {
		summaries, err := svc.ListSessions()
		if err != nil {
			return nil, internalError(err)
		}
		return map[string]any{"sessions": summaries}, nil
	}
	t["sessions.get"] = idHandler(func(id string) (any, error) { return svc.GetSession(id) })
	t["sessions.delete"] = idHandler(func(id string) (any, error) {
		deleted, err := svc.DeleteSession(id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"deleted": deleted}, nil
	})
	t["sessions.messages.append"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			SessionID string             `json:"session_id"`
			Messages  []model.ChatMessage `json:"messages"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		session, err := svc.AppendSessionMessages(p.SessionID, p.Messages)
		if err != nil {
			return nil, internalError(err)
		}
		return session, nil
	}

	t["providers.list"] = func(json.RawMessage) (any, *Error) {
		providers, err := svc.ListProviders()
		if err != nil {
			return nil, internalError(err)
		}
		return map[string]any{"providers": providers}, nil
	}
	t["providers.set"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			Name string `json:"name"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := svc.SetActiveProvider(p.Name); err != nil {
			return nil, internalError(err)
		}
		return map[string]any{"active_provider": p.Name}, nil
	}
	t["providers.config.get"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			Name string `json:"name"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		cfg, err := svc.GetProviderConfig(p.Name)
		if err != nil {
			return nil, internalError(err)
		}
		return map[string]any{"name": p.Name, "config_json": cfg}, nil
	}
	t["providers.config.set"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			Name       string          `json:"name"`
			ConfigJSON json.RawMessage `json:"config_json"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if err := svc.SetProviderConfig(p.Name, p.ConfigJSON); err != nil {
			return nil, internalError(err)
		}
		return map[string]any{"name": p.Name}, nil
	}

	t["mcp.servers.list"] = func(json.RawMessage) (any, *Error) {
		servers, err := svc.ListMcpServers()
		if err != nil {
			return nil, internalError(err)
		}
		return map[string]any{"servers": servers}, nil
	}
	t["mcp.servers.add"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			Name    string   `json:"name"`
			Command string   `json:"command"`
			Args    []string `json:"args"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		server, err := svc.AddMcpServer(p.Name, p.Command, p.Args)
		if err != nil {
			return nil, internalError(err)
		}
		return server, nil
	}
	t["mcp.servers.remove"] = idHandler(func(id string) (any, error) {
		removed, err := svc.RemoveMcpServer(id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": removed}, nil
	})
	t["mcp.servers.start"] = idHandler(func(id string) (any, error) { return svc.StartMcpServer(id) })
	t["mcp.servers.stop"] = idHandler(func(id string) (any, error) { return svc.StopMcpServer(id) })

	t["project.open"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			Path string `json:"path"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		status, err := svc.OpenProject(p.Path)
		if err != nil {
			return nil, internalError(err)
		}
		return status, nil
	}
	t["project.status"] = func(json.RawMessage) (any, *Error) {
		status, err := svc.ProjectStatusReport()
		if err != nil {
			return nil, internalError(err)
		}
		return status, nil
	}

	t["audit.list"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			SessionID string `json:"session_id"`
			Limit     int    `json:"limit"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		entries, err := svc.ListAudit(p.SessionID, p.Limit)
		if err != nil {
			return nil, internalError(err)
		}
		return map[string]any{"entries": entries}, nil
	}
	t["audit.get"] = func(params json.RawMessage) (any, *Error) {
		var p struct {
			AuditID string `json:"audit_id"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		entry, err := svc.GetAudit(p.AuditID)
		if err != nil {
			return nil, internalError(err)
		}
		return entry, nil
	}

	t["system.health"] = func(json.RawMessage) (any, *Error) {
		health, err := svc.SystemHealth()
		if err != nil {
			return nil, internalError(err)
		}
		return health, nil
	}

	return t
}

func decode(params json.RawMessage, dst any) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, dst)
}

func invalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: err.Error()}
}

func internalError(err error) *Error {
	if domain := domainCode(err); domain != "" {
		return DomainError(domain)
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

// domainCode maps the agentservice sentinel/typed errors to the stable
// programmatic codes carried on the wire as -32000 domain errors with the
// code as message. Anything else falls through to -32603.
func domainCode(err error) string {
	var notPending *agentservice.NotPendingError
	switch {
	case errors.Is(err, agentservice.ErrConsentNotFound):
		return "consent_not_found"
	case errors.Is(err, agentservice.ErrConsentExpired):
		return "consent_expired"
	case errors.As(err, &notPending):
		return notPending.Error()
	}
	return ""
}

func idHandler(fn func(id string) (any, error)) Handler {
	return func(params json.RawMessage) (any, *Error) {
		var p struct {
			ID string `json:"id"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		result, err := fn(p.ID)
		if err != nil {
			return nil, internalError(err)
		}
		return result, nil
	}
}

func consentTokenHandler(fn func(token string) (any, error)) Handler {
	return func(params json.RawMessage) (any, *Error) {
		var p struct {
			ConsentToken string `json:"consent_token"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if p.ConsentToken == "" {
			return nil, &Error{Code: CodeInvalidParams, Message: "consent_token is required"}
		}
		result, err := fn(p.ConsentToken)
		if err != nil {
			return nil, internalError(err)
		}
		return result, nil
	}
}

func consentIDHandler(fn func(id string) (any, error)) Handler {
	return func(params json.RawMessage) (any, *Error) {
		var p struct {
			ConsentID string `json:"consent_id"`
		}
		if err := decode(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if p.ConsentID == "" {
			return nil, &Error{Code: CodeInvalidParams, Message: "consent_id is required"}
		}
		result, err := fn(p.ConsentID)
		if err != nil {
			return nil, internalError(err)
		}
		return result, nil
	}
}
