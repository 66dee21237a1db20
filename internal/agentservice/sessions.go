package agentservice

import (
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal/model"
)

// CreateSession mints a session id, defaulting the title to "Session <N>"
// when none is given.
func (s *AgentService) CreateSession(title string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.sessionCounter.Next()
	if title == "" {
		parts := strings.Split(id, "-")
		title = fmt.Sprintf("Session %s", strings.TrimLeft(parts[len(parts)-1], "0"))
	}
	now := s.now()
	session := model.Session{ID: id, CreatedAt: now, UpdatedAt: now, Title: title}
	if err := s.store.PutSession(session); err != nil {
		return model.Session{}, err
	}
	return session, nil
}

// ListSessions returns summaries sorted by updated_at descending.
func (s *AgentService) ListSessions() ([]model.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ListSessionSummaries()
}

// GetSession returns the full session, including message history.
func (s *AgentService) GetSession(id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetSession(id)
}

// DeleteSession removes a session. Deletion is idempotent.
func (s *AgentService) DeleteSession(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeleteSession(id)
}

// AppendSessionMessages appends messages to an existing session, bumping
// updated_at, without running the orchestrator (the messages.append RPC
// method; distinct from chat.request, which also drives a chat turn).
func (s *AgentService) AppendSessionMessages(id string, messages []model.ChatMessage) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendToSession(id, messages); err != nil {
		return model.Session{}, err
	}
	return s.store.GetSession(id)
}

// appendToSession appends messages to session id and bumps updated_at.
// Caller must hold s.mu.
func (s *AgentService) appendToSession(id string, messages []model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	session, err := s.store.GetSession(id)
	if err != nil {
		return err
	}
	session.Messages = append(session.Messages, messages...)
	session.UpdatedAt = s.now()
	return s.store.PutSession(session)
}

// appendAssistantMessage appends the final assistant reply of a chat turn
// to its bound session. Caller must hold s.mu.
func (s *AgentService) appendAssistantMessage(sessionID, text string) error {
	return s.appendToSession(sessionID, []model.ChatMessage{{Role: model.RoleAssistant, Content: text}})
}
