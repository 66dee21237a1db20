package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/wardenhq/warden/internal/model"
)

// ErrNotFound is returned when a keyed lookup misses.
var ErrNotFound = fmt.Errorf("not found")

// Store is the durable JSON persistence layer for one project's agent-core
// state: sessions, audit entries, pending consents, provider configuration,
// MCP server registry, and project state. Each collection lives in its own
// file under Dir, written through the lock/tmp/rename protocol of
// lock.go/jsonfile.go. An in-process mutex per collection serializes
// read-modify-write sequences within a single process; the sidecar lock
// file serializes writers across processes.
type Store struct {
	dir string

	sessionsMu sync.Mutex
	auditMu    sync.Mutex
	consentsMu sync.Mutex
	providerMu sync.Mutex
	mcpMu      sync.Mutex
	projectMu  sync.Mutex

	log *slog.Logger
}

// New returns a Store rooted at dir. The directory is created lazily on
// first write.
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{dir: dir, log: log.With("component", "store")}
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

// --- sessions ---

func (s *Store) ListSessions() ([]model.Session, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return s.readSessions()
}

func (s *Store) readSessions() ([]model.Session, error) {
	var sessions []model.Session
	if err := readJSONFile(s.path("sessions.json"), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSessionSummaries returns sessions sorted by updated_at descending.
func (s *Store) ListSessionSummaries() ([]model.SessionSummary, error) {
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, err
	}
	out := make([]model.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, model.SessionSummary{
			ID:           sess.ID,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
			Title:        sess.Title,
			MessageCount: len(sess.Messages),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out, nil
}

func (s *Store) GetSession(id string) (model.Session, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sessions, err := s.readSessions()
	if err != nil {
		return model.Session{}, err
	}
	for _, sess := range sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	return model.Session{}, ErrNotFound
}

// PutSession inserts or replaces the session with the same ID.
func (s *Store) PutSession(session model.Session) error {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sessions, err := s.readSessions()
	if err != nil {
		return err
	}
	replaced := false
	for i, sess := range sessions {
		if sess.ID == session.ID {
			sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, session)
	}
	return writeJSONFile(s.path("sessions.json"), sessions)
}

// DeleteSession removes the session with id. deleted reports whether any
// record was removed.
func (s *Store) DeleteSession(id string) (deleted bool, err error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	sessions, err := s.readSessions()
	if err != nil {
		return false, err
	}
	out := make([]model.Session, 0, len(sessions))
	for _, sess := range sessions {
		if sess.ID == id {
			deleted = true
			continue
		}
		out = append(out, sess)
	}
	if !deleted {
		return false, nil
	}
	if err := writeJSONFile(s.path("sessions.json"), out); err != nil {
		return false, err
	}
	return true, nil
}

// --- audit ---

func (s *Store) ListAudit() ([]model.AuditEntry, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	return s.readAudit()
}

func (s *Store) readAudit() ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	if err := readJSONFile(s.path("audit.json"), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) GetAudit(id string) (model.AuditEntry, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	entries, err := s.readAudit()
	if err != nil {
		return model.AuditEntry{}, err
	}
	for _, e := range entries {
		if e.AuditID == id {
			return e, nil
		}
	}
	return model.AuditEntry{}, ErrNotFound
}

// AppendAudit appends one entry. The audit log is append-only.
func (s *Store) AppendAudit(entry model.AuditEntry) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	entries, err := s.readAudit()
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	return writeJSONFile(s.path("audit.json"), entries)
}

// --- pending consents ---

func (s *Store) ListPendingConsents() ([]model.PendingConsentRecord, error) {
	s.consentsMu.Lock()
	defer s.consentsMu.Unlock()
	return s.readPendingConsents()
}

func (s *Store) readPendingConsents() ([]model.PendingConsentRecord, error) {
	var records []model.PendingConsentRecord
	if err := readJSONFile(s.path("pending_consents.json"), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) GetPendingConsent(id string) (model.PendingConsentRecord, error) {
	s.consentsMu.Lock()
	defer s.consentsMu.Unlock()
	records, err := s.readPendingConsents()
	if err != nil {
		return model.PendingConsentRecord{}, err
	}
	for _, r := range records {
		if r.ConsentID == id {
			return r, nil
		}
	}
	return model.PendingConsentRecord{}, ErrNotFound
}

func (s *Store) PutPendingConsent(record model.PendingConsentRecord) error {
	s.consentsMu.Lock()
	defer s.consentsMu.Unlock()
	records, err := s.readPendingConsents()
	if err != nil {
		return err
	}
	replaced := false
	for i, r := range records {
		if r.ConsentID == record.ConsentID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}
	return writeJSONFile(s.path("pending_consents.json"), records)
}

// --- providers ---

func (s *Store) ReadProviderState() (model.ProviderState, error) {
	s.providerMu.Lock()
	defer s.providerMu.Unlock()
	return s.readProviderState()
}

func (s *Store) readProviderState() (model.ProviderState, error) {
	var state model.ProviderState
	if err := readJSONFile(s.path("providers.json"), &state); err != nil {
		return model.ProviderState{}, err
	}
	if state.Configs == nil {
		state.Configs = map[string]json.RawMessage{}
	}
	return state, nil
}

// WriteProviderState persists the full provider configuration set.
func (s *Store) WriteProviderState(state model.ProviderState) error {
	s.providerMu.Lock()
	defer s.providerMu.Unlock()
	return writeJSONFile(s.path("providers.json"), state)
}

// --- mcp servers ---

func (s *Store) ListMcpServers() ([]model.McpServerRecord, error) {
	s.mcpMu.Lock()
	defer s.mcpMu.Unlock()
	return s.readMcpServers()
}

func (s *Store) readMcpServers() ([]model.McpServerRecord, error) {
	var records []model.McpServerRecord
	if err := readJSONFile(s.path("mcp_servers.json"), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) GetMcpServer(id string) (model.McpServerRecord, error) {
	s.mcpMu.Lock()
	defer s.mcpMu.Unlock()
	records, err := s.readMcpServers()
	if err != nil {
		return model.McpServerRecord{}, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
	}
	return model.McpServerRecord{}, ErrNotFound
}

func (s *Store) PutMcpServer(record model.McpServerRecord) error {
	s.mcpMu.Lock()
	defer s.mcpMu.Unlock()
	records, err := s.readMcpServers()
	if err != nil {
		return err
	}
	replaced := false
	for i, r := range records {
		if r.ID == record.ID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}
	return writeJSONFile(s.path("mcp_servers.json"), records)
}

func (s *Store) DeleteMcpServer(id string) (bool, error) {
	s.mcpMu.Lock()
	defer s.mcpMu.Unlock()
	records, err := s.readMcpServers()
	if err != nil {
		return false, err
	}
	out := make([]model.McpServerRecord, 0, len(records))
	deleted := false
	for _, r := range records {
		if r.ID == id {
			deleted = true
			continue
		}
		out = append(out, r)
	}
	if !deleted {
		return false, nil
	}
	return true, writeJSONFile(s.path("mcp_servers.json"), out)
}

// --- project ---

func (s *Store) ReadProjectState() (model.ProjectState, error) {
	s.projectMu.Lock()
	defer s.projectMu.Unlock()
	var state model.ProjectState
	if err := readJSONFile(s.path("project.json"), &state); err != nil {
		return model.ProjectState{}, err
	}
	return state, nil
}

func (s *Store) WriteProjectState(state model.ProjectState) error {
	s.projectMu.Lock()
	defer s.projectMu.Unlock()
	return writeJSONFile(s.path("project.json"), state)
}
