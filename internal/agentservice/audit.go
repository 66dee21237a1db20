package agentservice

import (
	"sort"

	"github.com/wardenhq/warden/internal/model"
)

// ListAudit filters by sessionID (empty matches all), sorts by timestamp
// descending, and honors limit (0 means unbounded).
func (s *AgentService) ListAudit(sessionID string, limit int) ([]model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.ListAudit()
	if err != nil {
		return nil, err
	}

	filtered := make([]model.AuditEntry, 0, len(entries))
	for _, e := range entries {
		if sessionID != "" && e.SessionID != sessionID {
			continue
		}
		filtered = append(filtered, e)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Timestamp > filtered[j].Timestamp })

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// GetAudit returns a single audit entry by id.
func (s *AgentService) GetAudit(auditID string) (model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.GetAudit(auditID)
}
