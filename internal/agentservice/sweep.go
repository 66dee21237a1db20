package agentservice

import "github.com/wardenhq/warden/internal/model"

// SweepExpiredConsents marks every pending consent past its expires_at as
// expired and returns how many were transitioned. This is the janitor's
// scheduled supplement to the lazy on-read TTL check in resolvePending;
// the janitor just makes that check happen even without a caller.
func (s *AgentService) SweepExpiredConsents() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.ListPendingConsents()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range records {
		if r.Status == model.ConsentPending && s.now() > r.ExpiresAt {
			r.Status = model.ConsentExpired
			if err := s.store.PutPendingConsent(r); err != nil {
				return count, err
			}
			count++
		}
	}
	s.refreshGauges()
	return count, nil
}

// SweepExitedMcpServers reaps exited MCP children and downgrades their
// persisted status to stopped, returning how many were reaped. Supplements
// the on-read reap sweep performed by ListMcpServers/SystemHealth.
func (s *AgentService) SweepExitedMcpServers() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exited := s.mcpManager.Reap()
	for _, id := range exited {
		rec, err := s.store.GetMcpServer(id)
		if err != nil {
			continue
		}
		if rec.Status == model.McpRunning {
			rec.Status = model.McpStopped
			if err := s.store.PutMcpServer(rec); err != nil {
				return len(exited), err
			}
		}
	}
	if len(exited) > 0 {
		s.refreshGauges()
	}
	return len(exited), nil
}
