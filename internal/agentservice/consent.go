package agentservice

import "github.com/wardenhq/warden/internal/model"

// ListPendingConsents returns every pending-consent record with the lazy
// TTL check applied, for consent.list. Terminal
// records (approved/denied/expired) are included so callers can audit
// recent resolutions, not just what's still actionable.
func (s *AgentService) ListPendingConsents() ([]model.PendingConsentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.ListPendingConsents()
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		if r.Status == model.ConsentPending && s.now() > r.ExpiresAt {
			r.Status = model.ConsentExpired
			_ = s.store.PutPendingConsent(r)
			records[i] = r
		}
	}
	return records, nil
}
