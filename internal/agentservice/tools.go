package agentservice

import "github.com/wardenhq/warden/internal/model"

// ListTools enumerates the static tool descriptors (tools.list).
func (s *AgentService) ListTools() []model.Tool {
	return s.registry.List()
}
