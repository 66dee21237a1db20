package agentservice

import (
	"fmt"

	"github.com/wardenhq/warden/internal/model"
)

// AddMcpServer persists a new MCP server record with status=stopped.
func (s *AgentService) AddMcpServer(name, command string, args []string) (model.McpServerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := model.McpServerRecord{
		ID:      s.mcpCounter.Next(),
		Name:    name,
		Command: command,
		Args:    args,
		Status:  model.McpStopped,
	}
	if err := s.store.PutMcpServer(record); err != nil {
		return model.McpServerRecord{}, err
	}
	return record, nil
}

// StartMcpServer spawns the named server's command with stdio nulled and
// marks it running. On spawn failure the record stays stopped with
// FailureReason set.
func (s *AgentService) StartMcpServer(id string) (model.McpServerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.GetMcpServer(id)
	if err != nil {
		return model.McpServerRecord{}, err
	}

	failureReason, spawnErr := s.mcpManager.Start(id, record.Command, record.Args)
	if spawnErr != nil {
		record.Status = model.McpStopped
		record.FailureReason = failureReason
		_ = s.store.PutMcpServer(record)
		return model.McpServerRecord{}, fmt.Errorf("start mcp server %q: %w", id, spawnErr)
	}

	record.Status = model.McpRunning
	record.FailureReason = ""
	if err := s.store.PutMcpServer(record); err != nil {
		return model.McpServerRecord{}, err
	}
	s.refreshGauges()
	return record, nil
}

// StopMcpServer kills and waits the tracked child, then marks the record
// stopped.
func (s *AgentService) StopMcpServer(id string) (model.McpServerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.store.GetMcpServer(id)
	if err != nil {
		return model.McpServerRecord{}, err
	}
	if err := s.mcpManager.Stop(id); err != nil {
		return model.McpServerRecord{}, err
	}
	record.Status = model.McpStopped
	if err := s.store.PutMcpServer(record); err != nil {
		return model.McpServerRecord{}, err
	}
	s.refreshGauges()
	return record, nil
}

// RemoveMcpServer deletes the record, first stopping any tracked child.
func (s *AgentService) RemoveMcpServer(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.mcpManager.Stop(id)
	return s.store.DeleteMcpServer(id)
}

// ListMcpServers performs a non-blocking reap sweep (downgrading any
// exited child's persisted status to stopped) before returning the full
// registry.
func (s *AgentService) ListMcpServers() ([]model.McpServerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listMcpServersLocked()
}

// listMcpServersLocked is the reap-then-list body shared with
// SystemHealth. Caller must hold s.mu.
func (s *AgentService) listMcpServersLocked() ([]model.McpServerRecord, error) {
	exited := s.mcpManager.Reap()
	if len(exited) > 0 {
		exitedSet := make(map[string]bool, len(exited))
		for _, id := range exited {
			exitedSet[id] = true
		}
		records, err := s.store.ListMcpServers()
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if exitedSet[rec.ID] && rec.Status == model.McpRunning {
				rec.Status = model.McpStopped
				if err := s.store.PutMcpServer(rec); err != nil {
					return nil, err
				}
			}
		}
	}
	return s.store.ListMcpServers()
}
