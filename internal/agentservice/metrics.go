package agentservice

import (
	"github.com/wardenhq/warden/internal/metrics"
	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/tracing"
)

// SetTracer attaches an optional tracer that buildOrchestrator wires into
// every Orchestrator it constructs. Nil (the default) disables span
// emission.
func (s *AgentService) SetTracer(t *tracing.Tracer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracer = t
}

// SetMetrics attaches an optional metrics.Metrics sink. Nil (the default)
// disables instrumentation entirely; AgentService never requires metrics
// to function.
func (s *AgentService) SetMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

func (s *AgentService) recordToolRounds(resp model.ChatResponse) {
	if s.metrics == nil {
		return
	}
	s.metrics.ToolRounds.Observe(float64(len(resp.ActionEvents)))
	for _, e := range resp.ProposedActions {
		s.metrics.ToolExecutions.WithLabelValues(e.ToolName, string(e.Status)).Inc()
	}
	for _, e := range resp.ExecutedActionEvents {
		s.metrics.ToolExecutions.WithLabelValues(e.ToolName, string(e.Status)).Inc()
	}
}

func (s *AgentService) recordConsentResolution(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ConsentResolutions.WithLabelValues(outcome).Inc()
}

func (s *AgentService) refreshGauges() {
	if s.metrics == nil {
		return
	}
	if records, err := s.store.ListPendingConsents(); err == nil {
		count := 0
		for _, r := range records {
			if r.Status == model.ConsentPending {
				count++
			}
		}
		s.metrics.PendingConsents.Set(float64(count))
	}
	if servers, err := s.store.ListMcpServers(); err == nil {
		running := 0
		for _, rec := range servers {
			if rec.Status == model.McpRunning {
				running++
			}
		}
		s.metrics.McpRunning.Set(float64(running))
	}
}
