// Package agentservice implements the stateful outer shell of the agent
// core: session persistence, the pending-consent lifecycle with TTL and
// single-use semantics, MCP subprocess lifecycle, provider activation, and
// system health. It is the component the RPC dispatch table (internal/rpc)
// calls into; it owns a Store, a ToolRegistry, a provider.Registry, and
// the mcp.Manager child table, rebuilding an Orchestrator per call so
// provider/backend configuration always reflects current state.
package agentservice

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/wardenhq/warden/internal/backend"
	"github.com/wardenhq/warden/internal/idgen"
	"github.com/wardenhq/warden/internal/mcp"
	"github.com/wardenhq/warden/internal/metrics"
	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/provider"
	"github.com/wardenhq/warden/internal/registry"
	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/internal/tracing"
)

// ConsentTTLSeconds is the default lazily-enforced pending-consent
// lifetime.
const ConsentTTLSeconds = 300

// AgentService is the single entrypoint the RPC layer drives. mu
// serializes every public method, so a multi-threaded transport sharing
// one instance still sees single-threaded-per-request semantics.
type AgentService struct {
	mu sync.Mutex

	store          *store.Store
	registry       *registry.Registry
	providers      *provider.Registry
	mcpManager     *mcp.Manager
	projectRoot    string
	defaultProject string
	log            *slog.Logger
	metrics        *metrics.Metrics
	tracer         *tracing.Tracer

	sessionCounter *idgen.Counter
	consentCounter *idgen.Counter
	auditCounter   *idgen.Counter
	mcpCounter     *idgen.Counter

	consentTTL int64
	nowFn      func() int64
}

// Clock lets tests and callers supply a deterministic time source
// (cmd/warden passes one returning time.Now().Unix()); New treats a nil
// Clock as one that always returns 0.
type Clock func() int64

// New constructs an AgentService, rehydrating monotonic counters from
// the store's persisted records and normalizing any stale
// mcp.status=="running" left over from a prior process to "stopped".
func New(st *store.Store, reg *registry.Registry, providers *provider.Registry, defaultProjectRoot string, log *slog.Logger, now Clock) (*AgentService, error) {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = func() int64 { return 0 }
	}

	svc := &AgentService{
		store:          st,
		registry:       reg,
		providers:      providers,
		mcpManager:     mcp.NewManager(),
		projectRoot:    defaultProjectRoot,
		defaultProject: defaultProjectRoot,
		log:            log.With("component", "agentservice"),
		consentTTL:     ConsentTTLSeconds,
		nowFn:          now,
	}

	if err := svc.rehydrateCounters(); err != nil {
		return nil, fmt.Errorf("rehydrate counters: %w", err)
	}
	if err := svc.normalizeStaleMcpStatus(); err != nil {
		return nil, fmt.Errorf("normalize mcp status: %w", err)
	}

	if state, err := st.ReadProjectState(); err == nil && state.OpenPath != "" {
		svc.projectRoot = state.OpenPath
	}

	return svc, nil
}

func (s *AgentService) now() int64 { return s.nowFn() }

// SetConsentTTL overrides the default pending-consent lifetime. Values <= 0
// keep the default.
func (s *AgentService) SetConsentTTL(seconds int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seconds > 0 {
		s.consentTTL = seconds
	}
}

// backendFor returns the ActionBackend rooted at the current project root.
func (s *AgentService) backendFor() backend.Backend {
	return backend.NewDispatcher(s.projectRoot)
}

func maxSuffix(ids []string, prefix string) uint64 {
	var max uint64
	for _, id := range ids {
		rest := strings.TrimPrefix(id, prefix+"-")
		if rest == id {
			continue
		}
		// A salted id looks like "<prefix>-<salt>-NNNNNN"; only the final
		// dash-delimited segment is the numeric suffix.
		parts := strings.Split(rest, "-")
		n, err := strconv.ParseUint(parts[len(parts)-1], 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}

func (s *AgentService) rehydrateCounters() error {
	sessions, err := s.store.ListSessions()
	if err != nil {
		return err
	}
	sessionIDs := make([]string, len(sessions))
	for i, sess := range sessions {
		sessionIDs[i] = sess.ID
	}
	s.sessionCounter = idgen.NewCounter("sess", maxSuffix(sessionIDs, "sess"))

	consents, err := s.store.ListPendingConsents()
	if err != nil {
		return err
	}
	consentIDs := make([]string, len(consents))
	for i, c := range consents {
		consentIDs[i] = c.ConsentID
	}
	s.consentCounter = idgen.NewCounter("consent", maxSuffix(consentIDs, "consent"))

	audits, err := s.store.ListAudit()
	if err != nil {
		return err
	}
	auditIDs := make([]string, len(audits))
	for i, a := range audits {
		auditIDs[i] = a.AuditID
	}
	s.auditCounter = idgen.NewCounter("audit", maxSuffix(auditIDs, "audit"))

	servers, err := s.store.ListMcpServers()
	if err != nil {
		return err
	}
	mcpIDs := make([]string, len(servers))
	for i, m := range servers {
		mcpIDs[i] = m.ID
	}
	s.mcpCounter = idgen.NewCounter("mcp", maxSuffix(mcpIDs, "mcp"))

	return nil
}

// normalizeStaleMcpStatus resets any on-disk status=="running" to
// "stopped" on fresh process start, since no live child handle can have
// survived the prior process exiting.
func (s *AgentService) normalizeStaleMcpStatus() error {
	servers, err := s.store.ListMcpServers()
	if err != nil {
		return err
	}
	for _, rec := range servers {
		if rec.Status == model.McpRunning {
			rec.Status = model.McpStopped
			rec.FailureReason = ""
			if err := s.store.PutMcpServer(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// Shutdown stops every tracked MCP child: the AgentService owns every
// child it spawned and stops them all on teardown.
func (s *AgentService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mcpManager.StopAll()
}
