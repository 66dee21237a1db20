// Package janitor schedules the periodic sweep that supplements (never
// replaces) the lazy on-read expiry checks: pending consents past
// expires_at get marked expired, and exited MCP children get reaped, on a
// fixed cadence even if nothing ever calls chat.approve or
// mcp.servers.list in between.
package janitor

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper is the subset of AgentService the janitor drives. It is small
// and unexported-shape-agnostic so internal/agentservice doesn't need to
// import this package (avoiding an import cycle) while the janitor still
// type-checks against AgentService's exported sweep methods.
type Sweeper interface {
	SweepExpiredConsents() (int, error)
	SweepExitedMcpServers() (int, error)
}

// Janitor runs Sweeper.Sweep* on a cron schedule.
type Janitor struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New builds a Janitor that runs both sweeps on spec (a standard 5-field
// cron expression such as "*/1 * * * *", or a descriptor such as
// "@every 30s", the config default). It does not start until Start is
// called.
func New(spec string, sweeper Sweeper, log *slog.Logger) (*Janitor, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "janitor")

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if n, err := sweeper.SweepExpiredConsents(); err != nil {
			log.Error("consent sweep failed", "error", err)
		} else if n > 0 {
			log.Info("expired pending consents", "count", n)
		}
		if n, err := sweeper.SweepExitedMcpServers(); err != nil {
			log.Error("mcp reap sweep failed", "error", err)
		} else if n > 0 {
			log.Info("reaped exited mcp servers", "count", n)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Janitor{cron: c, log: log}, nil
}

// Start begins running the cron schedule in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for any in-flight run to finish.
func (j *Janitor) Stop() { <-j.cron.Stop().Done() }
