// Package idgen mints the monotonic, prefixed IDs the AgentService issues:
// sess-, consent-, audit-, mcp-. Counters are rehydrated from the highest
// persisted suffix at startup. Counter-minted IDs are unique only within a
// process; the salted variant mixes in a process-epoch UUID so multiple
// AgentService processes sharing one store directory don't collide.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Counter mints sequential "<prefix>-NNNNNN" ids, optionally salted with a
// short process-epoch token to avoid cross-process collisions.
type Counter struct {
	prefix string
	salt   string
	value  atomic.Uint64
}

// NewCounter returns a Counter that starts minting after start (i.e. the
// first Next() call returns start+1). Pass the highest suffix observed in
// the persisted collection at startup.
func NewCounter(prefix string, start uint64) *Counter {
	return newCounter(prefix, start, "")
}

// NewSaltedCounter is like NewCounter but mixes a short process-epoch salt
// into every minted id.
func NewSaltedCounter(prefix string, start uint64) *Counter {
	return newCounter(prefix, start, processSalt())
}

func newCounter(prefix string, start uint64, salt string) *Counter {
	c := &Counter{prefix: prefix, salt: salt}
	c.value.Store(start)
	return c
}

// Next mints and returns the next id in sequence.
func (c *Counter) Next() string {
	n := c.value.Add(1)
	if c.salt != "" {
		return fmt.Sprintf("%s-%s-%06d", c.prefix, c.salt, n)
	}
	return fmt.Sprintf("%s-%06d", c.prefix, n)
}

var salt = uuid.NewString()[:8]

// processSalt returns a short token stable for the lifetime of this
// process, derived once at package init.
func processSalt() string { return salt }
