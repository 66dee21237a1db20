package idgen

import "testing"

func TestNextIsSequentialAndUnsalted(t *testing.T) {
	c := NewCounter("sess", 0)
	if got := c.Next(); got != "sess-000001" {
		t.Fatalf("expected sess-000001, got %q", got)
	}
	if got := c.Next(); got != "sess-000002" {
		t.Fatalf("expected sess-000002, got %q", got)
	}
}

func TestNewCounterResumesFromStart(t *testing.T) {
	c := NewCounter("audit", 41)
	if got := c.Next(); got != "audit-000042" {
		t.Fatalf("expected audit-000042, got %q", got)
	}
}

func TestSaltedCounterIncludesSalt(t *testing.T) {
	c := NewSaltedCounter("mcp", 0)
	got := c.Next()
	want := "mcp-" + processSalt() + "-000001"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCountersWithDifferentPrefixesAreIndependent(t *testing.T) {
	sess := NewCounter("sess", 0)
	consent := NewCounter("consent", 0)
	if sess.Next() == consent.Next() {
		t.Fatalf("expected distinct ids across counters")
	}
}
