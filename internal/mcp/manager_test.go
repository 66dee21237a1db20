package mcp

import (
	"testing"
	"time"
)

func TestStartTracksRunningChild(t *testing.T) {
	m := NewManager()
	if _, err := m.Start("mcp-1", "sleep", []string{"5"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.Tracked("mcp-1") {
		t.Fatal("expected mcp-1 to be tracked as running")
	}
	if err := m.Stop("mcp-1"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if m.Tracked("mcp-1") {
		t.Fatal("expected mcp-1 untracked after stop")
	}
}

func TestStartReportsSpawnFailure(t *testing.T) {
	m := NewManager()
	reason, err := m.Start("mcp-2", "/no/such/binary-warden-test", nil)
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if reason == "" {
		t.Fatal("expected non-empty failure reason")
	}
}

func TestReapRemovesExitedChildren(t *testing.T) {
	m := NewManager()
	if _, err := m.Start("mcp-3", "true", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Allow the short-lived "true" process to exit.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if exited := m.Reap(); len(exited) > 0 {
			if exited[0] != "mcp-3" {
				t.Fatalf("expected mcp-3 reaped, got %v", exited)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected mcp-3 to be reaped within deadline")
}

func TestStopOnUntrackedIDIsNoOp(t *testing.T) {
	m := NewManager()
	if err := m.Stop("never-started"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestStopAllStopsEveryChild(t *testing.T) {
	m := NewManager()
	if _, err := m.Start("mcp-a", "sleep", []string{"5"}); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if _, err := m.Start("mcp-b", "sleep", []string{"5"}); err != nil {
		t.Fatalf("start b: %v", err)
	}
	m.StopAll()
	if m.Tracked("mcp-a") || m.Tracked("mcp-b") {
		t.Fatal("expected all children untracked after StopAll")
	}
}
