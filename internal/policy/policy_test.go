package policy

import "testing"

func TestClassifyTier(t *testing.T) {
	cases := []struct {
		name string
		want Tier
	}{
		{"desktop.app.activate", TierSystemActions},
		{"desktop.app.list", TierLocalActions},
		{"file.write_text", TierLocalActions},
		{"file.append_text", TierLocalActions},
		{"file.mkdir", TierLocalActions},
		{"file.read_text", TierReadOnly},
		{"time.now", TierReadOnly},
		{"math.eval", TierReadOnly},
		{"text.search", TierReadOnly},
		{"echo", TierReadOnly},
		{"desktop.screenshot", TierLocalActions},
		{"android.tap", TierLocalActions},
		{"ios.swipe", TierLocalActions},
		{"shell.exec", TierSystemActions},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier, denied := ClassifyTier(tc.name)
			if denied != nil {
				t.Fatalf("unexpected denial for %s: %+v", tc.name, denied)
			}
			if tier != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, tier)
			}
		})
	}
}

func TestClassifyTierDeniesInternalPrefix(t *testing.T) {
	_, denied := ClassifyTier("internal.debug")
	if denied == nil || denied.Outcome != Deny {
		t.Fatalf("expected internal.* denied, got %+v", denied)
	}
	if denied.Reason != "internal.* tools are reserved" {
		t.Fatalf("unexpected reason: %q", denied.Reason)
	}
}

func TestAuthorizeMatrix(t *testing.T) {
	cases := []struct {
		name          string
		tool          string
		known         bool
		mode          string
		userConfirmed bool
		want          Outcome
	}{
		{"unknown tool always denied", "mystery.op", false, "BestEffort", true, Deny},
		{"read-only allowed in best effort", "time.now", true, "BestEffort", false, Allow},
		{"read-only gated in require-confirmation", "time.now", true, ModeRequireConfirmation, false, RequireConfirmation},
		{"read-only allowed on confirmed replay", "time.now", true, ModeRequireConfirmation, true, Allow},
		{"local actions gated without confirmation", "file.mkdir", true, "BestEffort", false, RequireConfirmation},
		{"local actions allowed with confirmation", "file.mkdir", true, "BestEffort", true, Allow},
		{"system actions gated without confirmation", "desktop.app.activate", true, "BestEffort", false, RequireConfirmation},
		{"system actions allowed with confirmation", "desktop.app.activate", true, ModeRequireConfirmation, true, Allow},
		{"internal denied even when confirmed", "internal.wipe", true, "BestEffort", true, Deny},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, decision := Authorize(tc.tool, tc.known, AuthContext{Mode: tc.mode, UserConfirmed: tc.userConfirmed})
			if decision.Outcome != tc.want {
				t.Fatalf("expected %s, got %s (reason %q)", tc.want, decision.Outcome, decision.Reason)
			}
		})
	}
}

func TestAuthorizeUnknownToolReason(t *testing.T) {
	_, decision := Authorize("mystery.op", false, AuthContext{Mode: "BestEffort"})
	if decision.Reason != "unknown_tool" {
		t.Fatalf("expected unknown_tool reason, got %q", decision.Reason)
	}
}
