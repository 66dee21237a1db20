// Package policy implements the pure capability-tier classifier and
// authorization decision. It is deliberately free of I/O: a function of
// (tool name, mode, user_confirmed) only.
package policy

import "strings"

// Decision is the outcome of authorizing one tool call.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Outcome enumerates the three authorization outcomes.
type Outcome string

const (
	Allow               Outcome = "allow"
	RequireConfirmation Outcome = "require_confirmation"
	Deny                Outcome = "deny"
)

// Tier is a capability tier, re-exported here so callers that only need the
// policy package don't have to import model for this one type.
type Tier string

const (
	TierReadOnly      Tier = "ReadOnly"
	TierLocalActions  Tier = "LocalActions"
	TierSystemActions Tier = "SystemActions"
)

// localActionsExact lists tool names that are LocalActions regardless of
// their name prefix.
var localActionsExact = map[string]bool{
	"file.write_text":  true,
	"file.append_text": true,
	"file.mkdir":       true,
}

// ClassifyTier assigns a capability tier to a tool name, evaluating the
// classification rules in order; the first match wins.
func ClassifyTier(toolName string) (Tier, *Decision) {
	switch {
	case strings.HasPrefix(toolName, "internal."):
		return "", &Decision{Outcome: Deny, Reason: "internal.* tools are reserved"}
	case toolName == "desktop.app.activate":
		return TierSystemActions, nil
	case toolName == "desktop.app.list":
		return TierLocalActions, nil
	case localActionsExact[toolName]:
		return TierLocalActions, nil
	case hasReadPrefix(toolName) || toolName == "echo":
		return TierReadOnly, nil
	case strings.HasPrefix(toolName, "desktop.") ||
		strings.HasPrefix(toolName, "android.") ||
		strings.HasPrefix(toolName, "ios."):
		return TierLocalActions, nil
	default:
		return TierSystemActions, nil
	}
}

func hasReadPrefix(name string) bool {
	for _, prefix := range []string{"time.", "math.", "text.", "file."} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// AuthContext carries the mode and prior-confirmation bit that Authorize
// needs in addition to the tool call's capability tier.
type AuthContext struct {
	Mode          string // "RequireConfirmation" | "BestEffort"
	UserConfirmed bool
}

const ModeRequireConfirmation = "RequireConfirmation"

// Authorize is the pure authorization function. known must be true iff
// the tool name is present in the ToolRegistry; unknown tools
// are always denied with reason "unknown_tool", taking precedence over tier
// classification (an unknown name never reaches ClassifyTier's default
// SystemActions branch in practice, but callers must check `known` first).
func Authorize(toolName string, known bool, ctx AuthContext) (Tier, Decision) {
	if !known {
		return "", Decision{Outcome: Deny, Reason: "unknown_tool"}
	}

	tier, denied := ClassifyTier(toolName)
	if denied != nil {
		return tier, *denied
	}

	switch tier {
	case TierReadOnly:
		if ctx.Mode == ModeRequireConfirmation && !ctx.UserConfirmed {
			return tier, Decision{Outcome: RequireConfirmation, Reason: "read-only tool gated by RequireConfirmation mode"}
		}
		return tier, Decision{Outcome: Allow}
	case TierLocalActions, TierSystemActions:
		if ctx.UserConfirmed {
			return tier, Decision{Outcome: Allow}
		}
		return tier, Decision{Outcome: RequireConfirmation, Reason: string(tier) + " requires explicit consent"}
	default:
		return tier, Decision{Outcome: Deny, Reason: "unknown_tool"}
	}
}
