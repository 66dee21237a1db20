package orchestrator

import (
	"encoding/json"
	"regexp"
)

// sensitiveKey matches argument keys whose values must never appear in an
// ArgumentsPreview.
var sensitiveKey = regexp.MustCompile(`(?i)api_key|apikey|token|authorization|password|secret|content`)

const previewMaxChars = 180

// sanitizePreview renders a tool call's raw arguments into the redacted,
// length-bounded string carried on ActionEvent.ArgumentsPreview and
// PendingConsentRecord.ArgumentsPreview.
func sanitizePreview(argumentsJSON []byte) string {
	var decoded any
	if err := json.Unmarshal(argumentsJSON, &decoded); err != nil {
		return truncate(string(argumentsJSON))
	}
	redacted := redactValue(decoded)
	body, err := json.Marshal(redacted)
	if err != nil {
		return ""
	}
	return truncate(string(body))
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if sensitiveKey.MatchString(k) {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = redactValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return val
	}
}

func truncate(s string) string {
	if len(s) <= previewMaxChars {
		return s
	}
	return s[:previewMaxChars]
}
