// Package backend implements the ActionBackend capability contract:
// execute a single approved ToolCall deterministically, enforcing
// project-scope path containment and fixed read-size caps for filesystem
// tools.
package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wardenhq/warden/internal/model"
)

// Backend executes one approved ToolCall and returns its ToolResult.
type Backend interface {
	Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error)
}

// ErrPathOutsideProjectScope is the sentinel surfaced in a ToolResult's
// result_json.error field on a containment violation.
const ErrPathOutsideProjectScope = "path_outside_project_scope"

func errorResult(name string, code string) model.ToolResult {
	payload, _ := json.Marshal(map[string]string{"status": "error", "error": code})
	return model.ToolResult{Name: name, ResultJSON: payload, Evidence: model.Evidence{Summary: "error: " + code}}
}

func okResult(name string, payload any, summary string, artifacts ...string) (model.ToolResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.ToolResult{}, fmt.Errorf("marshal result for %s: %w", name, err)
	}
	return model.ToolResult{
		Name:       name,
		ResultJSON: body,
		Evidence:   model.Evidence{Summary: summary, Artifacts: artifacts},
	}, nil
}
