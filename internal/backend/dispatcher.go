package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal/model"
)

// Dispatcher routes a ToolCall to the Backend registered for its name
// prefix, composing Filesystem and Builtin into the single ActionBackend
// the orchestrator depends on.
type Dispatcher struct {
	filesystem *Filesystem
	builtin    *Builtin
}

// NewDispatcher wires the filesystem and builtin backends rooted at
// projectRoot.
func NewDispatcher(projectRoot string) *Dispatcher {
	return &Dispatcher{
		filesystem: NewFilesystem(projectRoot),
		builtin:    NewBuiltin(),
	}
}

func (d *Dispatcher) Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error) {
	switch {
	case call.Name == "echo", call.Name == "text.search", strings.HasPrefix(call.Name, "file."):
		return d.filesystem.Execute(ctx, call)
	case call.Name == "time.now", call.Name == "math.eval", strings.HasPrefix(call.Name, "desktop."):
		return d.builtin.Execute(ctx, call)
	default:
		return model.ToolResult{}, fmt.Errorf("no backend registered for tool %q", call.Name)
	}
}

// SetProjectRoot rebinds the filesystem backend to a new project root.
func (d *Dispatcher) SetProjectRoot(root string) {
	d.filesystem = NewFilesystem(root)
}
