package backend

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wardenhq/warden/internal/model"
)

const (
	textPreviewChars = 2000
	csvPreviewRows   = 200
	jsonPreviewElems = 20
	searchMaxBytes   = 512 * 1024
	searchMaxLimit   = 200
)

// Filesystem implements Backend for the file.* tool family plus the
// read-only echo/text.search helpers, enforcing project-scope containment
// via Resolver and fixed read-size caps.
type Filesystem struct {
	resolver Resolver
}

// NewFilesystem returns a Filesystem backend rooted at projectRoot,
// falling back to the current working directory when it is empty.
func NewFilesystem(projectRoot string) *Filesystem {
	root := projectRoot
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	return &Filesystem{resolver: Resolver{Root: root}}
}

// Execute dispatches call.Name to the matching filesystem operation.
func (f *Filesystem) Execute(ctx context.Context, call model.ToolCall) (model.ToolResult, error) {
	switch call.Name {
	case "file.read_text":
		return f.readText(call)
	case "file.read_csv":
		return f.readCSV(call)
	case "file.read_json":
		return f.readJSON(call)
	case "file.write_text":
		return f.writeText(call, false)
	case "file.append_text":
		return f.writeText(call, true)
	case "file.mkdir":
		return f.mkdir(call)
	case "text.search":
		return f.search(call)
	case "echo":
		return f.echo(call)
	default:
		return model.ToolResult{}, fmt.Errorf("filesystem backend cannot execute %q", call.Name)
	}
}

type pathArgs struct {
	Path string `json:"path"`
}

func (f *Filesystem) resolveArgPath(argumentsJSON []byte) (string, error) {
	var args pathArgs
	if err := json.Unmarshal(argumentsJSON, &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	return f.resolver.Resolve(args.Path)
}

func (f *Filesystem) readText(call model.ToolCall) (model.ToolResult, error) {
	abs, err := f.resolveArgPath(call.ArgumentsJSON)
	if err != nil {
		return f.containmentOrError(call, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return errorResult(call.Name, "read_failed"), nil
	}
	text := string(data)
	truncated := false
	if len(text) > textPreviewChars {
		text = text[:textPreviewChars]
		truncated = true
	}
	return okResult(call.Name, map[string]any{
		"status":    "ok",
		"content":   text,
		"truncated": truncated,
	}, "read "+filepath.Base(abs), abs)
}

func (f *Filesystem) readCSV(call model.ToolCall) (model.ToolResult, error) {
	abs, err := f.resolveArgPath(call.ArgumentsJSON)
	if err != nil {
		return f.containmentOrError(call, err)
	}
	file, err := os.Open(abs)
	if err != nil {
		return errorResult(call.Name, "read_failed"), nil
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows := make([][]string, 0, csvPreviewRows)
	truncated := false
	for len(rows) < csvPreviewRows {
		record, err := reader.Read()
		if err != nil {
			break
		}
		rows = append(rows, record)
	}
	if _, err := reader.Read(); err == nil {
		truncated = true
	}
	return okResult(call.Name, map[string]any{
		"status":    "ok",
		"rows":      rows,
		"truncated": truncated,
	}, "read csv "+filepath.Base(abs), abs)
}

func (f *Filesystem) readJSON(call model.ToolCall) (model.ToolResult, error) {
	abs, err := f.resolveArgPath(call.ArgumentsJSON)
	if err != nil {
		return f.containmentOrError(call, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return errorResult(call.Name, "read_failed"), nil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return errorResult(call.Name, "invalid_json"), nil
	}
	preview, truncated := previewJSON(decoded, jsonPreviewElems)
	return okResult(call.Name, map[string]any{
		"status":    "ok",
		"preview":   preview,
		"truncated": truncated,
	}, "read json "+filepath.Base(abs), abs)
}

// previewJSON limits a top-level array or object to at most n
// elements/keys.
func previewJSON(v any, n int) (any, bool) {
	switch val := v.(type) {
	case []any:
		if len(val) > n {
			return val[:n], true
		}
		return val, false
	case map[string]any:
		if len(val) <= n {
			return val, false
		}
		out := make(map[string]any, n)
		i := 0
		for k, item := range val {
			if i >= n {
				break
			}
			out[k] = item
			i++
		}
		return out, true
	default:
		return v, false
	}
}

func (f *Filesystem) writeText(call model.ToolCall, appendMode bool) (model.ToolResult, error) {
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(call.ArgumentsJSON, &args); err != nil {
		return errorResult(call.Name, "invalid_arguments"), nil
	}
	abs, err := f.resolver.Resolve(args.Path)
	if err != nil {
		return f.containmentOrError(call, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errorResult(call.Name, "mkdir_failed"), nil
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(abs, flags, 0o644)
	if err != nil {
		return errorResult(call.Name, "write_failed"), nil
	}
	defer file.Close()
	if _, err := file.WriteString(args.Content); err != nil {
		return errorResult(call.Name, "write_failed"), nil
	}
	return okResult(call.Name, map[string]any{"status": "ok", "bytes_written": len(args.Content)},
		"wrote "+filepath.Base(abs), abs)
}

func (f *Filesystem) mkdir(call model.ToolCall) (model.ToolResult, error) {
	abs, err := f.resolveArgPath(call.ArgumentsJSON)
	if err != nil {
		return f.containmentOrError(call, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return errorResult(call.Name, "mkdir_failed"), nil
	}
	return okResult(call.Name, map[string]any{"status": "ok"}, "created "+filepath.Base(abs), abs)
}

func (f *Filesystem) search(call model.ToolCall) (model.ToolResult, error) {
	var args struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Limit   int    `json:"limit"`
	}
	if err := json.Unmarshal(call.ArgumentsJSON, &args); err != nil {
		return errorResult(call.Name, "invalid_arguments"), nil
	}
	limit := args.Limit
	if limit <= 0 || limit > searchMaxLimit {
		limit = searchMaxLimit
	}
	abs, err := f.resolver.Resolve(args.Path)
	if err != nil {
		return f.containmentOrError(call, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return errorResult(call.Name, "read_failed"), nil
	}
	if info.Size() > searchMaxBytes {
		return errorResult(call.Name, "file_too_large"), nil
	}
	file, err := os.Open(abs)
	if err != nil {
		return errorResult(call.Name, "read_failed"), nil
	}
	defer file.Close()

	var matches []string
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() && len(matches) < limit {
		lineNo++
		if strings.Contains(scanner.Text(), args.Pattern) {
			matches = append(matches, fmt.Sprintf("%d: %s", lineNo, scanner.Text()))
		}
	}
	return okResult(call.Name, map[string]any{"status": "ok", "matches": matches}, "searched "+filepath.Base(abs), abs)
}

func (f *Filesystem) echo(call model.ToolCall) (model.ToolResult, error) {
	var args struct {
		Text string `json:"text"`
	}
	_ = json.Unmarshal(call.ArgumentsJSON, &args)
	return okResult(call.Name, map[string]any{"status": "ok", "text": args.Text}, "echoed")
}

func (f *Filesystem) containmentOrError(call model.ToolCall, err error) (model.ToolResult, error) {
	if err == errContainment {
		return errorResult(call.Name, ErrPathOutsideProjectScope), nil
	}
	return errorResult(call.Name, "invalid_arguments"), nil
}
