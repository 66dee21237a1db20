package backend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wardenhq/warden/internal/model"
)

func callWith(name string, args map[string]any) model.ToolCall {
	body, _ := json.Marshal(args)
	return model.ToolCall{Name: name, ArgumentsJSON: body}
}

func TestResolverRejectsEscape(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	if _, err := resolver.Resolve("../outside.txt"); err != errContainment {
		t.Fatalf("expected containment error, got %v", err)
	}
}

func TestResolverAllowsNested(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	abs, err := resolver.Resolve("sub/dir/file.txt")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(abs, root) {
		t.Fatalf("resolved path %s escaped root %s", abs, root)
	}
}

func TestFilesystemWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	fs := NewFilesystem(root)
	ctx := context.Background()

	if _, err := fs.Execute(ctx, callWith("file.write_text", map[string]any{
		"path": "nested/notes.txt", "content": "hello warden",
	})); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := fs.Execute(ctx, callWith("file.read_text", map[string]any{"path": "nested/notes.txt"}))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(result.ResultJSON, &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if decoded.Content != "hello warden" {
		t.Fatalf("unexpected content: %q", decoded.Content)
	}
}

func TestFilesystemWriteCreatesParentDirs(t *testing.T) {
	root := t.TempDir()
	fs := NewFilesystem(root)
	if _, err := fs.Execute(context.Background(), callWith("file.write_text", map[string]any{
		"path": "a/b/c/file.txt", "content": "x",
	})); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b", "c", "file.txt")); err != nil {
		t.Fatalf("expected nested file to exist: %v", err)
	}
}

func TestFilesystemRejectsPathEscape(t *testing.T) {
	root := t.TempDir()
	fs := NewFilesystem(root)
	result, err := fs.Execute(context.Background(), callWith("file.read_text", map[string]any{"path": "../outside.txt"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result.ResultJSON, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Error != ErrPathOutsideProjectScope {
		t.Fatalf("expected containment error, got %q", decoded.Error)
	}
}

func TestFilesystemReadTextTruncates(t *testing.T) {
	root := t.TempDir()
	long := strings.Repeat("a", textPreviewChars+500)
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte(long), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	fs := NewFilesystem(root)
	result, err := fs.Execute(context.Background(), callWith("file.read_text", map[string]any{"path": "big.txt"}))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal(result.ResultJSON, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Truncated || len(decoded.Content) != textPreviewChars {
		t.Fatalf("expected truncated preview of %d chars, got %d (truncated=%v)", textPreviewChars, len(decoded.Content), decoded.Truncated)
	}
}

func TestFilesystemSearchCapsFileSize(t *testing.T) {
	root := t.TempDir()
	oversized := strings.Repeat("needle\n", (searchMaxBytes/7)+10)
	if err := os.WriteFile(filepath.Join(root, "huge.txt"), []byte(oversized), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	fs := NewFilesystem(root)
	result, err := fs.Execute(context.Background(), callWith("text.search", map[string]any{
		"pattern": "needle", "path": "huge.txt",
	}))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result.ResultJSON, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Error != "file_too_large" {
		t.Fatalf("expected file_too_large, got %q", decoded.Error)
	}
}

func TestFilesystemSearchCapsMatchLimit(t *testing.T) {
	root := t.TempDir()
	lines := strings.Repeat("needle\n", searchMaxLimit+50)
	if err := os.WriteFile(filepath.Join(root, "matches.txt"), []byte(lines), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	fs := NewFilesystem(root)
	result, err := fs.Execute(context.Background(), callWith("text.search", map[string]any{
		"pattern": "needle", "path": "matches.txt", "limit": 10000,
	}))
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var decoded struct {
		Matches []string `json:"matches"`
	}
	if err := json.Unmarshal(result.ResultJSON, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Matches) != searchMaxLimit {
		t.Fatalf("expected %d matches, got %d", searchMaxLimit, len(decoded.Matches))
	}
}

func TestPreviewJSONLimitsTopLevel(t *testing.T) {
	arr := make([]any, 30)
	preview, truncated := previewJSON(arr, jsonPreviewElems)
	if !truncated {
		t.Fatal("expected truncation flag")
	}
	if len(preview.([]any)) != jsonPreviewElems {
		t.Fatalf("expected %d elements, got %d", jsonPreviewElems, len(preview.([]any)))
	}
}

func TestBuiltinMathEval(t *testing.T) {
	b := NewBuiltin()
	result, err := b.Execute(context.Background(), callWith("math.eval", map[string]any{"expression": "(2 + 3) * 4"}))
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	var decoded struct {
		Result float64 `json:"result"`
	}
	if err := json.Unmarshal(result.ResultJSON, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Result != 20 {
		t.Fatalf("expected 20, got %v", decoded.Result)
	}
}

func TestBuiltinMathEvalRejectsDivideByZero(t *testing.T) {
	b := NewBuiltin()
	result, err := b.Execute(context.Background(), callWith("math.eval", map[string]any{"expression": "1 / 0"}))
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result.ResultJSON, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Error != "invalid_expression" {
		t.Fatalf("expected invalid_expression, got %q", decoded.Error)
	}
}

func TestBuiltinDesktopActivateUnknownApp(t *testing.T) {
	b := NewBuiltin()
	result, err := b.Execute(context.Background(), callWith("desktop.app.activate", map[string]any{"name": "NoSuchApp"}))
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result.ResultJSON, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Error != "app_not_found" {
		t.Fatalf("expected app_not_found, got %q", decoded.Error)
	}
}

func TestDispatcherRoutesByPrefix(t *testing.T) {
	d := NewDispatcher(t.TempDir())
	if _, err := d.Execute(context.Background(), callWith("time.now", map[string]any{})); err != nil {
		t.Fatalf("time.now: %v", err)
	}
	if _, err := d.Execute(context.Background(), callWith("file.mkdir", map[string]any{"path": "sub"})); err != nil {
		t.Fatalf("file.mkdir: %v", err)
	}
	if _, err := d.Execute(context.Background(), callWith("mystery.op", map[string]any{})); err == nil {
		t.Fatal("expected error for unregistered tool")
	}
}
