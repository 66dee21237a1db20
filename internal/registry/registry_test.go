package registry

import (
	"encoding/json"
	"testing"

	"github.com/wardenhq/warden/internal/model"
)

func TestNewDefaultEnumeratesBuiltins(t *testing.T) {
	r := NewDefault()
	for _, name := range []string{
		"echo", "time.now", "math.eval", "text.search",
		"file.read_text", "file.write_text", "file.append_text", "file.mkdir",
		"desktop.app.list", "desktop.app.activate",
	} {
		if !r.HasTool(name) {
			t.Fatalf("expected built-in tool %q", name)
		}
	}
	if r.HasTool("mystery.op") {
		t.Fatal("did not expect mystery.op")
	}
}

func TestListIsSortedByName(t *testing.T) {
	r := NewDefault()
	tools := r.List()
	for i := 1; i < len(tools); i++ {
		if tools[i-1].Name >= tools[i].Name {
			t.Fatalf("list not sorted: %q before %q", tools[i-1].Name, tools[i].Name)
		}
	}
}

func TestValidateArgumentsAcceptsValid(t *testing.T) {
	r := NewDefault()
	args, _ := json.Marshal(map[string]string{"expression": "1+1"})
	if err := r.ValidateArguments("math.eval", args); err != nil {
		t.Fatalf("expected valid arguments, got %v", err)
	}
}

func TestValidateArgumentsRejectsMissingRequired(t *testing.T) {
	r := NewDefault()
	if err := r.ValidateArguments("math.eval", []byte(`{}`)); err == nil {
		t.Fatal("expected missing required field to fail validation")
	}
}

func TestValidateArgumentsRejectsWrongType(t *testing.T) {
	r := NewDefault()
	if err := r.ValidateArguments("echo", []byte(`{"text":42}`)); err == nil {
		t.Fatal("expected wrong-typed field to fail validation")
	}
}

func TestValidateArgumentsUnknownTool(t *testing.T) {
	r := NewDefault()
	if err := r.ValidateArguments("mystery.op", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestRegisterReplacesSchema(t *testing.T) {
	r := New()
	r.Register(model.Tool{Name: "demo", InputJSONSchema: json.RawMessage(`{"type":"object","required":["a"]}`)})
	if err := r.ValidateArguments("demo", []byte(`{}`)); err == nil {
		t.Fatal("expected first schema to require a")
	}
	r.Register(model.Tool{Name: "demo", InputJSONSchema: json.RawMessage(`{"type":"object"}`)})
	if err := r.ValidateArguments("demo", []byte(`{}`)); err != nil {
		t.Fatalf("expected replaced schema to accept empty object, got %v", err)
	}
}
