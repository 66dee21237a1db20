// Package registry implements the static ToolRegistry: an enumerated set
// of tool descriptors with JSON Schema argument validation.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wardenhq/warden/internal/model"
)

// Registry is a thread-safe, name-keyed set of tool descriptors.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]model.Tool
	schemas sync.Map // name -> *jsonschema.Schema
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]model.Tool)}
}

// NewDefault returns a registry populated with the built-in tool set:
// read-only time/math/text/file
// helpers, echo, the gated filesystem writers, and the desktop stubs used
// by scenarios S1 and S4. Name-prefix semantics must stay stable because
// internal/policy classifies by prefix.
func NewDefault() *Registry {
	r := New()
	obj := func() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
	defaults := []model.Tool{
		{Name: "echo", Description: "Echo the given text back.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`)},
		{Name: "time.now", Description: "Return the current time.", InputJSONSchema: obj()},
		{Name: "math.eval", Description: "Evaluate a simple arithmetic expression.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string"}},"required":["expression"]}`)},
		{Name: "text.search", Description: "Search text content for a substring.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string"},"path":{"type":"string"},"limit":{"type":"integer"}},"required":["pattern","path"]}`)},
		{Name: "file.read_text", Description: "Read a text file within the project root.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)},
		{Name: "file.read_csv", Description: "Read a CSV file preview within the project root.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)},
		{Name: "file.read_json", Description: "Read a JSON file preview within the project root.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)},
		{Name: "file.write_text", Description: "Write a text file within the project root.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`)},
		{Name: "file.append_text", Description: "Append to a text file within the project root.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`)},
		{Name: "file.mkdir", Description: "Create a directory within the project root.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)},
		{Name: "desktop.app.list", Description: "List running desktop applications.", InputJSONSchema: obj()},
		{Name: "desktop.app.activate", Description: "Activate (bring to front) a desktop application.", InputJSONSchema: json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)},
	}
	for _, t := range defaults {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool descriptor.
func (r *Registry) Register(t model.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
	r.schemas.Delete(t.Name)
}

// HasTool reports whether name is enumerated in the registry.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (model.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []model.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateArguments compiles (and caches) the tool's input_json_schema and
// validates call arguments against it. A tool with no schema set is
// accepted; an empty payload is validated as an empty object, and a payload
// that is not valid JSON is rejected with an error.
func (r *Registry) ValidateArguments(name string, argumentsJSON []byte) error {
	t, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	if len(t.InputJSONSchema) == 0 {
		return nil
	}

	schema, err := r.compiledSchema(name, t.InputJSONSchema)
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", name, err)
	}

	payload := argumentsJSON
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode arguments for %q: %w", name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("arguments for %q invalid: %w", name, err)
	}
	return nil
}

func (r *Registry) compiledSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if cached, ok := r.schemas.Load(name); ok {
		if s, ok := cached.(*jsonschema.Schema); ok {
			return s, nil
		}
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	r.schemas.Store(name, compiled)
	return compiled, nil
}
