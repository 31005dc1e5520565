// Package tools implements the tool registry and its uniform result
// contract. Every dispatch outcome, including unknown tools, malformed
// arguments and tool panics, is expressed as a Result value; Call never
// returns a Go error and never lets a panic escape.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/virtualab/virtualab/llm"
)

// ToolFunc executes one tool call with already-decoded named arguments.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool pairs a schema with its implementation. The schema's Parameters
// must be a JSON Schema object; its "required" list is enforced at the
// registry boundary before the function runs.
type Tool struct {
	Schema llm.ToolSchema
	Fn     ToolFunc
}

// Result is the uniform outcome of one tool call.
type Result struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`

	Name     string        `json:"-"`
	CallID   string        `json:"-"`
	Duration time.Duration `json:"-"`
}

// JSON serializes the result. Serialization failure degrades to a plain
// failure envelope rather than propagating.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"unserializable tool output: %s"}`, err)
	}
	return string(b)
}

func failure(name, callID, format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...), Name: name, CallID: callID}
}

// Registry holds the tool catalogue for a run. Registration happens at
// construction time; the set is treated as immutable once the run starts.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool. Registering a duplicate name replaces the
// implementation but keeps the original catalogue position.
func (r *Registry) Register(t Tool) error {
	if t.Schema.Name == "" {
		return fmt.Errorf("tool schema has empty name")
	}
	if t.Fn == nil {
		return fmt.Errorf("tool %s has nil function", t.Schema.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Schema.Name]; !exists {
		r.order = append(r.order, t.Schema.Name)
	}
	r.tools[t.Schema.Name] = t
	return nil
}

// Schemas returns the catalogue in registration order, so the schema
// list offered to the model is deterministic across runs.
func (r *Registry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema)
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Call dispatches one tool call. The three failure classes all map to
// the same Result shape:
//
//	unknown tool        -> "unknown tool: <name>"
//	argument mismatch   -> "invalid arguments for <name>: ..."
//	execution failure   -> "tool execution error: ..."
func (r *Registry) Call(ctx context.Context, call llm.ToolCall) (res Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = failure(call.Name, call.ID, "tool execution error: panic: %v", rec)
		}
		res.Duration = time.Since(start)
		r.logger.Debug("tool call finished",
			zap.String("tool", call.Name),
			zap.Bool("success", res.Success),
			zap.Duration("duration", res.Duration))
	}()

	r.mu.RLock()
	tool, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return failure(call.Name, call.ID, "unknown tool: %s", call.Name)
	}

	args, err := decodeArgs(call.Arguments)
	if err != nil {
		return failure(call.Name, call.ID, "invalid arguments for %s: %s", call.Name, err)
	}
	if missing := missingRequired(tool.Schema.Parameters, args); len(missing) > 0 {
		return failure(call.Name, call.ID, "invalid arguments for %s: missing required parameter %q", call.Name, missing[0])
	}

	output, err := tool.Fn(ctx, args)
	if err != nil {
		return failure(call.Name, call.ID, "tool execution error: %s", err)
	}
	return Result{Success: true, Output: output, Name: call.Name, CallID: call.ID}
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// missingRequired checks the schema's "required" list against the
// decoded arguments. A schema without a required list accepts anything.
func missingRequired(parameters json.RawMessage, args map[string]any) []string {
	if len(parameters) == 0 {
		return nil
	}
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(parameters, &schema); err != nil {
		return nil
	}
	var missing []string
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// ObjectSchema builds a JSON Schema object for the common case of a
// flat parameter map.
func ObjectSchema(properties map[string]any, required ...string) json.RawMessage {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, _ := json.Marshal(schema)
	return b
}
