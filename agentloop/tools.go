package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkarlsen/agentsh/llm"
)

// ToolHandler executes one tool invocation. Arguments arrive as raw JSON;
// the returned string is the payload sent back to the model. A returned
// error is reported to the model as an error payload, never surfaced as a
// loop failure.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// RegisteredTool pairs a spec with its handler.
type RegisteredTool struct {
	Spec    llm.ToolSpec
	Handler ToolHandler
}

// ToolRegistry manages tool registration and dispatch. Registration happens
// at startup; dispatch is read-only for the session lifetime. Specs are
// returned in registration order so the model sees a stable tool list.
type ToolRegistry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]*RegisteredTool
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*RegisteredTool)}
}

// Register adds a tool. Registering a name twice replaces the handler but
// keeps the original position.
func (r *ToolRegistry) Register(spec llm.ToolSpec, handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.tools[spec.Name] = &RegisteredTool{Spec: spec, Handler: handler}
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (*RegisteredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Specs returns all tool specs in registration order.
func (r *ToolRegistry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec)
	}
	return specs
}

// Names returns the registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Dispatch routes one invocation to its handler and returns the serialized
// payload for the model, plus whether that payload describes a dispatch
// error. Every failure mode becomes an error payload the model can read:
//
//   - unknown tool name
//   - arguments that are not a JSON object
//   - a required field missing from the arguments
//   - a handler error
//
// Dispatch itself never fails; the loop always gets a payload to pair with
// the invocation ID.
func (r *ToolRegistry) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, bool) {
	tool, ok := r.Get(name)
	if !ok {
		return errorPayload(fmt.Sprintf("Unknown tool: %s", name)), true
	}

	parsed, err := ParseToolArguments(args)
	if err != nil {
		return errorPayload(fmt.Sprintf("Invalid arguments for tool %s: %v", name, err)), true
	}
	for _, field := range tool.Spec.RequiredFields() {
		if _, present := parsed[field]; !present {
			return errorPayload(fmt.Sprintf("Tool %s missing required field: %s", name, field)), true
		}
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		return errorPayload(fmt.Sprintf("Tool %s failed: %v", name, err)), true
	}
	return result, false
}

// ParseToolArguments decodes raw invocation arguments into a map. Empty
// arguments decode to an empty map.
func ParseToolArguments(args json.RawMessage) (map[string]interface{}, error) {
	if len(args) == 0 {
		return map[string]interface{}{}, nil
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return nil, err
	}
	if parsed == nil {
		parsed = map[string]interface{}{}
	}
	return parsed, nil
}

// GetStringArg extracts a string argument, with a fallback default.
func GetStringArg(args map[string]interface{}, key, defaultValue string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return defaultValue
}

// GetIntArg extracts an integer argument, with a fallback default. JSON
// numbers decode as float64.
func GetIntArg(args map[string]interface{}, key string, defaultValue int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return defaultValue
}

// GetBoolArg extracts a boolean argument, with a fallback default.
func GetBoolArg(args map[string]interface{}, key string, defaultValue bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return defaultValue
}

func errorPayload(message string) string {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, message)
	}
	return string(payload)
}
