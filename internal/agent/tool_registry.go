package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Tool parameter limits to prevent resource exhaustion.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolParamsSize is the maximum size of tool parameters JSON (10MB).
	MaxToolParamsSize = 10 << 20
)

// Tool is a single callable capability the orchestrator's handle_tools node
// may invoke on the model's behalf. ParametersSchema returns a JSON Schema
// document describing the arguments object, validated by the registry
// before Execute is called.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error)
}

// Cacheable is implemented by tools whose results may be safely cached by
// tool name + canonicalized arguments. Tools with side effects (anything
// that mutates external state) must not implement this.
type Cacheable interface {
	CacheTTL() time.Duration
}

// ToolRegistry manages available tools with thread-safe registration and
// lookup. Tools are registered by name and can be retrieved for execution
// during agent turns.
type ToolRegistry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	validator *schemaValidator
	cache     *toolCache
}

// NewToolRegistry creates a new empty tool registry ready for tool
// registration.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:     make(map[string]Tool),
		validator: newSchemaValidator(),
		cache:     newToolCache(defaultToolCacheCapacity, defaultToolCacheTTL),
	}
}

// Register adds a tool to the registry by its name. If a tool with the same
// name already exists, it is replaced.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.validator.register(tool.Name(), tool.ParametersSchema())
}

// Unregister removes a tool from the registry by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	r.validator.unregister(name)
}

// Get returns a tool by name and a boolean indicating if it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Execute runs a tool by name with the given JSON parameters, validating
// the parameters against the tool's declared schema and consulting the
// result cache for cacheable tools before dispatching to Tool.Execute.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*models.ToolResult, error) {
	if len(name) > MaxToolNameLength {
		return nil, fmt.Errorf("tool name exceeds maximum length of %d characters", MaxToolNameLength)
	}
	if len(params) > MaxToolParamsSize {
		return nil, fmt.Errorf("tool parameters exceed maximum size of %d bytes", MaxToolParamsSize)
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if err := r.validator.validate(name, params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptyInput, err)
	}

	key, cacheable := cacheKeyFor(tool, name, params)
	if cacheable {
		if cached, ok := r.cache.get(key); ok {
			return cached, nil
		}
	}

	result, err := tool.Execute(ctx, params)
	if err != nil {
		return nil, err
	}

	if cacheable && result != nil && result.Success {
		var ttl time.Duration
		if c, ok := tool.(Cacheable); ok {
			ttl = c.CacheTTL()
		}
		r.cache.set(key, result, ttl)
	}

	return result, nil
}

// cacheKeyFor reports whether a tool's results are cacheable and, if so,
// its canonical cache key.
func cacheKeyFor(tool Tool, name string, params json.RawMessage) (string, bool) {
	c, ok := tool.(Cacheable)
	if !ok {
		return "", false
	}
	if c.CacheTTL() <= 0 {
		return "", false
	}
	return canonicalCacheKey(name, params), true
}

// AsLLMTools returns all registered tools as a slice for exporting to an
// LLM provider's tool-call schema.
func (r *ToolRegistry) AsLLMTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// Names returns the sorted set of registered tool names. Used by tests and
// diagnostics, not by the hot path.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
