// Tool registration and single-call dispatch.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Compiled argument schemas hidden from consumers
// - Registration and discovery mechanisms abstracted

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// registration pairs a tool with its schema compiled at Register time.
type registration struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry manages available tools with dynamic registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registration
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registration),
	}
}

// Register adds a new tool to the registry, compiling its declared
// argument schema. Returns error if a tool with the same name already
// exists or the schema does not compile.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta := tool.Metadata()
	if _, exists := r.tools[meta.Name]; exists {
		return fmt.Errorf("tool '%s' already registered", meta.Name)
	}

	schema, err := compileInputSchema(meta)
	if err != nil {
		return err
	}

	r.tools[meta.Name] = registration{tool: tool, schema: schema}
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.tools[name]
	return reg.tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.tools))
	for _, reg := range r.tools {
		metadata = append(metadata, reg.tool.Metadata())
	}
	return metadata
}

// CheckArguments validates raw arguments against the named tool's compiled
// schema without executing anything. Unknown name wraps ErrToolNotFound;
// a schema violation wraps ErrInvalidArguments.
func (r *Registry) CheckArguments(name string, args json.RawMessage) error {
	r.mu.RLock()
	reg, exists := r.tools[name]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: '%s'", ErrToolNotFound, name)
	}
	return validateAgainstSchema(reg.schema, args)
}

// Dispatch validates and executes one tool call. The handler is never
// invoked when the arguments fail the declared schema or the tool's own
// Validate.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	r.mu.RLock()
	reg, exists := r.tools[name]
	r.mu.RUnlock()

	if !exists {
		return ToolResult{}, fmt.Errorf("%w: '%s'", ErrToolNotFound, name)
	}

	if err := validateAgainstSchema(reg.schema, args); err != nil {
		return ToolResult{}, err
	}
	if err := reg.tool.Validate(args); err != nil {
		return ToolResult{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	return reg.tool.Execute(ctx, args)
}

// Description returns a formatted description of all tools for LLM prompts.
func (r *Registry) Description() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var descriptions []string
	for _, reg := range r.tools {
		meta := reg.tool.Metadata()
		var params []string
		for _, p := range meta.Parameters {
			required := "optional"
			if p.Required {
				required = "required"
			}
			params = append(params, fmt.Sprintf("  - %s (%s): %s [%s]",
				p.Name, p.ParamType, p.Description, required))
		}

		paramStr := strings.Join(params, "\n")
		descriptions = append(descriptions, fmt.Sprintf(
			"Tool: %s\nDescription: %s\nParameters:\n%s",
			meta.Name, meta.Description, paramStr))
	}

	return strings.Join(descriptions, "\n\n")
}

// Default timeout and file size constants for tools.
const (
	DefaultToolTimeout = 30          // seconds
	DefaultMaxFileSize = 1024 * 1024 // 1MB
)

// WithDefaults creates a registry with the full default tool set under the
// default configuration.
func WithDefaults() (*Registry, error) {
	return WithConfig(DefaultToolConfig())
}

// WithConfig creates a registry with the full default tool set, applying
// the configured timeout and sandbox policy. A sandboxed registry confines
// write-capable tools to the working directory; reads stay unrestricted.
func WithConfig(cfg ToolConfig) (*Registry, error) {
	registry := NewRegistry()

	timeout := cfg.Timeout()
	var writePaths []string
	if cfg.Sandboxed() {
		if wd, err := os.Getwd(); err == nil {
			writePaths = []string{wd}
		}
	}

	tools := []Tool{
		NewReadTool(DefaultMaxFileSize),
		NewWriteFileTool(DefaultMaxFileSize).WithAllowedPaths(writePaths),
		NewAppendFileTool(DefaultMaxFileSize).WithAllowedPaths(writePaths),
		NewEditTool(DefaultMaxFileSize).WithAllowedPaths(writePaths),
		NewMultiEditTool(DefaultMaxFileSize).WithAllowedPaths(writePaths),
		NewGrepTool(timeout),
		NewGlobTool(0),
		NewFindTool(),
		NewLsTool(),
		NewShellTool(timeout),
		NewBashTool(timeout),
		NewHTTPTool(timeout),
		NewTodoTool(),
	}

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register default tools: %w", err)
		}
	}

	return registry, nil
}
