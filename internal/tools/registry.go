// Package tools defines the tool registry and the built-in tool set. The
// registry maps a tool name to a typed handler and is validated at startup,
// so an unknown or duplicated tool name is a configuration error rather than
// a runtime surprise.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/buzzposter/buzzposter/internal/admission"
)

// Handler executes one tool call for an admitted tenant.
type Handler func(ctx context.Context, tc *admission.TenantContext, args map[string]any) (any, error)

// Arg describes one string argument of a tool, used to build the input
// schema exposed to MCP clients.
type Arg struct {
	Name        string
	Description string
	Required    bool
}

// Tool is one registered tool. Feature "" means the tool is not entitlement
// gated; every tool still passes authentication and quota.
type Tool struct {
	Name        string
	Description string
	Feature     string
	Args        []Arg
	Handler     Handler
}

// Registry holds the tool set served over MCP.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, rejecting empty and duplicate names.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool with empty name")
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("duplicate tool %q", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools in stable name order.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks the registry is servable: non-empty, every tool has a
// handler. Run once at startup.
func (r *Registry) Validate() error {
	if len(r.tools) == 0 {
		return fmt.Errorf("no tools registered")
	}
	for name, t := range r.tools {
		if t.Handler == nil {
			return fmt.Errorf("tool %q has no handler", name)
		}
	}
	return nil
}
