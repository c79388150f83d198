package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesutfelat/cowork/internal/engine"
	"github.com/mesutfelat/cowork/internal/memory"
	"github.com/mesutfelat/cowork/internal/sandbox"
)

// Registry implements engine.ToolRunner over an ordered set of tools.
// Registration order is preserved so schemas and descriptions are stable
// across runs.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous one with the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Schemas implements engine.ToolRunner.
func (r *Registry) Schemas() []engine.ToolSchema {
	schemas := make([]engine.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		schemas = append(schemas, engine.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	return schemas
}

// Descriptions implements engine.ToolRunner: one line per tool, for the
// system prompts.
func (r *Registry) Descriptions() string {
	var sb strings.Builder
	for _, name := range r.order {
		t := r.tools[name]
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Description)
	}
	return sb.String()
}

// Execute implements engine.ToolRunner: validate against the tool's schema,
// then dispatch.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if input == nil {
		input = map[string]any{}
	}
	if err := t.ValidateArgs(input); err != nil {
		return "", err
	}
	return t.Fn(ctx, input)
}

// Cleanup implements engine.ToolRunner. The shipped tools hold no resources
// beyond the sandbox, which the daemon owns.
func (r *Registry) Cleanup(ctx context.Context) error {
	return nil
}

// ForTask assembles the registry for one task workspace: filesystem tools,
// sandboxed command execution, and (when a memory index is available) task
// recall.
func ForTask(workspaceDir string, runner sandbox.Runner, mem *memory.Index, extraCommands []string) *Registry {
	reg := NewRegistry()

	reg.Register(NewReadFileTool(workspaceDir))
	reg.Register(NewWriteFileTool(workspaceDir))
	reg.Register(NewListFilesTool(workspaceDir))
	reg.Register(NewDeleteFileTool(workspaceDir))
	reg.Register(NewRunCommandTool(workspaceDir, runner, extraCommands))

	if mem != nil {
		reg.Register(NewRecallTasksTool(mem))
	}

	return reg
}
