// Package tools implements the tool surface the executor dispatches into:
// a registry of schema-validated tools scoped to one task workspace.
package tools

import (
	"context"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mesutfelat/cowork/internal/engine"
)

// Func is the implementation behind one tool.
type Func func(ctx context.Context, args map[string]any) (string, error)

// Metadata categorizes a tool for logging and filtering.
type Metadata struct {
	Category string   // e.g. "filesystem", "execution", "memory"
	Tags     []string // e.g. ["read-only", "idempotent"]
}

// Tool couples a name and JSON schema with its implementation. Inputs are
// validated against the schema before dispatch; the model never reaches Fn
// with arguments the schema rejects.
type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          Func
	Metadata    Metadata
}

// ValidateArgs checks args against the tool's declared JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &engine.ToolValidationError{ToolName: t.Name, Errors: []string{err.Error()}}
	}
	if !result.Valid() {
		var msgs []string
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}
		return &engine.ToolValidationError{ToolName: t.Name, Errors: msgs}
	}
	return nil
}
