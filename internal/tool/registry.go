// Package tool declares the capabilities offered to the model and executes
// them against the caller's mailbox.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hal9000y/gmail-agent/internal/auth"
)

// UnknownToolResult is fed back to the model when it asks for a tool that is
// not registered.
const UnknownToolResult = "Unknown function call."

// Property describes one parameter of a tool.
type Property struct {
	Type        string
	Description string
}

// Schema is the parameter schema of a tool.
type Schema struct {
	Properties map[string]Property
	Required   []string
}

// JSONSchema renders s as a JSON schema object.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}

	return out
}

// Declaration is what the model sees of a tool.
type Declaration struct {
	Name        string
	Description string
	Parameters  Schema
}

// Executor runs a tool. Implementations never return errors: failures are
// reported through Result.
type Executor interface {
	Execute(ctx context.Context, cred auth.Credential, args map[string]any) Result
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, cred auth.Credential, args map[string]any) Result

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, cred auth.Credential, args map[string]any) Result {
	return f(ctx, cred, args)
}

// Tool binds a declaration to its executor.
type Tool struct {
	Declaration
	Executor Executor
}

// Registry is the fixed set of tools. It is immutable once built.
type Registry struct {
	tools  []Tool
	byName map[string]int
}

// NewRegistry validates tools and builds a registry. Names must be unique and
// every required parameter must be declared.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:  make([]Tool, 0, len(tools)),
		byName: make(map[string]int, len(tools)),
	}

	var errs []error
	for _, t := range tools {
		if err := validate(t); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.byName[t.Name]; dup {
			errs = append(errs, fmt.Errorf("tool %q declared twice", t.Name))
			continue
		}
		r.byName[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return r, nil
}

func validate(t Tool) error {
	if t.Name == "" {
		return errors.New("tool without a name")
	}
	if t.Executor == nil {
		return fmt.Errorf("tool %q has no executor", t.Name)
	}

	var missing []string
	for _, req := range t.Parameters.Required {
		if _, ok := t.Parameters.Properties[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("tool %q requires undeclared parameters %v", t.Name, missing)
	}

	return nil
}

// Declarations lists the tools in registration order.
func (r *Registry) Declarations() []Declaration {
	out := make([]Declaration, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Declaration)
	}
	return out
}

// Lookup returns the tool named name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}
