package toolkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/simulacra-ai/conversa/model"
)

// Registry is the fixed set of tools a Conversation's toolkit exposes. It
// implements conversation.Toolkit (Definitions), and additionally knows how
// to instantiate and invoke each registered tool by name.
type Registry struct {
	entries map[string]Registration
	schemas map[string]*jsonschema.Schema
	order   []string
}

// NewRegistry compiles a parameter schema for each registration up front
// (a malformed ParamDef tree is a programmer error, caught at startup
// rather than on the first invocation) and returns a Registry ready to
// serve Definitions/Instantiate/Invoke.
func NewRegistry(regs ...Registration) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]Registration, len(regs)),
		schemas: make(map[string]*jsonschema.Schema, len(regs)),
	}
	for _, reg := range regs {
		name := reg.Definition.Name
		if name == "" {
			return nil, fmt.Errorf("toolkit: tool registration missing a name")
		}
		if _, dup := r.entries[name]; dup {
			return nil, fmt.Errorf("toolkit: duplicate tool registration %q", name)
		}
		schema, err := compileSchema(reg.Definition)
		if err != nil {
			return nil, err
		}
		r.entries[name] = reg
		r.schemas[name] = schema
		r.order = append(r.order, name)
	}
	return r, nil
}

// Definitions implements conversation.Toolkit, returning definitions in
// registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].Definition)
	}
	return defs
}

// Lookup reports whether name is registered and, if so, its definition.
func (r *Registry) Lookup(name string) (model.ToolDefinition, bool) {
	reg, ok := r.entries[name]
	return reg.Definition, ok
}

// Instances holds the memoized, constructed Tools bound to one workflow's
// Context. It builds these lazily and caches them per tool name so
// the same tool instance serves every batch within a workflow's lifetime,
// matching the "memoized across tool executions in the same workflow"
// contract.
type Instances struct {
	reg *Registry
	tc  Context

	mu   sync.Mutex
	live map[string]Tool
}

// NewInstances binds reg to tc, ready to lazily construct and memoize tool
// instances as Invoke is called.
func (r *Registry) NewInstances(tc Context) *Instances {
	return &Instances{reg: r, tc: tc, live: make(map[string]Tool)}
}

// Invoke validates params against the named tool's schema, constructs (or
// reuses) the tool instance, and executes it. An unknown tool name or a
// schema violation is reified into a failed model.ToolResult rather than
// returned as an error, matching the agentic loop's "the model sees every
// failure" contract; only infrastructure failures (a Factory erroring)
// propagate as an error.
func (in *Instances) Invoke(ctx context.Context, name string, params map[string]any) (model.ToolResult, error) {
	reg, ok := in.reg.entries[name]
	if !ok {
		return model.Failure("invalid tool"), nil
	}
	if err := validateParams(in.reg.schemas[name], params); err != nil {
		return model.Failure(err.Error(), "invalid_params"), nil
	}

	in.mu.Lock()
	tool, cached := in.live[name]
	if !cached {
		built, err := reg.New(in.tc)
		if err != nil {
			in.mu.Unlock()
			return model.ToolResult{}, fmt.Errorf("toolkit: construct tool %q: %w", name, err)
		}
		in.live[name] = built
		tool = built
	}
	in.mu.Unlock()

	result, err := tool.Execute(ctx, params)
	if err != nil {
		message := err.Error()
		if message == "" {
			message = "Tool execution failed"
		}
		return model.Failure(message), nil
	}
	return result, nil
}
