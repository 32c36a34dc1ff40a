// Package toolkit defines the contract a tool implements to be callable
// from the agentic loop: a factory bound to a per-workflow Context, an
// Execute method returning a model.ToolResult, and a Registry that
// resolves tool names to definitions and instances and validates
// invocation parameters against each tool's declared schema.
package toolkit

import (
	"context"

	"github.com/simulacra-ai/conversa/conversation"
	"github.com/simulacra-ai/conversa/model"
)

type (
	// WorkflowHandle is the slice of a running workflow a Tool is allowed
	// to touch: queueing and clearing follow-up prompts.
	// It is declared here, rather than imported from the workflow
	// package, so toolkit has no dependency on workflow (workflow depends
	// on toolkit, not the reverse).
	WorkflowHandle interface {
		QueueMessage(text string)
		ClearQueue()
	}

	// Context is the value a tool's Factory receives at construction
	// time: the conversation and workflow it is executing under, plus
	// whatever context data the workflow tree was seeded or merged with.
	// Data is shared by reference across every tool invoked within the
	// same workflow and its children; tools treat it as read-only.
	Context struct {
		Conversation *conversation.Conversation
		Workflow     WorkflowHandle
		Data         map[string]any
	}

	// Tool is a single invocable tool instance, constructed fresh (or
	// reused, per Registry's memoization) for a workflow's lifetime.
	// Execute must never panic; any failure should be returned as an
	// error, which the caller reifies into a failed model.ToolResult.
	Tool interface {
		Execute(ctx context.Context, params map[string]any) (model.ToolResult, error)
	}

	// Factory builds a Tool bound to tc. A Factory may not fail during
	// construction that represents a caller mistake (unknown tool names
	// are the Registry's concern, not the Factory's) but may return an
	// error for environment-level setup failures (e.g. a missing
	// credential it needs up front).
	Factory func(tc Context) (Tool, error)

	// Registration pairs a tool's advertised definition with the factory
	// that builds instances of it.
	Registration struct {
		Definition model.ToolDefinition
		New        Factory
	}
)
