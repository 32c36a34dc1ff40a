package main

import (
	"context"
	"fmt"
	"time"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/toolkit"
)

// demoRegistry gives the served conversation one tool, enough to exercise
// the agentic loop (stop_reason tool_use, a batch of one, the follow-up
// turn) over the SSE transport without pulling in an external dependency.
func demoRegistry() (*toolkit.Registry, error) {
	return toolkit.NewRegistry(toolkit.Registration{
		Definition: model.NewToolDefinition("current_time", "returns the current time in a named IANA timezone",
			model.ParamDef{Kind: model.ParamString, Name: "timezone", Description: "IANA zone, e.g. America/New_York; defaults to UTC"}),
		New: func(toolkit.Context) (toolkit.Tool, error) { return clockTool{}, nil },
	})
}

type clockTool struct{}

func (clockTool) Execute(ctx context.Context, params map[string]any) (model.ToolResult, error) {
	name, _ := params["timezone"].(string)
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return model.Failure(fmt.Sprintf("unknown timezone %q", name), "invalid_timezone"), nil
	}
	return model.Success(map[string]any{
		"timezone": name,
		"time":     time.Now().In(loc).Format(time.RFC3339),
	}), nil
}
