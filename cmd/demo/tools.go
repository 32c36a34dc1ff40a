package main

import (
	"context"
	"fmt"
	"time"

	"github.com/simulacra-ai/conversa/model"
	"github.com/simulacra-ai/conversa/toolkit"
)

// demoRegistry builds the small, fixed toolkit this CLI exposes to the
// model: a clock tool and a calculator, each stateless and bound the same
// way regardless of the Context it receives, the same shape mcpbridge
// uses for tools whose identity doesn't vary per workflow.
func demoRegistry() (*toolkit.Registry, error) {
	return toolkit.NewRegistry(
		toolkit.Registration{
			Definition: model.NewToolDefinition("current_time", "returns the current time in a named IANA timezone",
				model.ParamDef{Kind: model.ParamString, Name: "timezone", Description: "IANA zone, e.g. America/New_York; defaults to UTC"}),
			New: func(toolkit.Context) (toolkit.Tool, error) { return clockTool{}, nil },
		},
		toolkit.Registration{
			Definition: model.NewToolDefinition("calculate", "evaluates a simple arithmetic expression over two numbers",
				model.ParamDef{Kind: model.ParamNumber, Name: "a", Required: true},
				model.ParamDef{Kind: model.ParamString, Name: "op", Required: true, Enum: []string{"add", "sub", "mul", "div"}},
				model.ParamDef{Kind: model.ParamNumber, Name: "b", Required: true}),
			New: func(toolkit.Context) (toolkit.Tool, error) { return calculatorTool{}, nil },
		},
	)
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
	now := time.Now().In(loc)
	return model.Success(map[string]any{
		"timezone": name,
		"time":     now.Format(time.RFC3339),
	}), nil
}

type calculatorTool struct{}

func (calculatorTool) Execute(ctx context.Context, params map[string]any) (model.ToolResult, error) {
	a, _ := params["a"].(float64)
	b, _ := params["b"].(float64)
	op, _ := params["op"].(string)

	var result float64
	switch op {
	case "add":
		result = a + b
	case "sub":
		result = a - b
	case "mul":
		result = a * b
	case "div":
		if b == 0 {
			return model.Failure("division by zero", "invalid_args"), nil
		}
		result = a / b
	default:
		return model.Failure(fmt.Sprintf("unknown op %q", op), "invalid_args"), nil
	}
	return model.Success(map[string]any{"result": result}), nil
}
