package toolkit

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/simulacra-ai/conversa/model"
)

// paramSchema renders a single model.ParamDef as a JSON Schema fragment.
func paramSchema(p model.ParamDef) map[string]any {
	s := map[string]any{"type": string(p.Kind)}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if p.Default != nil {
		s["default"] = p.Default
	}
	if len(p.Enum) > 0 {
		enum := make([]any, len(p.Enum))
		for i, v := range p.Enum {
			enum[i] = v
		}
		s["enum"] = enum
	}
	switch p.Kind {
	case model.ParamObject:
		props := make(map[string]any, len(p.Properties))
		var required []any
		for _, child := range p.Properties {
			props[child.Name] = paramSchema(child)
			if child.Required {
				required = append(required, child.Name)
			}
		}
		s["properties"] = props
		if len(required) > 0 {
			s["required"] = required
		}
	case model.ParamArray:
		if p.Items != nil {
			s["items"] = paramSchema(*p.Items)
		}
	}
	return s
}

// ParamsDocument assembles a tool's top-level parameter list into a single
// JSON Schema object document, the shape a jsonschema.Compiler accepts.
// Exported so provider adapters can render the same schema as a tool's
// provider-native input schema rather than maintaining a second renderer.
func ParamsDocument(params []model.ParamDef) map[string]any {
	return paramsDocument(params)
}

func paramsDocument(params []model.ParamDef) map[string]any {
	props := make(map[string]any, len(params))
	var required []any
	for _, p := range params {
		props[p.Name] = paramSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// compileSchema compiles def's parameters into a reusable jsonschema.Schema
// under a resource name unique to the tool, so two tools with differently
// shaped parameters of the same name never collide in the compiler.
func compileSchema(def model.ToolDefinition) (*jsonschema.Schema, error) {
	resource := "conversa://toolkit/" + def.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, paramsDocument(def.Parameters)); err != nil {
		return nil, fmt.Errorf("toolkit: add schema resource for %q: %w", def.Name, err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("toolkit: compile schema for %q: %w", def.Name, err)
	}
	return schema, nil
}

// validateParams checks params against schema, returning a single
// human-readable error describing the first violation.
func validateParams(schema *jsonschema.Schema, params map[string]any) error {
	doc := make(map[string]any, len(params))
	for k, v := range params {
		doc[k] = v
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	return nil
}
