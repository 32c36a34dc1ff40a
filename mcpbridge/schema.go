package mcpbridge

import (
	"encoding/json"
	"sort"

	"github.com/simulacra-ai/conversa/model"
)

// paramDefsFromSchema converts an MCP tool's InputSchema (an arbitrary
// JSON-Schema-shaped value, round-tripped through JSON since the SDK's
// schema type is opaque to this package) into conversa's own recursive
// model.ParamDef tree — the inverse of toolkit.ParamsDocument.
func paramDefsFromSchema(schema any) []model.ParamDef {
	m := schemaToMap(schema)
	props, _ := m["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}
	required := map[string]bool{}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.ParamDef, 0, len(names))
	for _, name := range names {
		defs = append(defs, paramDefFromSchema(name, props[name], required[name]))
	}
	return defs
}

func paramDefFromSchema(name string, raw any, required bool) model.ParamDef {
	m, _ := raw.(map[string]any)
	kind := model.ParamKind(stringField(m, "type", "string"))
	def := model.ParamDef{
		Kind:        kind,
		Name:        name,
		Required:    required,
		Description: stringField(m, "description", ""),
		Default:     m["default"],
	}
	if enumRaw, ok := m["enum"].([]any); ok {
		for _, e := range enumRaw {
			if s, ok := e.(string); ok {
				def.Enum = append(def.Enum, s)
			}
		}
	}
	switch kind {
	case model.ParamObject:
		def.Properties = paramDefsFromSchema(m)
	case model.ParamArray:
		if items, ok := m["items"]; ok {
			item := paramDefFromSchema("", items, false)
			def.Items = &item
		}
	}
	return def
}

func stringField(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return fallback
}

// schemaToMap coerces any schema value — already a map[string]any, or an
// SDK-internal schema struct — into a plain map via a JSON round-trip.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
