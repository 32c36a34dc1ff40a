package mcpbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simulacra-ai/conversa/model"
)

func TestParamDefsFromSchemaNested(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{
				"type":        "string",
				"description": "city name",
			},
			"days": map[string]any{
				"type": "number",
			},
			"units": map[string]any{
				"type": "string",
				"enum": []any{"metric", "imperial"},
			},
			"forecast": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"day": map[string]any{"type": "string"},
					},
				},
			},
		},
		"required": []any{"city"},
	}

	defs := paramDefsFromSchema(schema)
	require.Len(t, defs, 4)

	byName := map[string]model.ParamDef{}
	for _, d := range defs {
		byName[d.Name] = d
	}

	assert.True(t, byName["city"].Required)
	assert.Equal(t, model.ParamString, byName["city"].Kind)
	assert.Equal(t, "city name", byName["city"].Description)

	assert.False(t, byName["days"].Required)
	assert.Equal(t, model.ParamNumber, byName["days"].Kind)

	assert.Equal(t, []string{"metric", "imperial"}, byName["units"].Enum)

	require.NotNil(t, byName["forecast"].Items)
	assert.Equal(t, model.ParamObject, byName["forecast"].Items.Kind)
	require.Len(t, byName["forecast"].Items.Properties, 1)
	assert.Equal(t, "day", byName["forecast"].Items.Properties[0].Name)
}

func TestParamDefsFromSchemaEmpty(t *testing.T) {
	assert.Nil(t, paramDefsFromSchema(nil))
	assert.Nil(t, paramDefsFromSchema(map[string]any{"type": "object"}))
}
