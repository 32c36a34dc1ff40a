package model

// ParamKind tags a ParamDef's JSON-schema-like shape.
type ParamKind string

const (
	ParamString  ParamKind = "string"
	ParamNumber  ParamKind = "number"
	ParamBoolean ParamKind = "boolean"
	ParamObject  ParamKind = "object"
	ParamArray   ParamKind = "array"
)

// ParamDef is a recursive, tagged tool-parameter schema. Exactly the fields
// relevant to Kind are meaningful: Enum for ParamString, Properties for
// ParamObject, Items for ParamArray.
type ParamDef struct {
	Kind        ParamKind
	Name        string
	Required    bool
	Description string
	Default     any

	// Enum restricts a ParamString to a fixed set of values. Nil means
	// unrestricted.
	Enum []string

	// Properties enumerates a ParamObject's named fields.
	Properties []ParamDef

	// Items describes a ParamArray's element schema.
	Items *ParamDef
}

// ToolDefinition describes a single tool exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []ParamDef
	// Parallelizable is set to true by NewToolDefinition (a struct literal
	// leaves it false); false forces the tool into its own batch,
	// serialized against every other tool call in that turn.
	Parallelizable bool
}

// NewToolDefinition builds a ToolDefinition with Parallelizable defaulted
// to true.
func NewToolDefinition(name, description string, params ...ParamDef) ToolDefinition {
	return ToolDefinition{
		Name:           name,
		Description:    description,
		Parameters:     params,
		Parallelizable: true,
	}
}

// NonParallelizable returns a copy of def with Parallelizable forced false.
func (def ToolDefinition) NonParallelizable() ToolDefinition {
	def.Parallelizable = false
	return def
}
