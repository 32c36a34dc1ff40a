package model

import "encoding/json"

// ToolResult is a tool invocation's outcome. A successful result carries
// arbitrary extra fields the tool author chose to return; a failed result
// carries a human-readable message and an optional machine-readable error
// code. It marshals to a flat shape
// ({"result":true, ...extra} or {"result":false,"message":...,"error":...})
// rather than nesting Extra under its own key, since tools and model
// providers alike expect a flat JSON object back.
type ToolResult struct {
	Result bool
	Extra  map[string]any
	// Message explains a failure. Empty when Result is true.
	Message string
	// Error is an optional machine-readable error code, set only when
	// Result is false.
	Error string
}

// Success builds a successful ToolResult carrying extra as top-level
// fields.
func Success(extra map[string]any) ToolResult {
	return ToolResult{Result: true, Extra: extra}
}

// Failure builds a failed ToolResult.
func Failure(message string, errCode ...string) ToolResult {
	r := ToolResult{Result: false, Message: message}
	if len(errCode) > 0 {
		r.Error = errCode[0]
	}
	return r
}

// MarshalJSON flattens Extra's keys alongside "result" rather than nesting
// them, so a tool's bespoke fields (e.g. "temp":18) sit next to "result" at
// the top level, matching what model providers expect in a tool_result
// payload.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Extra)+3)
	flat["result"] = r.Result
	if r.Result {
		for k, v := range r.Extra {
			if k == "result" {
				continue
			}
			flat[k] = v
		}
	} else {
		flat["message"] = r.Message
		if r.Error != "" {
			flat["error"] = r.Error
		}
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reconstructs a ToolResult from its flat wire shape.
func (r *ToolResult) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	ok, _ := flat["result"].(bool)
	r.Result = ok
	delete(flat, "result")
	if ok {
		r.Extra = flat
		r.Message = ""
		r.Error = ""
		return nil
	}
	if msg, ok := flat["message"].(string); ok {
		r.Message = msg
	}
	if e, ok := flat["error"].(string); ok {
		r.Error = e
	}
	r.Extra = nil
	return nil
}
