package model

// StopReason normalizes the provider-specific reason generation stopped.
// Provider adapters must map their native stop reason onto one of these.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
	StopError        StopReason = "error"
	StopOther        StopReason = "other"
)

// Request is the normalized shape handed to a Provider.
type Request struct {
	Messages []Message
	Tools    []ToolDefinition
	System   string
}

// CheckpointState identifies the last message included in a summary. A
// CheckpointState.MessageID must refer to a message currently in the
// owning conversation; enforcing that is the loader's responsibility (see
// the conversation package's Load).
type CheckpointState struct {
	MessageID string
	Summary   string
}
