package agent

// StepType identifies a progress event emitted during a turn.
type StepType string

const (
	// StepPlan fires when the assistant emits visible text alongside tool
	// requests, once per round.
	StepPlan StepType = "plan"
	// StepToolCall fires when a tool request is dispatched.
	StepToolCall StepType = "tool_call"
	// StepToolResult fires when a dispatched request has resolved.
	StepToolResult StepType = "tool_result"
	// StepFinal fires exactly once, with the turn's answer text.
	StepFinal StepType = "final"
)

// StepEvent is a progress notification. Events are purely observational and
// never affect control flow.
type StepEvent struct {
	Type  StepType
	Round int

	// Content carries plan text or the final answer.
	Content string

	// Tool fields, set for tool_call and tool_result events.
	ToolCallID    string
	ToolName      string
	ToolArguments map[string]interface{}
	ToolResult    string
	ToolFailed    bool
}

// StepFunc receives progress events during ProcessQuery. It is called from
// the turn's goroutine; a slow callback slows the turn down.
type StepFunc func(event StepEvent)
