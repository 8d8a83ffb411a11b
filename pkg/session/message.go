package session

import (
	"encoding/json"
	"fmt"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single conversation turn. Each role has its own variant so a
// tool message cannot exist without a call ID and a plain assistant message
// cannot carry tool requests by accident.
type Message interface {
	Role() string
}

// SystemMessage carries the fixed system instruction.
type SystemMessage struct {
	Content string `json:"content"`
}

// Role returns the message role.
func (SystemMessage) Role() string { return RoleSystem }

// UserMessage carries user input.
type UserMessage struct {
	Content string `json:"content"`
}

// Role returns the message role.
func (UserMessage) Role() string { return RoleUser }

// ToolRequest is a single tool invocation requested by the model.
// Arguments is the raw JSON text exactly as the model produced it.
type ToolRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// AssistantMessage carries model output. Content may be empty when the
// message only requests tools.
type AssistantMessage struct {
	Content      string        `json:"content,omitempty"`
	ToolRequests []ToolRequest `json:"tool_calls,omitempty"`
}

// Role returns the message role.
func (AssistantMessage) Role() string { return RoleAssistant }

// ToolMessage carries one tool result. CallID must match a ToolRequest
// emitted by the immediately preceding assistant message.
type ToolMessage struct {
	CallID  string `json:"tool_call_id"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// Role returns the message role.
func (ToolMessage) Role() string { return RoleTool }

// envelope is the wire-neutral JSON form used for size accounting,
// compaction prompts and persistence.
type envelope struct {
	Role       string        `json:"role"`
	Content    string        `json:"content,omitempty"`
	ToolCalls  []ToolRequest `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	ToolName   string        `json:"tool_name,omitempty"`
}

func toEnvelope(msg Message) envelope {
	switch m := msg.(type) {
	case SystemMessage:
		return envelope{Role: RoleSystem, Content: m.Content}
	case UserMessage:
		return envelope{Role: RoleUser, Content: m.Content}
	case AssistantMessage:
		return envelope{Role: RoleAssistant, Content: m.Content, ToolCalls: m.ToolRequests}
	case ToolMessage:
		return envelope{Role: RoleTool, Content: m.Content, ToolCallID: m.CallID, ToolName: m.Name}
	default:
		return envelope{Role: msg.Role()}
	}
}

// Serialize renders messages as a JSON array of role-tagged objects.
func Serialize(messages []Message) ([]byte, error) {
	envelopes := make([]envelope, 0, len(messages))
	for _, msg := range messages {
		envelopes = append(envelopes, toEnvelope(msg))
	}

	data, err := json.Marshal(envelopes)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize messages: %w", err)
	}
	return data, nil
}

// SerializedSize reports the byte length of the serialized history.
// Used by the compactor as its trigger metric.
func SerializedSize(messages []Message) int {
	data, err := Serialize(messages)
	if err != nil {
		return 0
	}
	return len(data)
}
