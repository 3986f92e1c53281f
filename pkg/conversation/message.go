// Package conversation implements the append-only message log the Agent Engine
// operates over: Role, Message, ToolCall, and the Conversation ordering invariants.
// Grounded on pkg/models.Message from the teacher, trimmed of channel-specific fields
// (Channel, ChannelID, Direction, Attachments) that have no home in this domain.
package conversation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an LLM's request to execute a tool, carried on an Assistant Message.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one immutable entry in a Conversation's append-only log. Once
// constructed a Message is never mutated; a new Message is appended instead.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`

	// ToolCallID and Name are populated only on Role == RoleTool, identifying which
	// ToolCall this message answers.
	ToolCallID string `json:"toolCallId,omitempty"`
	Name       string `json:"name,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage constructs a Message with a fresh ID and timestamp.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantToolCallMessage constructs an Assistant message that issues one or more
// tool calls; Content may be empty if the model emitted only tool calls.
func NewAssistantToolCallMessage(content string, calls []ToolCall) Message {
	m := NewMessage(RoleAssistant, content)
	m.ToolCalls = calls
	return m
}

// NewToolMessage constructs the Tool-role response to a specific ToolCall id.
func NewToolMessage(toolCallID, name, content string) Message {
	m := NewMessage(RoleTool, content)
	m.ToolCallID = toolCallID
	m.Name = name
	return m
}
