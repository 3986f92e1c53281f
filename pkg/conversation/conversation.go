package conversation

import (
	"github.com/nexuscore/agentkit/pkg/errs"
)

// Conversation is an ordered sequence of Messages forming one agent run's transcript.
// Invariant: at most one leading System message; a Tool message may appear only after
// an Assistant message that declared the matching tool call id; every assistant-issued
// ToolCall has exactly one following Tool message with the same id before any further
// completion is requested, and no Tool message exists without a preceding ToolCall.
type Conversation struct {
	messages []Message
}

// New constructs an empty Conversation.
func New() *Conversation { return &Conversation{} }

// FromMessages constructs a Conversation from an existing ordered slice, validating
// the Tool/ToolCall pairing invariant before accepting it.
func FromMessages(messages []Message) (*Conversation, *errs.Error) {
	c := &Conversation{messages: append([]Message{}, messages...)}
	if err := c.checkInvariants(); err != nil {
		return nil, err
	}
	return c, nil
}

// Append returns a new Conversation with m appended; the receiver is left unmodified,
// matching the append-only, immutable-snapshot data model.
func (c *Conversation) Append(m Message) *Conversation {
	next := &Conversation{messages: append(append([]Message{}, c.messages...), m)}
	return next
}

// Messages returns the ordered message log. The returned slice must not be mutated by
// the caller; it aliases the Conversation's internal storage.
func (c *Conversation) Messages() []Message { return c.messages }

// Len returns the message count.
func (c *Conversation) Len() int { return len(c.messages) }

// Filter returns the subset of messages with the given role, preserving order.
func (c *Conversation) Filter(role Role) []Message {
	var out []Message
	for _, m := range c.messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// PendingToolCalls returns the ToolCalls from the trailing Assistant message that have
// no matching Tool response yet appended — the set of calls the engine must still
// dispatch before requesting the next completion.
func (c *Conversation) PendingToolCalls() []ToolCall {
	if len(c.messages) == 0 {
		return nil
	}
	last := c.messages[len(c.messages)-1]
	if last.Role != RoleAssistant || len(last.ToolCalls) == 0 {
		return nil
	}
	answered := map[string]bool{}
	for _, m := range c.messages {
		if m.Role == RoleTool {
			answered[m.ToolCallID] = true
		}
	}
	var pending []ToolCall
	for _, tc := range last.ToolCalls {
		if !answered[tc.ID] {
			pending = append(pending, tc)
		}
	}
	return pending
}

// checkInvariants validates the §3 Conversation invariants over the current log.
func (c *Conversation) checkInvariants() *errs.Error {
	sawSystem := false
	declared := map[string]bool{}
	answered := map[string]bool{}

	for i, m := range c.messages {
		switch m.Role {
		case RoleSystem:
			if i != 0 || sawSystem {
				return errs.New(errs.KindValidation, "conversation.checkInvariants", "at most one leading System message is permitted")
			}
			sawSystem = true
		case RoleAssistant:
			for _, tc := range m.ToolCalls {
				declared[tc.ID] = true
			}
		case RoleTool:
			if !declared[m.ToolCallID] {
				return errs.New(errs.KindValidation, "conversation.checkInvariants", "orphan Tool message: no preceding ToolCall with id "+m.ToolCallID)
			}
			if answered[m.ToolCallID] {
				return errs.New(errs.KindValidation, "conversation.checkInvariants", "duplicate Tool message for id "+m.ToolCallID)
			}
			answered[m.ToolCallID] = true
		}
	}
	return nil
}
