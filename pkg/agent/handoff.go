package agent

import "github.com/nexuscore/agentkit/pkg/conversation"

// Handoff describes one other agent this engine's runs may transfer control to.
// Grounded on internal/multiagent/types.go's HandoffRule, trimmed from its richer
// trigger-type/priority/context-mode model down to spec.md's exact
// {target, reason?, preserveContext, transferSystemMessage} shape plus a single
// Trigger predicate standing in for the teacher's RoutingTrigger set.
type Handoff struct {
	Target string
	Reason string

	// PreserveContext selects whether the target's AgentState starts from the full
	// prior conversation (true) or only the latest User message (false).
	PreserveContext bool

	// TransferSystemMessage, when true, carries the source's SystemMessage into the
	// target state; when false the target's own SystemMessage (set by the caller
	// invoking the target) is what's used instead — the two are never concatenated.
	TransferSystemMessage bool

	// Trigger decides whether this handoff fires, inspecting the assistant message
	// that just completed a step. A nil Trigger never fires.
	Trigger func(assistantContent string) bool
}

// HandoffPayload is supplementary handoff context (a Summary and a Variables map),
// grounded on the teacher's multiagent.SharedContext. buildHandoffState accepts one
// but does not copy it into the new AgentState, and the engine passes an empty
// payload, so a target agent receives only the conversation/system-message transfer.
type HandoffPayload struct {
	Summary   string
	Variables map[string]string
}

// buildHandoffState constructs the new AgentState a fired Handoff produces, per
// spec.md §4.3: conversation is either the full prior conversation or just the
// latest User message; the target's own SystemMessage wins unless
// TransferSystemMessage is set (resolved Open Question 3).
func buildHandoffState(prior AgentState, h Handoff, targetSystemMessage string, payload HandoffPayload) AgentState {
	var conv *conversation.Conversation
	if h.PreserveContext {
		conv = prior.Conversation
	} else {
		conv = conversation.New()
		latest := lastUserMessage(prior.Conversation)
		if latest != nil {
			conv = conv.Append(*latest)
		}
	}

	sysMsg := targetSystemMessage
	if h.TransferSystemMessage {
		sysMsg = prior.SystemMessage
	}

	next := AgentState{
		Conversation:      conv,
		Tools:             prior.Tools,
		InitialQuery:      prior.InitialQuery,
		Status:            StatusInProgress,
		SystemMessage:     sysMsg,
		AvailableHandoffs: prior.AvailableHandoffs,
		StepCount:         0,
		RunID:             prior.RunID,
	}
	msg := "handed off to " + h.Target
	if h.Reason != "" {
		msg += ": " + h.Reason
	}
	return next.withLog(msg)
}

func lastUserMessage(c *conversation.Conversation) *conversation.Message {
	if c == nil {
		return nil
	}
	users := c.Filter(conversation.RoleUser)
	if len(users) == 0 {
		return nil
	}
	m := users[len(users)-1]
	return &m
}
