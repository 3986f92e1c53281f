package agent

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nexuscore/agentkit/pkg/conversation"
	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/tool"
)

// Snapshot is the self-describing JSON document spec.md §4.6/§6 name for persisting a
// conversation+AgentState: the conversation messages, the initial query, the step
// count, the status discriminant (with its reason/target sub-field), and the tool
// names referenced — deliberately excluding the teacher's richer session fields
// (channel, attachments, branch ids), which have no place in this persistence format.
type Snapshot struct {
	InitialQuery  string            `json:"initialQuery"`
	StepCount     int               `json:"stepCount"`
	Status        string            `json:"status"`
	FailureReason string            `json:"reason,omitempty"`
	HandoffTarget string            `json:"target,omitempty"`
	SystemMessage string            `json:"systemMessage,omitempty"`
	Messages      []snapshotMessage `json:"messages"`
	ToolNames     []string          `json:"toolNames"`
}

type snapshotMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content"`
	ToolCalls  []snapshotToolCall `json:"toolCalls,omitempty"`
	ToolCallID string             `json:"toolCallId,omitempty"`
	Name       string             `json:"name,omitempty"`
}

type snapshotToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Encode renders state as the persistence-format JSON document.
func Encode(state AgentState) ([]byte, *errs.Error) {
	if state.Conversation == nil {
		return nil, errs.New(errs.KindValidation, "agent.Encode", "AgentState has no conversation")
	}
	snap := Snapshot{
		InitialQuery:  state.InitialQuery,
		StepCount:     state.StepCount,
		Status:        string(state.Status),
		FailureReason: string(state.FailureReason),
		HandoffTarget: state.HandoffTarget,
		SystemMessage: state.SystemMessage,
		ToolNames:     state.Tools,
	}
	for _, m := range state.Conversation.Messages() {
		sm := snapshotMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			sm.ToolCalls = append(sm.ToolCalls, snapshotToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		snap.Messages = append(snap.Messages, sm)
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, errs.Wrap(errs.KindCorrupt, "agent.Encode", err)
	}
	return b, nil
}

// Decode reconstructs an AgentState from a persisted snapshot, re-binding tool
// handlers by name from registry. A tool name referenced in the snapshot that
// registry does not have fails with MissingTool(name); a structurally invalid
// document fails with CorruptSnapshot. Unknown JSON fields are ignored (Go's
// encoding/json already does this); missing required fields are rejected explicitly.
func Decode(data []byte, registry *tool.Registry) (AgentState, *errs.Error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return AgentState{}, errs.Wrap(errs.KindCorrupt, "agent.Decode", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return AgentState{}, errs.Wrap(errs.KindCorrupt, "agent.Decode", err)
	}
	for _, field := range []string{"initialQuery", "stepCount", "status", "messages", "toolNames"} {
		if _, ok := raw[field]; !ok {
			return AgentState{}, errs.New(errs.KindCorrupt, "agent.Decode", "CorruptSnapshot: missing required field "+field)
		}
	}
	if snap.Status == "" {
		return AgentState{}, errs.New(errs.KindCorrupt, "agent.Decode", "CorruptSnapshot: missing required field status")
	}

	for _, name := range snap.ToolNames {
		if registry == nil {
			continue
		}
		if _, ok := registry.Get(name); !ok {
			return AgentState{}, errs.New(errs.KindCorrupt, "agent.Decode", "MissingTool: "+name)
		}
	}

	conv := conversation.New()
	for _, sm := range snap.Messages {
		m := conversation.Message{
			ID:         uuid.NewString(),
			Role:       conversation.Role(sm.Role),
			Content:    sm.Content,
			ToolCallID: sm.ToolCallID,
			Name:       sm.Name,
		}
		for _, tc := range sm.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, conversation.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		conv = conv.Append(m)
	}

	return AgentState{
		Conversation:  conv,
		Tools:         snap.ToolNames,
		InitialQuery:  snap.InitialQuery,
		Status:        Status(snap.Status),
		FailureReason: FailureReason(snap.FailureReason),
		HandoffTarget: snap.HandoffTarget,
		SystemMessage: snap.SystemMessage,
		StepCount:     snap.StepCount,
	}, nil
}
