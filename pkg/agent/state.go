// Package agent implements the Agent Engine: a state-machine function runStep over
// an immutable AgentState snapshot, grounded on internal/agent/loop.go's AgenticLoop
// (Init/Stream/ExecuteTools/Continue phases) and internal/multiagent/types.go's
// handoff model, both stripped of the teacher's session/branch/job-store coupling
// down to the spec's pure value-in/value-out data model.
package agent

import (
	"github.com/nexuscore/agentkit/pkg/conversation"
)

// Status is the tagged phase of an AgentState. Completed, Failed, and HandedOff are
// terminal; InProgress and WaitingForTools accept further runStep calls.
type Status string

const (
	StatusInProgress      Status = "in_progress"
	StatusWaitingForTools Status = "waiting_for_tools"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusHandedOff       Status = "handed_off"
)

// Terminal reports whether no further runStep call is meaningful for this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusHandedOff:
		return true
	default:
		return false
	}
}

// FailureReason tags why a Failed AgentState stopped making progress.
type FailureReason string

const (
	FailureNone              FailureReason = ""
	FailureGuardrailRejected FailureReason = "guardrail_rejected"
	FailureStepLimitExceeded FailureReason = "step_limit_exceeded"
	FailureProviderError     FailureReason = "provider_error"
	FailureCancelled         FailureReason = "cancelled"
)

// LogEntry is one line of the AgentState's running diagnostic log — which step did
// what, which guardrail fired, which tool failed — kept separate from the
// conversation transcript itself.
type LogEntry struct {
	Step    int
	Message string
}

// AgentState is the immutable snapshot spec.md §3 names: conversation, tools,
// initialQuery, status, logs, systemMessage, availableHandoffs, stepCount. Every
// transition (runStep, run, continueConversation) returns a new AgentState; the
// receiver passed in is never mutated.
type AgentState struct {
	Conversation *conversation.Conversation
	Tools        []string
	InitialQuery string

	Status        Status
	FailureReason FailureReason
	FailureDetail string // the guardrail rejection reason / provider error message

	HandoffTarget string

	Logs []LogEntry

	SystemMessage     string
	AvailableHandoffs []Handoff

	StepCount int

	// RunID correlates every event this run emits, threaded through unchanged across
	// transitions. Grounded on the teacher's
	// observability.AddRunID context convention.
	RunID string
}

func (s AgentState) withLog(message string) AgentState {
	s.Logs = append(append([]LogEntry{}, s.Logs...), LogEntry{Step: s.StepCount, Message: message})
	return s
}

func (s AgentState) failed(reason FailureReason, detail string) AgentState {
	s.Status = StatusFailed
	s.FailureReason = reason
	s.FailureDetail = detail
	return s.withLog(detail)
}
