package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/nexuscore/agentkit/pkg/conversation"
	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/guardrail"
	"github.com/nexuscore/agentkit/pkg/provider"
	"github.com/nexuscore/agentkit/pkg/schema"
	"github.com/nexuscore/agentkit/pkg/stream"
	"github.com/nexuscore/agentkit/pkg/tool"
)

// Config holds everything an Engine needs across every run it drives: the model to
// call, the guardrail chains, the available handoff targets, and the limits and
// concurrency strategy for tool batches.
type Config struct {
	Model             string
	SystemPrompt      string
	MaxSteps          int
	InputGuardrails   []guardrail.Guardrail
	OutputGuardrails  []guardrail.Guardrail
	Handoffs          []Handoff
	ToolStrategy      tool.Strategy
	MaxConcurrency    int
	CompletionOptions provider.CompletionOptions

	// DefaultSink receives this Engine's streaming events when RunOptions.Sink is
	// nil; leave unset (nil) for no streaming.
	DefaultSink stream.Sink
}

// RunOptions tunes one Run/ContinueConversation invocation.
type RunOptions struct {
	// ChainHandoffs selects whether a HandedOff AgentState causes the engine to
	// immediately drive the target agent to its own completion (true) or return the
	// HandedOff state to the caller for them to act on (false, the default —
	// resolved Open Question: handoffs are data the orchestrator acts on, not an
	// automatic recursive call).
	ChainHandoffs bool

	// Targets resolves a Handoff.Target name to the Engine that should run next,
	// consulted only when ChainHandoffs is true.
	Targets map[string]*Engine

	// Sink overrides Config.DefaultSink for this run, if non-nil.
	Sink stream.Sink

	// RunID correlates this run's events; a fresh one is generated if empty.
	RunID string
}

// Engine drives AgentState transitions for one agent definition: a model, a tool
// registry, and a guardrail/handoff configuration. Grounded on
// internal/agent/loop.go's AgenticLoop, stripped of its session/branch/job-store
// coupling down to the spec's pure immutable-snapshot state machine.
type Engine struct {
	client   provider.Client
	registry *tool.Registry
	cfg      Config
}

// NewEngine constructs an Engine over client and registry.
func NewEngine(client provider.Client, registry *tool.Registry, cfg Config) *Engine {
	return &Engine{client: client, registry: registry, cfg: cfg}
}

// Initialize builds the starting AgentState for a fresh query: a single User message,
// stepCount zero, status InProgress.
func (e *Engine) Initialize(query, runID string) AgentState {
	if runID == "" {
		runID = uuid.NewString()
	}
	conv := conversation.New().Append(conversation.NewMessage(conversation.RoleUser, query))
	return AgentState{
		Conversation:      conv,
		Tools:             e.registry.Names(),
		InitialQuery:      query,
		Status:            StatusInProgress,
		SystemMessage:     e.cfg.SystemPrompt,
		AvailableHandoffs: e.cfg.Handoffs,
		StepCount:         0,
		RunID:             runID,
	}
}

// RunStep performs exactly one step: the InProgress phase (guardrail, completion,
// transition) or the WaitingForTools phase (tool dispatch, transition back to
// InProgress), per spec.md §4.3. It is the low-level primitive Run/
// ContinueConversation loop over; calling it directly does not guarantee the full
// AgentStarted…AgentCompleted event bracket, only the per-step StepStarted/
// StepCompleted bracket.
func (e *Engine) RunStep(ctx context.Context, state AgentState, emitter *Emitter) (AgentState, error) {
	if state.Conversation == nil {
		return state, errs.New(errs.KindValidation, "agent.RunStep", "AgentState has no conversation")
	}
	if emitter == nil {
		emitter = NewEmitter(nil, state.RunID)
	}
	if ctx.Err() != nil {
		return state.failed(FailureCancelled, "context cancelled before step"), nil
	}

	switch state.Status {
	case StatusInProgress:
		return e.stepInProgress(ctx, state, emitter)
	case StatusWaitingForTools:
		return e.stepWaitingForTools(ctx, state, emitter)
	default:
		return state, nil
	}
}

func (e *Engine) stepInProgress(ctx context.Context, state AgentState, emitter *Emitter) (AgentState, error) {
	step := state.StepCount + 1
	emitter.StepStarted(ctx, step)

	latestUser := lastUserMessage(state.Conversation)
	sanitizedUserText := ""
	if latestUser != nil {
		sanitizedUserText = latestUser.Content
	}

	if len(e.cfg.InputGuardrails) > 0 && latestUser != nil {
		emitter.InputGuardrailStarted(ctx, step)
		res, gerr := guardrail.All(e.cfg.InputGuardrails...).Check(ctx, latestUser.Content)
		if gerr != nil {
			emitter.InputGuardrailCompleted(ctx, step, gerr.Error())
			emitter.StepCompleted(ctx, step)
			next := state
			next.StepCount = step
			return next.failed(FailureGuardrailRejected, gerr.Error()), nil
		}
		emitter.InputGuardrailCompleted(ctx, step, res.Reason)
		if res.Verdict == guardrail.VerdictReject {
			next := state
			next.StepCount = step
			emitter.StepCompleted(ctx, step)
			return next.failed(FailureGuardrailRejected, res.Reason), nil
		}
		if res.Verdict == guardrail.VerdictTransform {
			sanitizedUserText = res.Content
		}
	}

	req := e.buildCompletionRequest(state, sanitizedUserText)
	result, err := e.client.Complete(ctx, req)
	if err != nil {
		next := state
		next.StepCount = step
		emitter.StepCompleted(ctx, step)
		return next.failed(FailureProviderError, err.Error()), nil
	}

	next := state
	next.Conversation = state.Conversation.Append(result.Message)
	next.StepCount = step

	if len(result.Message.ToolCalls) > 0 {
		next.Status = StatusWaitingForTools
		next = next.withLog(fmt.Sprintf("model requested %d tool call(s)", len(result.Message.ToolCalls)))
		emitter.StepCompleted(ctx, step)
		return next, nil
	}

	emitter.TextComplete(ctx, step, result.Message.Content)

	if len(e.cfg.OutputGuardrails) > 0 {
		emitter.OutputGuardrailStarted(ctx, step)
		res, gerr := guardrail.All(e.cfg.OutputGuardrails...).Check(ctx, result.Message.Content)
		if gerr != nil {
			emitter.OutputGuardrailCompleted(ctx, step, gerr.Error())
			emitter.StepCompleted(ctx, step)
			return next.failed(FailureGuardrailRejected, gerr.Error()), nil
		}
		emitter.OutputGuardrailCompleted(ctx, step, res.Reason)
		if res.Verdict == guardrail.VerdictReject {
			emitter.StepCompleted(ctx, step)
			return next.failed(FailureGuardrailRejected, res.Reason), nil
		}
	}

	for _, h := range state.AvailableHandoffs {
		if h.Trigger != nil && h.Trigger(result.Message.Content) {
			next.Status = StatusHandedOff
			next.HandoffTarget = h.Target
			next = next.withLog("handoff triggered: " + h.Target)
			emitter.HandoffStarted(ctx, step, h.Target)
			emitter.StepCompleted(ctx, step)
			return next, nil
		}
	}

	next.Status = StatusCompleted
	emitter.StepCompleted(ctx, step)
	return next, nil
}

func (e *Engine) stepWaitingForTools(ctx context.Context, state AgentState, emitter *Emitter) (AgentState, error) {
	step := state.StepCount + 1
	emitter.StepStarted(ctx, step)

	pending := state.Conversation.PendingToolCalls()
	calls := make([]tool.Call, len(pending))
	for i, tc := range pending {
		calls[i] = tool.Call{CallID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
	}

	for _, tc := range pending {
		emitter.ToolCallStarted(ctx, step, tc.ID, tc.Name)
	}

	results := e.registry.InvokeBatch(ctx, calls, e.cfg.ToolStrategy, e.cfg.MaxConcurrency)

	conv := state.Conversation
	for i, tc := range pending {
		res := results[i]
		var body string
		if res.IsError() {
			body = res.Err.Error()
			emitter.ToolCallFailed(ctx, step, tc.ID, tc.Name, body)
		} else {
			body = encodeToolResult(res.Value)
			emitter.ToolCallCompleted(ctx, step, tc.ID, tc.Name)
		}
		conv = conv.Append(conversation.NewToolMessage(tc.ID, tc.Name, body))
	}

	next := state
	next.Conversation = conv
	next.StepCount = step
	next.Status = StatusInProgress
	next = next.withLog(fmt.Sprintf("resolved %d tool call(s)", len(pending)))
	emitter.StepCompleted(ctx, step)
	return next, nil
}

// Run is initialize followed by runStep looped until a terminal status or
// stepCount == MaxSteps (which then fails with StepLimitExceeded), per spec.md §4.3.
// MaxSteps == 0 is a boundary case: the initialized state is returned unchanged,
// still InProgress, with no steps attempted.
func (e *Engine) Run(ctx context.Context, query string, opts RunOptions) (AgentState, error) {
	state := e.Initialize(query, opts.RunID)
	if e.cfg.MaxSteps == 0 {
		return state, nil
	}
	return e.drive(ctx, state, opts)
}

// ContinueConversation appends newUserMessage to prior's conversation and re-enters
// the run loop with stepCount reset to zero.
func (e *Engine) ContinueConversation(ctx context.Context, prior AgentState, newUserMessage string, opts RunOptions) (AgentState, error) {
	if prior.Conversation == nil {
		return prior, errs.New(errs.KindValidation, "agent.ContinueConversation", "prior AgentState has no conversation")
	}
	state := prior
	state.Conversation = prior.Conversation.Append(conversation.NewMessage(conversation.RoleUser, newUserMessage))
	state.Status = StatusInProgress
	state.StepCount = 0
	if e.cfg.MaxSteps == 0 {
		return state, nil
	}
	return e.drive(ctx, state, opts)
}

func (e *Engine) drive(ctx context.Context, state AgentState, opts RunOptions) (AgentState, error) {
	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	sink := opts.Sink
	if sink == nil {
		sink = e.cfg.DefaultSink
	}
	emitter := NewEmitter(sink, state.RunID)
	emitter.AgentStarted(ctx)

	cur := e
	for !state.Status.Terminal() {
		if state.StepCount >= cur.cfg.MaxSteps {
			state = state.failed(FailureStepLimitExceeded, "step limit exceeded")
			break
		}
		next, err := cur.RunStep(ctx, state, emitter)
		if err != nil {
			emitter.AgentFailed(ctx, err.Error())
			return next, err
		}
		state = next

		if state.Status == StatusHandedOff {
			emitter.HandoffCompleted(ctx, state.StepCount, state.HandoffTarget)
			if !opts.ChainHandoffs {
				break
			}
			target, ok := opts.Targets[state.HandoffTarget]
			if !ok {
				break
			}
			h := findHandoff(cur.cfg.Handoffs, state.HandoffTarget)
			state = buildHandoffState(state, h, target.cfg.SystemPrompt, HandoffPayload{})
			cur = target
		}
	}

	if state.Status == StatusFailed {
		emitter.AgentFailed(ctx, string(state.FailureReason)+": "+state.FailureDetail)
	} else {
		emitter.AgentCompleted(ctx)
	}
	return state, nil
}

func findHandoff(handoffs []Handoff, target string) Handoff {
	for _, h := range handoffs {
		if h.Target == target {
			return h
		}
	}
	return Handoff{Target: target}
}

func (e *Engine) buildCompletionRequest(state AgentState, sanitizedLatestUserText string) provider.CompletionRequest {
	return provider.CompletionRequest{
		Model:    e.cfg.Model,
		System:   state.SystemMessage,
		Messages: conversationToProviderMessages(state.Conversation, sanitizedLatestUserText),
		Tools:    e.toolDefinitions(),
		Options:  e.cfg.CompletionOptions,
	}
}

// conversationToProviderMessages renders conv as provider-facing messages, swapping
// only the trailing User message's content for sanitizedLatestUserText — the
// non-mutation invariant means the swap never touches conv itself.
func conversationToProviderMessages(conv *conversation.Conversation, sanitizedLatestUserText string) []provider.Message {
	msgs := conv.Messages()
	lastUserIdx := -1
	for i, m := range msgs {
		if m.Role == conversation.RoleUser {
			lastUserIdx = i
		}
	}
	out := make([]provider.Message, len(msgs))
	for i, m := range msgs {
		content := m.Content
		if i == lastUserIdx {
			content = sanitizedLatestUserText
		}
		out[i] = provider.Message{
			Role:       m.Role,
			Content:    content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
	}
	return out
}

func (e *Engine) toolDefinitions() []provider.ToolDefinition {
	names := e.registry.Names()
	sort.Strings(names)
	defs := make([]provider.ToolDefinition, 0, len(names))
	for _, n := range names {
		d, ok := e.registry.Get(n)
		if !ok {
			continue
		}
		defs = append(defs, provider.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schema.Render(d.Schema),
		})
	}
	return defs
}

func encodeToolResult(value any) string {
	if value == nil {
		return "null"
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}
