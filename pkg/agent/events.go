package agent

import (
	"context"

	"github.com/nexuscore/agentkit/pkg/stream"
)

// Emitter is the single call site that knows the streaming-event bracketing rules
// (spec.md §4.3/§8 invariant 3): AgentStarted first, AgentCompleted/AgentFailed
// last, every StepStarted matched by a StepCompleted, every ToolCallStarted matched
// by exactly one ToolCallCompleted/ToolCallFailed before the enclosing
// StepCompleted. runStep never writes to a stream.Sink directly; it always goes
// through an Emitter. Grounded on internal/agent/event_emitter.go.
type Emitter struct {
	sink  stream.Sink
	runID string
}

// NewEmitter constructs an Emitter over sink; a nil sink makes every call a no-op.
func NewEmitter(sink stream.Sink, runID string) *Emitter {
	if sink == nil {
		sink = stream.NopSink{}
	}
	return &Emitter{sink: sink, runID: runID}
}

func (e *Emitter) emit(ctx context.Context, ev stream.Event) {
	ev.RunID = e.runID
	e.sink.Emit(ctx, ev)
}

func (e *Emitter) AgentStarted(ctx context.Context) {
	e.emit(ctx, stream.Event{Kind: stream.AgentStarted})
}

func (e *Emitter) StepStarted(ctx context.Context, step int) {
	e.emit(ctx, stream.Event{Kind: stream.StepStarted, Step: step})
}

func (e *Emitter) StepCompleted(ctx context.Context, step int) {
	e.emit(ctx, stream.Event{Kind: stream.StepCompleted, Step: step})
}

func (e *Emitter) TextDelta(ctx context.Context, step int, text string) {
	e.emit(ctx, stream.Event{Kind: stream.TextDelta, Step: step, Text: text})
}

func (e *Emitter) TextComplete(ctx context.Context, step int, text string) {
	e.emit(ctx, stream.Event{Kind: stream.TextComplete, Step: step, Text: text})
}

func (e *Emitter) ToolCallStarted(ctx context.Context, step int, id, name string) {
	e.emit(ctx, stream.Event{Kind: stream.ToolCallStarted, Step: step, ToolCallID: id, ToolName: name})
}

func (e *Emitter) ToolCallCompleted(ctx context.Context, step int, id, name string) {
	e.emit(ctx, stream.Event{Kind: stream.ToolCallCompleted, Step: step, ToolCallID: id, ToolName: name})
}

func (e *Emitter) ToolCallFailed(ctx context.Context, step int, id, name, reason string) {
	e.emit(ctx, stream.Event{Kind: stream.ToolCallFailed, Step: step, ToolCallID: id, ToolName: name, Reason: reason})
}

func (e *Emitter) InputGuardrailStarted(ctx context.Context, step int) {
	e.emit(ctx, stream.Event{Kind: stream.InputGuardrailStarted, Step: step})
}

func (e *Emitter) InputGuardrailCompleted(ctx context.Context, step int, reason string) {
	e.emit(ctx, stream.Event{Kind: stream.InputGuardrailCompleted, Step: step, Reason: reason})
}

func (e *Emitter) OutputGuardrailStarted(ctx context.Context, step int) {
	e.emit(ctx, stream.Event{Kind: stream.OutputGuardrailStarted, Step: step})
}

func (e *Emitter) OutputGuardrailCompleted(ctx context.Context, step int, reason string) {
	e.emit(ctx, stream.Event{Kind: stream.OutputGuardrailCompleted, Step: step, Reason: reason})
}

func (e *Emitter) HandoffStarted(ctx context.Context, step int, target string) {
	e.emit(ctx, stream.Event{Kind: stream.HandoffStarted, Step: step, Target: target})
}

func (e *Emitter) HandoffCompleted(ctx context.Context, step int, target string) {
	e.emit(ctx, stream.Event{Kind: stream.HandoffCompleted, Step: step, Target: target})
}

func (e *Emitter) AgentCompleted(ctx context.Context) {
	e.emit(ctx, stream.Event{Kind: stream.AgentCompleted})
}

func (e *Emitter) AgentFailed(ctx context.Context, reason string) {
	e.emit(ctx, stream.Event{Kind: stream.AgentFailed, Reason: reason})
}
