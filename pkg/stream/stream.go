// Package stream implements the Agent Engine's streaming-event fan-out: a small
// Event variant plus Sink implementations grounded on internal/agent/event_sink.go
// (ChanSink, MultiSink, CallbackSink, NopSink), generalized from the teacher's
// session-coupled models.AgentEvent payload to the Agent Engine's own lifecycle
// events.
package stream

import "context"

// Kind tags the variant carried by an Event. The bracketing rules an Emitter
// enforces (AgentStarted first, AgentCompleted/AgentFailed last, StepStarted paired
// with StepCompleted, ToolCallStarted paired with ToolCallCompleted/ToolCallFailed)
// are documented on pkg/agent.Emitter, the only place that constructs these.
type Kind string

const (
	AgentStarted Kind = "agent_started"

	StepStarted   Kind = "step_started"
	StepCompleted Kind = "step_completed"

	TextDelta    Kind = "text_delta"
	TextComplete Kind = "text_complete"

	ToolCallStarted   Kind = "tool_call_started"
	ToolCallCompleted Kind = "tool_call_completed"
	ToolCallFailed    Kind = "tool_call_failed"

	InputGuardrailStarted    Kind = "input_guardrail_started"
	InputGuardrailCompleted  Kind = "input_guardrail_completed"
	OutputGuardrailStarted   Kind = "output_guardrail_started"
	OutputGuardrailCompleted Kind = "output_guardrail_completed"

	HandoffStarted   Kind = "handoff_started"
	HandoffCompleted Kind = "handoff_completed"

	AgentCompleted Kind = "agent_completed"
	AgentFailed    Kind = "agent_failed"
)

// Event is one item in an agent run's event stream.
type Event struct {
	Kind Kind

	RunID string
	Step  int

	Text string

	ToolCallID string
	ToolName   string

	Reason string // guardrail rejection reason, failure reason, tool handler error
	Target string // handoff target agent id
}

// Sink receives an ordered Event sequence. Implementations must be safe to call from
// multiple goroutines, matching the teacher's EventSink contract.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// ChanSink sends events to a channel, dropping them rather than blocking when the
// channel is full or ctx is done — mirrors the teacher's ChanSink.
type ChanSink struct {
	ch chan<- Event
}

// NewChanSink wraps a channel as a Sink. The channel should be buffered to avoid
// dropped events under load.
func NewChanSink(ch chan<- Event) *ChanSink { return &ChanSink{ch: ch} }

func (s *ChanSink) Emit(ctx context.Context, e Event) {
	select {
	case s.ch <- e:
	case <-ctx.Done():
	default:
	}
}

// CallbackSink wraps a plain function as a Sink, for the push-based callback form of
// the event stream.
type CallbackSink func(ctx context.Context, e Event)

func (f CallbackSink) Emit(ctx context.Context, e Event) {
	if f != nil {
		f(ctx, e)
	}
}

// MultiSink fans an Event out to every non-nil Sink it holds.
type MultiSink []Sink

// NewMultiSink constructs a MultiSink, filtering out nil entries.
func NewMultiSink(sinks ...Sink) MultiSink {
	filtered := make(MultiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}

// NopSink discards every event. Useful when a caller has no interest in the stream.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// Iterator adapts a Sink into the pull-based form: Events returns a channel fed by
// every Emit call, closed once the caller calls Close. Both the pull-based iterator
// and the push-based CallbackSink ultimately run through the same Emitter, so they
// observe identical bracketing.
type Iterator struct {
	ch chan Event
}

// NewIterator constructs an Iterator with the given channel buffer size.
func NewIterator(buffer int) *Iterator {
	return &Iterator{ch: make(chan Event, buffer)}
}

func (it *Iterator) Emit(ctx context.Context, e Event) {
	select {
	case it.ch <- e:
	case <-ctx.Done():
	}
}

// Events returns the receive-only event channel.
func (it *Iterator) Events() <-chan Event { return it.ch }

// Close closes the underlying channel. The agent engine does not use Iterator; the
// code that creates an Iterator closes it once its run reaches a terminal event.
func (it *Iterator) Close() { close(it.ch) }

var (
	_ Sink = (*ChanSink)(nil)
	_ Sink = CallbackSink(nil)
	_ Sink = MultiSink(nil)
	_ Sink = NopSink{}
	_ Sink = (*Iterator)(nil)
)
