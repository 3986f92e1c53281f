package stream

import (
	"context"
	"testing"
)

func TestMultiSink_FansOutToEveryChild(t *testing.T) {
	var a, b []Event
	sinkA := CallbackSink(func(_ context.Context, e Event) { a = append(a, e) })
	sinkB := CallbackSink(func(_ context.Context, e Event) { b = append(b, e) })

	m := NewMultiSink(sinkA, nil, sinkB)
	m.Emit(context.Background(), Event{Kind: AgentStarted})

	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected both sinks to receive the event, got a=%d b=%d", len(a), len(b))
	}
}

func TestChanSink_DropsWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	s := NewChanSink(ch)

	s.Emit(context.Background(), Event{Kind: AgentStarted})
	s.Emit(context.Background(), Event{Kind: AgentCompleted}) // channel full, dropped rather than blocking

	if len(ch) != 1 {
		t.Fatalf("expected exactly one buffered event, got %d", len(ch))
	}
	if got := <-ch; got.Kind != AgentStarted {
		t.Errorf("expected the first event to survive, got %v", got.Kind)
	}
}

func TestIterator_PullBasedForm(t *testing.T) {
	it := NewIterator(4)
	go func() {
		it.Emit(context.Background(), Event{Kind: AgentStarted})
		it.Emit(context.Background(), Event{Kind: AgentCompleted})
		it.Close()
	}()

	var got []Event
	for e := range it.Events() {
		got = append(got, e)
	}
	if len(got) != 2 || got[0].Kind != AgentStarted || got[1].Kind != AgentCompleted {
		t.Errorf("unexpected event sequence: %+v", got)
	}
}

func TestNopSink_DiscardsSilently(t *testing.T) {
	NopSink{}.Emit(context.Background(), Event{Kind: AgentStarted}) // must not panic
}
