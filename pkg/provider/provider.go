// Package provider implements the Provider Abstraction: a uniform completion /
// streaming / embedding contract multiplexed across remote LLM providers, handling
// authentication, request shaping, response normalization, token accounting, and
// retry/rate-limit semantics. Grounded on internal/agent/provider_types.go's
// LLMProvider interface, generalized from its session/runtime-coupled signatures to a
// pure value-in/value-out contract.
package provider

import (
	"context"

	"github.com/nexuscore/agentkit/pkg/conversation"
)

// Role is an alias of conversation.Role, so provider-facing messages use the same
// role values as the Agent Engine's conversation package.
type Role = conversation.Role

const (
	RoleSystem    = conversation.RoleSystem
	RoleUser      = conversation.RoleUser
	RoleAssistant = conversation.RoleAssistant
	RoleTool      = conversation.RoleTool
)

// Message is the canonical per-turn request shape a Client sends upstream.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []conversation.ToolCall
	ToolCallID string
	Name       string
}

// ReasoningEffort selects how much deliberation a model should apply, for providers
// that support it.
type ReasoningEffort string

const (
	ReasoningNone   ReasoningEffort = "none"
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// ToolChoice selects whether/which tool the model must call.
type ToolChoice struct {
	Mode string // "auto" | "none" | "required" | "named"
	Name string // populated when Mode == "named"
}

var (
	ToolChoiceAuto     = ToolChoice{Mode: "auto"}
	ToolChoiceNone     = ToolChoice{Mode: "none"}
	ToolChoiceRequired = ToolChoice{Mode: "required"}
)

// ToolChoiceNamed requires the model call exactly the named tool.
func ToolChoiceNamed(name string) ToolChoice { return ToolChoice{Mode: "named", Name: name} }

// CompletionOptions tunes a single completion/stream request.
type CompletionOptions struct {
	Temperature     *float64
	TopP            *float64
	MaxTokens       int
	StopSequences   []string
	ReasoningEffort ReasoningEffort
	ToolChoice      ToolChoice
}

// ToolDefinition is the provider-facing shape of one tool declaration (already
// rendered by pkg/schema).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is everything a Client needs to produce one completion.
type CompletionRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolDefinition
	Options  CompletionOptions
}

// Usage is token accounting for a single completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason is the tagged reason a completion stopped.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishOther         FinishReason = "other"
)

// CompletionResult is the normalized response to a complete() call.
type CompletionResult struct {
	Message      conversation.Message
	Usage        Usage
	Model        string
	FinishReason FinishReason
}

// StreamEventKind tags the variant carried by a StreamEvent.
type StreamEventKind string

const (
	EventTextDelta        StreamEventKind = "text_delta"
	EventToolCallPartial   StreamEventKind = "tool_call_partial"
	EventToolCallComplete StreamEventKind = "tool_call_complete"
	EventUsage            StreamEventKind = "usage"
	EventFinish           StreamEventKind = "finish"
)

// StreamEvent is one ordered item delivered to a stream Sink. Event ordering
// guarantee: for any tool call, its ToolCallComplete precedes Finish; Usage precedes
// Finish.
type StreamEvent struct {
	Kind StreamEventKind

	TextDelta string

	ToolCallID           string
	ToolCallName         string
	ToolCallArgsFragment string
	ToolCall             *conversation.ToolCall

	Usage Usage

	FinishReason FinishReason
}

// Sink receives an ordered StreamEvent sequence from Client.Stream.
type Sink func(StreamEvent)

// EmbeddingRequest asks a Client to embed a batch of texts.
type EmbeddingRequest struct {
	Model string
	Input []string
}

// EmbeddingResult carries one float32 vector per EmbeddingRequest.Input entry, same
// order, plus token usage.
type EmbeddingResult struct {
	Vectors [][]float32
	Usage   Usage
}

// Model describes one model a Client's upstream exposes.
type Model struct {
	ID               string
	Name             string
	ContextWindow    int
	SupportsVision   bool
	SupportsTools    bool
	SupportsEmbedding bool
}

// Client is the uniform contract every provider adapter implements.
type Client interface {
	// Name is the stable, lowercase provider identifier ("anthropic", "openai", ...).
	Name() string

	// Complete performs one non-streaming completion.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)

	// Stream performs one completion, delivering events to sink as they arrive.
	Stream(ctx context.Context, req CompletionRequest, sink Sink) (CompletionResult, error)

	// Embed computes embeddings for a batch of texts. An empty batch returns an empty
	// result without making a network call.
	Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResult, error)

	// Models lists the models this Client's upstream currently exposes.
	Models(ctx context.Context) ([]Model, error)
}
