// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// provider.Client contract. Grounded on internal/agent/providers/anthropic.go,
// generalized from the teacher's session/runtime-coupled signatures to pure
// request/response values, and routed through provider.WithRetry instead of the
// teacher's own ad hoc retry loop.
package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexuscore/agentkit/pkg/conversation"
	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/provider"
)

// Client implements provider.Client for Anthropic's Messages API.
type Client struct {
	sdk          anthropic.Client
	defaultModel string
}

// New constructs a Client from cfg. cfg.APIKey is required.
func New(cfg provider.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.New(errs.KindConfiguration, "anthropic.New", "API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &Client{sdk: anthropic.NewClient(opts...), defaultModel: model}, nil
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Models(ctx context.Context) ([]provider.Model, error) {
	return []provider.Model{
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ContextWindow: 200_000, SupportsVision: true, SupportsTools: true},
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ContextWindow: 200_000, SupportsVision: true, SupportsTools: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ContextWindow: 200_000, SupportsTools: true},
	}, nil
}

func (c *Client) model(req provider.CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.defaultModel
}

func toAnthropicMessages(msgs []provider.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case provider.RoleAssistant:
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var args any
				_ = json.Unmarshal(tc.Arguments, &args)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case provider.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return out
}

func toAnthropicTools(tools []provider.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
			Properties: t.Parameters["properties"],
		}, t.Name))
	}
	return out
}

func toolChoice(tc provider.ToolChoice) anthropic.ToolChoiceUnionParam {
	switch tc.Mode {
	case "none":
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	case "required":
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case "named":
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: tc.Name}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}

func (c *Client) buildParams(req provider.CompletionRequest) anthropic.MessageNewParams {
	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model(req)),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
		params.ToolChoice = toolChoice(req.Options.ToolChoice)
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Options.Temperature)
	}
	if req.Options.TopP != nil {
		params.TopP = anthropic.Float(*req.Options.TopP)
	}
	if len(req.Options.StopSequences) > 0 {
		params.StopSequences = req.Options.StopSequences
	}
	return params
}

func classifyError(err error) *errs.Error {
	var apiErr *anthropic.Error
	msg := err.Error()
	if ok := castAPIError(err, &apiErr); ok {
		switch {
		case apiErr.StatusCode == 429:
			return errs.New(errs.KindRateLimited, "anthropic.Complete", msg)
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return errs.New(errs.KindAuthentication, "anthropic.Complete", msg)
		case apiErr.StatusCode >= 500:
			e := errs.New(errs.KindService, "anthropic.Complete", msg)
			e.Transient = true
			return e
		case apiErr.StatusCode == 408:
			return errs.New(errs.KindTimeout, "anthropic.Complete", msg)
		}
		return errs.New(errs.KindService, "anthropic.Complete", msg)
	}
	if strings.Contains(strings.ToLower(msg), "timeout") || strings.Contains(strings.ToLower(msg), "deadline") {
		return errs.New(errs.KindTimeout, "anthropic.Complete", msg)
	}
	e := errs.Wrap(errs.KindNetwork, "anthropic.Complete", err)
	e.Transient = true
	return e
}

// castAPIError exists as a single seam for the as-yet-unstable error-type assertion
// against the SDK's error type across its minor versions.
func castAPIError(err error, target **anthropic.Error) bool {
	apiErr, ok := err.(*anthropic.Error)
	if ok {
		*target = apiErr
	}
	return ok
}

func finishReason(stopReason anthropic.StopReason) provider.FinishReason {
	switch stopReason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return provider.FinishStop
	case anthropic.StopReasonMaxTokens:
		return provider.FinishLength
	case anthropic.StopReasonToolUse:
		return provider.FinishToolCalls
	default:
		return provider.FinishOther
	}
}

// Complete performs one non-streaming completion through the SDK's Messages.New call,
// retried under provider.WithRetry.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResult, error) {
	var text strings.Builder
	var toolCalls []conversation.ToolCall
	var usage provider.Usage
	var finish provider.FinishReason

	_, err := provider.WithRetry(ctx, func(attempt int) (struct{}, error) {
		text.Reset()
		toolCalls = nil
		params := c.buildParams(req)
		msg, err := c.sdk.Messages.New(ctx, params)
		if err != nil {
			return struct{}{}, classifyError(err)
		}
		for _, block := range msg.Content {
			switch b := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(b.Text)
			case anthropic.ToolUseBlock:
				args, _ := json.Marshal(b.Input)
				toolCalls = append(toolCalls, conversation.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
			}
		}
		usage = provider.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
		finish = finishReason(msg.StopReason)
		return struct{}{}, nil
	})
	if err != nil {
		return provider.CompletionResult{}, err
	}

	var respMsg conversation.Message
	if len(toolCalls) > 0 {
		respMsg = conversation.NewAssistantToolCallMessage(text.String(), toolCalls)
	} else {
		respMsg = conversation.NewMessage(conversation.RoleAssistant, text.String())
	}
	return provider.CompletionResult{Message: respMsg, Usage: usage, Model: c.model(req), FinishReason: finish}, nil
}

// Stream performs one completion over the SDK's server-sent-event stream, delivering
// ordered events to sink, and returns the same CompletionResult Complete would.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest, sink provider.Sink) (provider.CompletionResult, error) {
	params := c.buildParams(req)

	var text strings.Builder
	var toolCalls []conversation.ToolCall
	var usage provider.Usage
	var finish provider.FinishReason

	stream := c.sdk.Messages.NewStreaming(ctx, params)
	accum := anthropic.Message{}
	var curToolID, curToolName string

	for stream.Next() {
		event := stream.Current()
		if err := accum.Accumulate(event); err != nil {
			return provider.CompletionResult{}, classifyError(err)
		}

		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if tb, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				curToolID, curToolName = tb.ID, tb.Name
			}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := variant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				text.WriteString(delta.Text)
				sink(provider.StreamEvent{Kind: provider.EventTextDelta, TextDelta: delta.Text})
			case anthropic.InputJSONDelta:
				sink(provider.StreamEvent{
					Kind: provider.EventToolCallPartial, ToolCallID: curToolID,
					ToolCallName: curToolName, ToolCallArgsFragment: delta.PartialJSON,
				})
			}
		case anthropic.ContentBlockStopEvent:
			if curToolID != "" {
				idx := variant.Index
				if int(idx) < len(accum.Content) {
					if tb, ok := accum.Content[idx].AsAny().(anthropic.ToolUseBlock); ok {
						args, _ := json.Marshal(tb.Input)
						tc := conversation.ToolCall{ID: tb.ID, Name: tb.Name, Arguments: args}
						toolCalls = append(toolCalls, tc)
						sink(provider.StreamEvent{Kind: provider.EventToolCallComplete, ToolCallID: tb.ID, ToolCall: &tc})
					}
				}
				curToolID, curToolName = "", ""
			}
		case anthropic.MessageDeltaEvent:
			usage.CompletionTokens += int(variant.Usage.OutputTokens)
			finish = finishReason(variant.Delta.StopReason)
		}
	}
	if err := stream.Err(); err != nil {
		return provider.CompletionResult{}, classifyError(err)
	}

	usage.PromptTokens = int(accum.Usage.InputTokens)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	sink(provider.StreamEvent{Kind: provider.EventUsage, Usage: usage})
	sink(provider.StreamEvent{Kind: provider.EventFinish, FinishReason: finish})

	var respMsg conversation.Message
	if len(toolCalls) > 0 {
		respMsg = conversation.NewAssistantToolCallMessage(text.String(), toolCalls)
	} else {
		respMsg = conversation.NewMessage(conversation.RoleAssistant, text.String())
	}
	return provider.CompletionResult{Message: respMsg, Usage: usage, Model: c.model(req), FinishReason: finish}, nil
}

// Embed is unsupported: Anthropic does not expose an embeddings endpoint.
func (c *Client) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResult, error) {
	if len(req.Input) == 0 {
		return provider.EmbeddingResult{}, nil
	}
	return provider.EmbeddingResult{}, errs.New(errs.KindConfiguration, "anthropic.Embed", "Anthropic does not provide an embeddings API")
}
