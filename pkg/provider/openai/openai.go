// Package openai adapts github.com/sashabaranov/go-openai to the provider.Client
// contract. Grounded on internal/agent/providers/openai.go, generalized from its
// channel-based CompletionChunk streaming to the Complete/Stream/Embed/Models shape
// and routed through provider.WithRetry instead of its own isRetryableError loop.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexuscore/agentkit/pkg/conversation"
	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/provider"
)

// Client implements provider.Client for OpenAI's Chat Completions and Embeddings APIs.
type Client struct {
	sdk          *openai.Client
	defaultModel string
	embedModel   string
}

// New constructs a Client from cfg. cfg.APIKey is required.
func New(cfg provider.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.New(errs.KindConfiguration, "openai.New", "API key is required")
	}
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.OrganizationID != "" {
		oaiCfg.OrgID = cfg.OrganizationID
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}
	return &Client{sdk: openai.NewClientWithConfig(oaiCfg), defaultModel: model, embedModel: "text-embedding-3-small"}, nil
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Models(ctx context.Context) ([]provider.Model, error) {
	return []provider.Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextWindow: 128_000, SupportsVision: true, SupportsTools: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextWindow: 128_000, SupportsVision: true, SupportsTools: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextWindow: 128_000, SupportsVision: true, SupportsTools: true},
		{ID: "text-embedding-3-small", Name: "Embedding v3 small", ContextWindow: 8191, SupportsEmbedding: true},
	}, nil
}

func (c *Client) model(req provider.CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.defaultModel
}

func toOpenAIMessages(system string, msgs []provider.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case provider.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		case provider.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func toOpenAITools(tools []provider.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func toOpenAIToolChoice(tc provider.ToolChoice) any {
	switch tc.Mode {
	case "none":
		return "none"
	case "required":
		return "required"
	case "named":
		return openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: tc.Name}}
	default:
		return "auto"
	}
}

func (c *Client) buildRequest(req provider.CompletionRequest) openai.ChatCompletionRequest {
	chatReq := openai.ChatCompletionRequest{
		Model:    c.model(req),
		Messages: toOpenAIMessages(req.System, req.Messages),
	}
	if req.Options.MaxTokens > 0 {
		chatReq.MaxTokens = req.Options.MaxTokens
	}
	if req.Options.Temperature != nil {
		chatReq.Temperature = float32(*req.Options.Temperature)
	}
	if req.Options.TopP != nil {
		chatReq.TopP = float32(*req.Options.TopP)
	}
	if len(req.Options.StopSequences) > 0 {
		chatReq.Stop = req.Options.StopSequences
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
		chatReq.ToolChoice = toOpenAIToolChoice(req.Options.ToolChoice)
	}
	return chatReq
}

func classifyError(err error) *errs.Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return errs.New(errs.KindRateLimited, "openai", apiErr.Message)
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return errs.New(errs.KindAuthentication, "openai", apiErr.Message)
		case apiErr.HTTPStatusCode == 408:
			return errs.New(errs.KindTimeout, "openai", apiErr.Message)
		case apiErr.HTTPStatusCode >= 500:
			e := errs.New(errs.KindService, "openai", apiErr.Message)
			e.Transient = true
			return e
		case apiErr.HTTPStatusCode == 400:
			return errs.New(errs.KindValidation, "openai", apiErr.Message)
		}
		return errs.New(errs.KindService, "openai", apiErr.Message)
	}
	if strings.Contains(strings.ToLower(err.Error()), "deadline") || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return errs.New(errs.KindTimeout, "openai", err.Error())
	}
	e := errs.Wrap(errs.KindNetwork, "openai", err)
	e.Transient = true
	return e
}

func finishReason(fr openai.FinishReason) provider.FinishReason {
	switch fr {
	case openai.FinishReasonStop:
		return provider.FinishStop
	case openai.FinishReasonLength:
		return provider.FinishLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return provider.FinishToolCalls
	case openai.FinishReasonContentFilter:
		return provider.FinishContentFilter
	default:
		return provider.FinishOther
	}
}

// Complete performs one non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResult, error) {
	chatReq := c.buildRequest(req)

	resp, err := provider.WithRetry(ctx, func(attempt int) (openai.ChatCompletionResponse, error) {
		r, err := c.sdk.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return openai.ChatCompletionResponse{}, classifyError(err)
		}
		return r, nil
	})
	if err != nil {
		return provider.CompletionResult{}, err
	}
	if len(resp.Choices) == 0 {
		return provider.CompletionResult{}, errs.New(errs.KindService, "openai.Complete", "empty choices in response")
	}

	choice := resp.Choices[0]
	usage := provider.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	var respMsg conversation.Message
	if len(choice.Message.ToolCalls) > 0 {
		calls := make([]conversation.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			calls = append(calls, conversation.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: json.RawMessage(tc.Function.Arguments)})
		}
		respMsg = conversation.NewAssistantToolCallMessage(choice.Message.Content, calls)
	} else {
		respMsg = conversation.NewMessage(conversation.RoleAssistant, choice.Message.Content)
	}

	return provider.CompletionResult{
		Message:      respMsg,
		Usage:        usage,
		Model:        resp.Model,
		FinishReason: finishReason(choice.FinishReason),
	}, nil
}

// Stream performs one chat completion over OpenAI's SSE stream, delivering deltas to
// sink as tool-call arguments and text accumulate across chunks, grounded on the
// teacher's processStream map-by-index accumulation.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest, sink provider.Sink) (provider.CompletionResult, error) {
	chatReq := c.buildRequest(req)
	chatReq.Stream = true

	stream, err := provider.WithRetry(ctx, func(attempt int) (*openai.ChatCompletionStream, error) {
		s, err := c.sdk.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			return nil, classifyError(err)
		}
		return s, nil
	})
	if err != nil {
		return provider.CompletionResult{}, err
	}
	defer stream.Close()

	var text strings.Builder
	type pendingCall struct {
		id, name string
		args     strings.Builder
	}
	pending := make(map[int]*pendingCall)
	order := make([]int, 0, 4)
	var usage provider.Usage
	var finish provider.FinishReason
	model := c.model(req)

	for {
		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				break
			}
			return provider.CompletionResult{}, classifyError(err)
		}
		if resp.Model != "" {
			model = resp.Model
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			sink(provider.StreamEvent{Kind: provider.EventTextDelta, TextDelta: delta.Content})
		}
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			pc, ok := pending[idx]
			if !ok {
				pc = &pendingCall{}
				pending[idx] = pc
				order = append(order, idx)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				pc.args.WriteString(tc.Function.Arguments)
				sink(provider.StreamEvent{
					Kind: provider.EventToolCallPartial, ToolCallID: pc.id,
					ToolCallName: pc.name, ToolCallArgsFragment: tc.Function.Arguments,
				})
			}
		}
		if resp.Choices[0].FinishReason != "" {
			finish = finishReason(resp.Choices[0].FinishReason)
		}
	}

	calls := make([]conversation.ToolCall, 0, len(order))
	for _, idx := range order {
		pc := pending[idx]
		tc := conversation.ToolCall{ID: pc.id, Name: pc.name, Arguments: json.RawMessage(pc.args.String())}
		calls = append(calls, tc)
		sink(provider.StreamEvent{Kind: provider.EventToolCallComplete, ToolCallID: tc.ID, ToolCall: &tc})
	}

	usage.CompletionTokens = provider.EstimateTokens(text.String())
	sink(provider.StreamEvent{Kind: provider.EventUsage, Usage: usage})
	sink(provider.StreamEvent{Kind: provider.EventFinish, FinishReason: finish})

	var respMsg conversation.Message
	if len(calls) > 0 {
		respMsg = conversation.NewAssistantToolCallMessage(text.String(), calls)
	} else {
		respMsg = conversation.NewMessage(conversation.RoleAssistant, text.String())
	}
	return provider.CompletionResult{Message: respMsg, Usage: usage, Model: model, FinishReason: finish}, nil
}

// Embed computes embeddings via OpenAI's /embeddings endpoint.
func (c *Client) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResult, error) {
	if len(req.Input) == 0 {
		return provider.EmbeddingResult{}, nil
	}
	model := req.Model
	if model == "" {
		model = c.embedModel
	}

	resp, err := provider.WithRetry(ctx, func(attempt int) (openai.EmbeddingResponse, error) {
		r, err := c.sdk.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: req.Input,
			Model: openai.EmbeddingModel(model),
		})
		if err != nil {
			return openai.EmbeddingResponse{}, classifyError(err)
		}
		return r, nil
	})
	if err != nil {
		return provider.EmbeddingResult{}, err
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return provider.EmbeddingResult{
		Vectors: vectors,
		Usage: provider.Usage{
			PromptTokens: resp.Usage.PromptTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}
