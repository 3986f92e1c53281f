// Package gemini adapts google.golang.org/genai to the provider.Client contract.
// Grounded on internal/agent/providers/google.go, generalized from its iter.Seq2
// streaming-iterator processing and its own base.RetryWithBackoff loop to
// provider.WithRetry.
package gemini

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/nexuscore/agentkit/pkg/conversation"
	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/provider"
)

// Client implements provider.Client for Google's Gemini API.
type Client struct {
	sdk          *genai.Client
	defaultModel string
}

// New constructs a Client from cfg. When cfg.APIKey is empty and cfg.OAuthTokenSource
// is non-nil, the client is built for the Vertex AI backend; the OAuthTokenSource value
// itself is not passed to the SDK.
func New(ctx context.Context, cfg provider.Config) (*Client, error) {
	gcfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	switch {
	case cfg.APIKey != "":
		gcfg.APIKey = cfg.APIKey
	case cfg.OAuthTokenSource != nil:
		gcfg.Backend = genai.BackendVertexAI
	default:
		return nil, errs.New(errs.KindConfiguration, "gemini.New", "API key or OAuth token source is required")
	}

	client, err := genai.NewClient(ctx, gcfg)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "gemini.New", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{sdk: client, defaultModel: model}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Models(ctx context.Context) ([]provider.Model, error) {
	return []provider.Model{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextWindow: 1_000_000, SupportsVision: true, SupportsTools: true},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextWindow: 2_000_000, SupportsVision: true, SupportsTools: true},
		{ID: "text-embedding-004", Name: "Gemini Embedding", ContextWindow: 2048, SupportsEmbedding: true},
	}, nil
}

func (c *Client) model(req provider.CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.defaultModel
}

func toGeminiContents(msgs []provider.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		content := &genai.Content{}
		switch m.Role {
		case provider.RoleUser, provider.RoleTool:
			content.Role = genai.RoleUser
		case provider.RoleAssistant:
			content.Role = genai.RoleModel
		}

		if m.Role == provider.RoleTool {
			var response map[string]any
			_ = json.Unmarshal([]byte(m.Content), &response)
			if response == nil {
				response = map[string]any{"result": m.Content}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: m.Name, Response: response},
			})
			out = append(out, content)
			continue
		}

		if m.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal(tc.Arguments, &args)
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args},
			})
		}
		out = append(out, content)
	}
	return out
}

func toGeminiTools(tools []provider.ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  paramsToSchema(t.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func paramsToSchema(params map[string]any) *genai.Schema {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var schema genai.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return &schema
}

func (c *Client) buildConfig(req provider.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}
	if req.Options.Temperature != nil {
		t := float32(*req.Options.Temperature)
		cfg.Temperature = &t
	}
	if req.Options.TopP != nil {
		p := float32(*req.Options.TopP)
		cfg.TopP = &p
	}
	if len(req.Options.StopSequences) > 0 {
		cfg.StopSequences = req.Options.StopSequences
	}
	if len(req.Tools) > 0 {
		cfg.Tools = toGeminiTools(req.Tools)
	}
	return cfg
}

func classifyError(err error) *errs.Error {
	var apiErr genai.APIError
	msg := strings.ToLower(err.Error())
	if ok := castAPIError(err, &apiErr); ok {
		switch {
		case apiErr.Code == 429:
			return errs.New(errs.KindRateLimited, "gemini", apiErr.Message)
		case apiErr.Code == 401 || apiErr.Code == 403:
			return errs.New(errs.KindAuthentication, "gemini", apiErr.Message)
		case apiErr.Code >= 500:
			e := errs.New(errs.KindService, "gemini", apiErr.Message)
			e.Transient = true
			return e
		case apiErr.Code == 400:
			return errs.New(errs.KindValidation, "gemini", apiErr.Message)
		}
		return errs.New(errs.KindService, "gemini", apiErr.Message)
	}
	if strings.Contains(msg, "deadline") || strings.Contains(msg, "timeout") {
		return errs.New(errs.KindTimeout, "gemini", err.Error())
	}
	e := errs.Wrap(errs.KindNetwork, "gemini", err)
	e.Transient = true
	return e
}

func castAPIError(err error, target *genai.APIError) bool {
	apiErr, ok := err.(genai.APIError)
	if ok {
		*target = apiErr
	}
	return ok
}

func finishReason(fr genai.FinishReason) provider.FinishReason {
	switch fr {
	case genai.FinishReasonStop:
		return provider.FinishStop
	case genai.FinishReasonMaxTokens:
		return provider.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return provider.FinishContentFilter
	default:
		return provider.FinishOther
	}
}

// Complete performs one non-streaming completion.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResult, error) {
	model := c.model(req)
	contents := toGeminiContents(req.Messages)
	cfg := c.buildConfig(req)

	resp, err := provider.WithRetry(ctx, func(attempt int) (*genai.GenerateContentResponse, error) {
		r, err := c.sdk.Models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return nil, classifyError(err)
		}
		return r, nil
	})
	if err != nil {
		return provider.CompletionResult{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return provider.CompletionResult{}, errs.New(errs.KindService, "gemini.Complete", "empty candidates in response")
	}

	var text strings.Builder
	var toolCalls []conversation.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			toolCalls = append(toolCalls, conversation.ToolCall{
				ID: toolCallID(part.FunctionCall.Name, len(toolCalls)), Name: part.FunctionCall.Name, Arguments: args,
			})
		}
	}

	var respMsg conversation.Message
	if len(toolCalls) > 0 {
		respMsg = conversation.NewAssistantToolCallMessage(text.String(), toolCalls)
	} else {
		respMsg = conversation.NewMessage(conversation.RoleAssistant, text.String())
	}

	usage := provider.Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return provider.CompletionResult{
		Message: respMsg, Usage: usage, Model: model,
		FinishReason: finishReason(resp.Candidates[0].FinishReason),
	}, nil
}

// Stream performs one completion over Gemini's streaming iterator, delivering
// ordered events to sink, grounded on the teacher's processStreamResponse for-range
// over the genai iter.Seq2 response stream.
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest, sink provider.Sink) (provider.CompletionResult, error) {
	model := c.model(req)
	contents := toGeminiContents(req.Messages)
	cfg := c.buildConfig(req)

	var text strings.Builder
	var toolCalls []conversation.ToolCall
	var finish provider.FinishReason
	var usage provider.Usage

	_, err := provider.WithRetry(ctx, func(attempt int) (struct{}, error) {
		text.Reset()
		toolCalls = nil
		streamIter := c.sdk.Models.GenerateContentStream(ctx, model, contents, cfg)

		for resp, iterErr := range streamIter {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return struct{}{}, errs.Wrap(errs.KindCancelled, "gemini.Stream", ctxErr)
			}
			if iterErr != nil {
				return struct{}{}, classifyError(iterErr)
			}
			if resp == nil {
				continue
			}
			for _, candidate := range resp.Candidates {
				if candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part.Text != "" {
						text.WriteString(part.Text)
						sink(provider.StreamEvent{Kind: provider.EventTextDelta, TextDelta: part.Text})
					}
					if part.FunctionCall != nil {
						args, _ := json.Marshal(part.FunctionCall.Args)
						tc := conversation.ToolCall{
							ID: toolCallID(part.FunctionCall.Name, len(toolCalls)), Name: part.FunctionCall.Name, Arguments: args,
						}
						toolCalls = append(toolCalls, tc)
						sink(provider.StreamEvent{Kind: provider.EventToolCallComplete, ToolCallID: tc.ID, ToolCall: &tc})
					}
				}
				if candidate.FinishReason != "" {
					finish = finishReason(candidate.FinishReason)
				}
			}
			if resp.UsageMetadata != nil {
				usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
				usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
				usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return provider.CompletionResult{}, err
	}

	sink(provider.StreamEvent{Kind: provider.EventUsage, Usage: usage})
	sink(provider.StreamEvent{Kind: provider.EventFinish, FinishReason: finish})

	var respMsg conversation.Message
	if len(toolCalls) > 0 {
		respMsg = conversation.NewAssistantToolCallMessage(text.String(), toolCalls)
	} else {
		respMsg = conversation.NewMessage(conversation.RoleAssistant, text.String())
	}
	return provider.CompletionResult{Message: respMsg, Usage: usage, Model: model, FinishReason: finish}, nil
}

// Embed computes embeddings via Gemini's embedding model.
func (c *Client) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResult, error) {
	if len(req.Input) == 0 {
		return provider.EmbeddingResult{}, nil
	}
	model := req.Model
	if model == "" {
		model = "text-embedding-004"
	}

	contents := make([]*genai.Content, len(req.Input))
	for i, text := range req.Input {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := provider.WithRetry(ctx, func(attempt int) (*genai.EmbedContentResponse, error) {
		r, err := c.sdk.Models.EmbedContent(ctx, model, contents, nil)
		if err != nil {
			return nil, classifyError(err)
		}
		return r, nil
	})
	if err != nil {
		return provider.EmbeddingResult{}, err
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return provider.EmbeddingResult{Vectors: vectors}, nil
}

func toolCallID(name string, index int) string {
	return name + "-" + strconv.Itoa(index)
}
