// Package bedrock adapts aws-sdk-go-v2's bedrockruntime Converse/ConverseStream APIs
// to the provider.Client contract. Grounded on internal/agent/providers/bedrock.go,
// generalized from its channel-based CompletionChunk streaming and its own
// base.Retry/isRetryableError loop to provider.WithRetry.
package bedrock

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/nexuscore/agentkit/pkg/conversation"
	"github.com/nexuscore/agentkit/pkg/errs"
	"github.com/nexuscore/agentkit/pkg/provider"
)

// Client implements provider.Client for AWS Bedrock's Converse/ConverseStream APIs.
type Client struct {
	sdk          *bedrockruntime.Client
	defaultModel string
	region       string
}

// New constructs a Client for cfg.AWSRegion, using the default AWS credential chain
// unless cfg.APIKey carries an access-key:secret pair (rare; most deployments rely on
// IAM roles, matching the teacher's default-chain-first posture).
func New(ctx context.Context, cfg provider.Config) (*Client, error) {
	region := cfg.AWSRegion
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.APIKey != "" {
		if accessKey, secretKey, ok := strings.Cut(cfg.APIKey, ":"); ok {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "bedrock.New", err)
	}

	model := cfg.Model
	if model == "" {
		model = "anthropic.claude-3-5-sonnet-20241022-v2:0"
	}

	return &Client{
		sdk:          bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: model,
		region:       region,
	}, nil
}

func (c *Client) Name() string { return "bedrock" }

func (c *Client) Models(ctx context.Context) ([]provider.Model, error) {
	return []provider.Model{
		{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", Name: "Claude 3.5 Sonnet (Bedrock)", ContextWindow: 200_000, SupportsVision: true, SupportsTools: true},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku (Bedrock)", ContextWindow: 200_000, SupportsTools: true},
		{ID: "amazon.titan-text-express-v1", Name: "Titan Text Express", ContextWindow: 8192},
		{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B (Bedrock)", ContextWindow: 8192, SupportsTools: true},
	}, nil
}

func (c *Client) model(req provider.CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.defaultModel
}

func toBedrockMessages(msgs []provider.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case provider.RoleUser:
			out = append(out, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
			})
		case provider.RoleAssistant:
			blocks := []types.ContentBlock{}
			if m.Content != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: m.Content})
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				_ = json.Unmarshal(tc.Arguments, &input)
				blocks = append(blocks, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				}})
			}
			out = append(out, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})
		case provider.RoleTool:
			out = append(out, types.Message{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
					ToolUseId: aws.String(m.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: m.Content}},
				}}},
			})
		}
	}
	return out
}

func toBedrockTools(tools []provider.ToolDefinition) *types.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(t.Name),
			Description: aws.String(t.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(t.Parameters)},
		}})
	}
	return &types.ToolConfiguration{Tools: specs}
}

func (c *Client) buildInput(req provider.CompletionRequest) *bedrockruntime.ConverseStreamInput {
	in := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(c.model(req)),
		Messages: toBedrockMessages(req.Messages),
	}
	if req.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	if req.Options.MaxTokens > 0 {
		maxTokens := req.Options.MaxTokens
		if maxTokens > math.MaxInt32 {
			maxTokens = math.MaxInt32
		}
		in.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(int32(maxTokens))}
	}
	if len(req.Tools) > 0 {
		in.ToolConfig = toBedrockTools(req.Tools)
	}
	return in
}

func classifyError(err error) *errs.Error {
	var respErr *smithyhttp.ResponseError
	if ok := castResponseError(err, &respErr); ok {
		switch {
		case respErr.HTTPStatusCode() == 429:
			return errs.New(errs.KindRateLimited, "bedrock", err.Error())
		case respErr.HTTPStatusCode() == 401 || respErr.HTTPStatusCode() == 403:
			return errs.New(errs.KindAuthentication, "bedrock", err.Error())
		case respErr.HTTPStatusCode() >= 500:
			e := errs.New(errs.KindService, "bedrock", err.Error())
			e.Transient = true
			return e
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "throttl") {
		return errs.New(errs.KindRateLimited, "bedrock", err.Error())
	}
	e := errs.Wrap(errs.KindNetwork, "bedrock", err)
	e.Transient = true
	return e
}

func castResponseError(err error, target **smithyhttp.ResponseError) bool {
	re, ok := err.(*smithyhttp.ResponseError)
	if ok {
		*target = re
	}
	return ok
}

func finishReason(sr types.StopReason) provider.FinishReason {
	switch sr {
	case types.StopReasonEndTurn, types.StopReasonStopSequence:
		return provider.FinishStop
	case types.StopReasonMaxTokens:
		return provider.FinishLength
	case types.StopReasonToolUse:
		return provider.FinishToolCalls
	case types.StopReasonContentFiltered:
		return provider.FinishContentFilter
	default:
		return provider.FinishOther
	}
}

// Complete performs one non-streaming completion via Converse.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResult, error) {
	streamIn := c.buildInput(req)
	in := &bedrockruntime.ConverseInput{
		ModelId:         streamIn.ModelId,
		Messages:        streamIn.Messages,
		System:          streamIn.System,
		InferenceConfig: streamIn.InferenceConfig,
		ToolConfig:      streamIn.ToolConfig,
	}

	out, err := provider.WithRetry(ctx, func(attempt int) (*bedrockruntime.ConverseOutput, error) {
		o, err := c.sdk.Converse(ctx, in)
		if err != nil {
			return nil, classifyError(err)
		}
		return o, nil
	})
	if err != nil {
		return provider.CompletionResult{}, err
	}

	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return provider.CompletionResult{}, errs.New(errs.KindService, "bedrock.Complete", "unexpected output variant")
	}

	var text strings.Builder
	var toolCalls []conversation.ToolCall
	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *types.ContentBlockMemberToolUse:
			var input map[string]any
			_ = b.Value.Input.UnmarshalSmithyDocument(&input)
			args, _ := json.Marshal(input)
			toolCalls = append(toolCalls, conversation.ToolCall{
				ID: aws.ToString(b.Value.ToolUseId), Name: aws.ToString(b.Value.Name), Arguments: args,
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
	if out.Usage != nil {
		usage.PromptTokens = int(aws.ToInt32(out.Usage.InputTokens))
		usage.CompletionTokens = int(aws.ToInt32(out.Usage.OutputTokens))
		usage.TotalTokens = int(aws.ToInt32(out.Usage.TotalTokens))
	}

	return provider.CompletionResult{Message: respMsg, Usage: usage, Model: c.model(req), FinishReason: finishReason(out.StopReason)}, nil
}

// Stream performs one completion via ConverseStream, delivering ordered events to
// sink as the stream's event channel yields them, grounded on the teacher's
// processStream select-loop over eventStream.Events().
func (c *Client) Stream(ctx context.Context, req provider.CompletionRequest, sink provider.Sink) (provider.CompletionResult, error) {
	in := c.buildInput(req)

	streamOut, err := provider.WithRetry(ctx, func(attempt int) (*bedrockruntime.ConverseStreamOutput, error) {
		o, err := c.sdk.ConverseStream(ctx, in)
		if err != nil {
			return nil, classifyError(err)
		}
		return o, nil
	})
	if err != nil {
		return provider.CompletionResult{}, err
	}

	eventStream := streamOut.GetStream()
	defer eventStream.Close()

	var text strings.Builder
	var toolCalls []conversation.ToolCall
	var curID, curName string
	var curArgs strings.Builder
	var finish provider.FinishReason
	var usage provider.Usage

	for event := range eventStream.Events() {
		switch ev := event.(type) {
		case *types.ConverseStreamOutputMemberContentBlockStart:
			if tu, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
				curID, curName = aws.ToString(tu.Value.ToolUseId), aws.ToString(tu.Value.Name)
				curArgs.Reset()
			}
		case *types.ConverseStreamOutputMemberContentBlockDelta:
			switch delta := ev.Value.Delta.(type) {
			case *types.ContentBlockDeltaMemberText:
				text.WriteString(delta.Value)
				sink(provider.StreamEvent{Kind: provider.EventTextDelta, TextDelta: delta.Value})
			case *types.ContentBlockDeltaMemberToolUse:
				if delta.Value.Input != nil {
					curArgs.WriteString(*delta.Value.Input)
					sink(provider.StreamEvent{
						Kind: provider.EventToolCallPartial, ToolCallID: curID,
						ToolCallName: curName, ToolCallArgsFragment: *delta.Value.Input,
					})
				}
			}
		case *types.ConverseStreamOutputMemberContentBlockStop:
			if curID != "" {
				tc := conversation.ToolCall{ID: curID, Name: curName, Arguments: json.RawMessage(curArgs.String())}
				toolCalls = append(toolCalls, tc)
				sink(provider.StreamEvent{Kind: provider.EventToolCallComplete, ToolCallID: tc.ID, ToolCall: &tc})
				curID, curName = "", ""
			}
		case *types.ConverseStreamOutputMemberMetadata:
			if ev.Value.Usage != nil {
				usage.PromptTokens = int(aws.ToInt32(ev.Value.Usage.InputTokens))
				usage.CompletionTokens = int(aws.ToInt32(ev.Value.Usage.OutputTokens))
				usage.TotalTokens = int(aws.ToInt32(ev.Value.Usage.TotalTokens))
			}
		case *types.ConverseStreamOutputMemberMessageStop:
			finish = finishReason(ev.Value.StopReason)
		}
	}
	if err := eventStream.Err(); err != nil {
		return provider.CompletionResult{}, classifyError(err)
	}

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

// Embed is unsupported: model-specific embedding invocation (e.g. Titan Embeddings)
// uses InvokeModel rather than Converse and is out of scope for this core adapter.
func (c *Client) Embed(ctx context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResult, error) {
	if len(req.Input) == 0 {
		return provider.EmbeddingResult{}, nil
	}
	return provider.EmbeddingResult{}, errs.New(errs.KindConfiguration, "bedrock.Embed", "embeddings require a model-specific InvokeModel call, not yet wired")
}
