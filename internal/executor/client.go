// Package executor generates item batches with LLM backends and measures
// them, implementing the workflow's Generator contract.
package executor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/sashabaranov/go-openai"

	"github.com/ShayCichocki/tierup/pkg/models"
)

// Completion is the text and token usage of one model call.
type Completion struct {
	Text   string
	Tokens models.TokenUsage
}

// Completer sends a single-turn prompt to a model.
type Completer interface {
	Complete(ctx context.Context, model, system, prompt string, maxTokens int) (Completion, error)
}

// AnthropicConfig contains configuration for the Anthropic backend.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
}

// AnthropicClient completes prompts with Claude models.
type AnthropicClient struct {
	inner   anthropic.Client
	bedrock bool
}

// NewAnthropicClient creates a new Anthropic API client.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		inner:   anthropic.NewClient(opts...),
		bedrock: cfg.UseAWSBedrock,
	}, nil
}

// bedrockModels maps Anthropic model ids to Bedrock cross-region inference
// profiles.
var bedrockModels = map[string]string{
	"claude-3-5-haiku-20241022":  "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	"claude-3-7-sonnet-20250219": "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	"claude-sonnet-4-20250514":   "us.anthropic.claude-sonnet-4-20250514-v1:0",
	"claude-sonnet-4-5-20250929": "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	"claude-haiku-4-5-20251001":  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	"claude-opus-4-1-20250805":   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	"claude-opus-4-5-20251101":   "us.anthropic.claude-opus-4-5-20251101-v1:0",
}

// translateModelForBedrock converts a model id to its Bedrock inference
// profile. Unknown ids pass through unchanged.
func translateModelForBedrock(model string) string {
	if b, ok := bedrockModels[model]; ok {
		return b
	}
	return model
}

// Complete sends prompt as a single user message.
func (c *AnthropicClient) Complete(ctx context.Context, model, system, prompt string, maxTokens int) (Completion, error) {
	if c.bedrock {
		model = translateModelForBedrock(model)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	return Completion{
		Text:   text.String(),
		Tokens: models.NewTokenUsage(resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}, nil
}

// OpenAIClient completes prompts with OpenAI chat models.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates an OpenAI client. An empty apiKey falls back to
// OPENAI_API_KEY; an empty baseURL keeps the public endpoint.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}, nil
}

// Complete sends an optional system message and the prompt.
func (o *OpenAIClient) Complete(ctx context.Context, model, system, prompt string, maxTokens int) (Completion, error) {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               model,
		Messages:            messages,
		MaxCompletionTokens: maxTokens,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai returned no choices")
	}
	return Completion{
		Text:   resp.Choices[0].Message.Content,
		Tokens: models.NewTokenUsage(int64(resp.Usage.PromptTokens), int64(resp.Usage.CompletionTokens)),
	}, nil
}

// Router dispatches each call to the backend for the model's provider.
// Models of unknown provider go to Anthropic.
type Router struct {
	Anthropic Completer
	OpenAI    Completer
}

// Complete routes by models.InferProvider.
func (r *Router) Complete(ctx context.Context, model, system, prompt string, maxTokens int) (Completion, error) {
	var backend Completer
	provider := models.InferProvider(model)
	switch provider {
	case models.ProviderOpenAI:
		backend = r.OpenAI
	case models.ProviderAnthropic, models.ProviderUnknown:
		backend = r.Anthropic
	}
	if backend == nil {
		return Completion{}, fmt.Errorf("no backend configured for model %q (provider %s)", model, provider)
	}
	return backend.Complete(ctx, model, system, prompt, maxTokens)
}
