// Package openai provides a thin wrapper around the official OpenAI Go SDK
// for JSON-mode chat completions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

var (
	// ErrEmptyPrompt is returned when CompleteJSON is called with an empty user prompt.
	ErrEmptyPrompt = errors.New("openai: user prompt is empty")
	// ErrNoChoiceInResponse is returned when the API response contains no choices.
	ErrNoChoiceInResponse = errors.New("openai: no choice in response")
)

const (
	defaultModel       = openaisdk.ChatModelGPT4oMini
	defaultTemperature = 0.1

	// gpt-4o-mini list prices, USD per one million tokens.
	inputCostPerMillionTokens  = 0.15
	outputCostPerMillionTokens = 0.60

	tokensPerMillion = 1_000_000
)

// Completion is the result of one JSON-mode chat completion, including the
// token usage and estimated cost for bookkeeping.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// TotalTokens returns prompt plus completion tokens.
func (c *Completion) TotalTokens() int {
	return c.PromptTokens + c.CompletionTokens
}

// Client calls the OpenAI chat completions API via the official SDK.
type Client struct {
	sdk         openaisdk.Client
	model       openaisdk.ChatModel
	temperature float64
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the chat model name. Empty uses the default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = openaisdk.ChatModel(model)
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) ClientOption {
	return func(c *Client) {
		c.temperature = temperature
	}
}

// NewClient creates an OpenAI chat completions client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		sdk:         openaisdk.NewClient(option.WithAPIKey(apiKey)),
		model:       defaultModel,
		temperature: defaultTemperature,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Model returns the configured chat model name.
func (c *Client) Model() string {
	return string(c.model)
}

// CompleteJSON runs one chat completion in JSON mode and returns the raw JSON
// content with usage accounting. The system prompt may be empty.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return nil, ErrEmptyPrompt
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(systemPrompt))
	}

	messages = append(messages, openaisdk.UserMessage(userPrompt))

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openaisdk.ResponseFormatJSONObjectParam{},
		},
		Temperature: param.NewOpt(c.temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrNoChoiceInResponse
	}

	promptTokens := int(resp.Usage.PromptTokens)
	completionTokens := int(resp.Usage.CompletionTokens)

	return &Completion{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          estimateCostUSD(promptTokens, completionTokens),
	}, nil
}

func estimateCostUSD(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/tokensPerMillion*inputCostPerMillionTokens +
		float64(completionTokens)/tokensPerMillion*outputCostPerMillionTokens
}
