package correct

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient calls the chat completions API. The SDK's own retries are
// disabled; the pipeline owns the retry policy.
type OpenAIClient struct {
	client     openai.Client
	httpClient *http.Client
	model      string
	maxTokens  int
	temp       float64
	minRatio   float64
}

func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	opts := []openaiopt.RequestOption{
		openaiopt.WithAPIKey(cfg.APIKey),
		openaiopt.WithHTTPClient(httpClient),
		openaiopt.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &OpenAIClient{
		client:     openai.NewClient(opts...),
		httpClient: httpClient,
		model:      cfg.Model,
		maxTokens:  maxTokens,
		temp:       cfg.Temperature,
		minRatio:   cfg.MinLengthRatio,
	}
}

// Correct sends one chunk as a chat completion and returns the corrected text.
func (c *OpenAIClient) Correct(ctx context.Context, text string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(BuildPrompt(text)),
		},
		Temperature:         openai.Float(c.temp),
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
				return "", &RetryableError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
			}
			return "", fmt.Errorf("openai api status %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrSuspiciousOutput)
	}
	return CleanResponse(text, resp.Choices[0].Message.Content, c.minRatio)
}

// Close releases resources.
func (c *OpenAIClient) Close() {
	c.httpClient.CloseIdleConnections()
}
