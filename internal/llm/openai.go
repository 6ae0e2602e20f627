// Package llm wraps the chat completion API used for feedback analysis.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

type Message struct {
	Role    string
	Content string
}

type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// ProviderError is a failed call to the provider: a transport error or a
// non-2xx response.
type ProviderError struct {
	StatusCode     int
	QuotaExhausted bool
	Err            error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm provider error (%d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrEmptyResponse is returned when the provider answers without any choice.
var ErrEmptyResponse = errors.New("llm returned no choices")

type Client struct {
	api    *openai.Client
	model  string
	logger *zap.Logger
}

// NewClient builds a client. An empty baseURL targets the OpenAI API.
func NewClient(apiKey, baseURL, model string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &Client{
		api:    openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

func (c *Client) Model() string { return c.model }

// Complete returns the content of the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		perr := classify(err)
		c.logger.Error("chat completion failed",
			zap.String("model", c.model),
			zap.Int("status", perr.StatusCode),
			zap.Bool("quota_exhausted", perr.QuotaExhausted),
			zap.Error(err),
		)
		return "", perr
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

func classify(err error) *ProviderError {
	perr := &ProviderError{Err: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		perr.StatusCode = apiErr.HTTPStatusCode
		code, _ := apiErr.Code.(string)
		perr.QuotaExhausted = isQuotaError(code, apiErr.Type, apiErr.Message)
	case errors.As(err, &reqErr):
		perr.StatusCode = reqErr.HTTPStatusCode
		perr.QuotaExhausted = isQuotaError(string(reqErr.Body))
	}

	return perr
}

// isQuotaError reports whether the provider refused the call because the
// account ran out of credit, as opposed to a transient rate limit.
func isQuotaError(parts ...string) bool {
	indicators := []string{"insufficient_quota", "quota", "billing"}
	for _, part := range parts {
		lower := strings.ToLower(part)
		for _, indicator := range indicators {
			if strings.Contains(lower, indicator) {
				return true
			}
		}
	}
	return false
}
