package analyzer

import (
	"context"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	APIKey      string
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	JSONOutput  bool
}

// ChatClient sends one chat completion and returns the first choice's content.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// The key comes with each request because users change it at runtime.
type OpenAIClient struct {
	BaseURL    string // empty means api.openai.com
	HTTPClient *http.Client
}

func NewOpenAIClient(baseURL string) *OpenAIClient {
	return &OpenAIClient{BaseURL: baseURL}
}

func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	cfg := openai.DefaultConfig(req.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}
	client := openai.NewClientWithConfig(cfg)

	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONOutput {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
