package client

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"

	"github.com/makeasinger/songprompt/internal/config"
)

// GroqClient talks to the Groq OpenAI-compatible chat completions API.
type GroqClient struct {
	http   *resty.Client
	apiKey string
	model  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func NewGroqClient(cfg *config.GroqConfig) *GroqClient {
	return &GroqClient{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(cfg.Timeout),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

func (c *GroqClient) Name() string { return "groq" }

func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *GroqClient) Complete(ctx context.Context, prompt, system string, structured bool) (*Completion, error) {
	if !c.IsConfigured() {
		return nil, NotConfigured(c.Name())
	}

	body := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: withStructuredInstruction(prompt, structured)},
		},
		Temperature: 0.3,
		MaxTokens:   2048,
	}
	if structured {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return nil, transportError(c.Name(), err)
	}
	if resp.IsError() {
		return nil, classifyStatus(c.Name(), resp.StatusCode(), resp.String())
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &BackendError{Backend: c.Name(), Kind: KindMalformedResponse, Message: "could not decode completion", Err: err}
	}
	if len(out.Choices) == 0 {
		return nil, &BackendError{Backend: c.Name(), Kind: KindMalformedResponse, Message: "no choices in response"}
	}

	return finish(c.Name(), out.Choices[0].Message.Content, structured)
}
