package client

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"github.com/makeasinger/songprompt/internal/config"
)

// GeminiClient wraps the Google GenAI SDK. The SDK client is only built when
// an API key is configured.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, cfg *config.GeminiConfig) (*GeminiClient, error) {
	c := &GeminiClient{model: cfg.Model, timeout: cfg.Timeout}
	if cfg.APIKey == "" {
		return c, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &BackendError{Backend: "gemini", Kind: KindInvalidCredential, Message: "failed to create client", Err: err}
	}
	c.client = client
	return c, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) IsConfigured() bool {
	return c.client != nil
}

func (c *GeminiClient) Complete(ctx context.Context, prompt, system string, structured bool) (*Completion, error) {
	if !c.IsConfigured() {
		return nil, NotConfigured(c.Name())
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.3),
		MaxOutputTokens:   2048,
	}
	if structured {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(withStructuredInstruction(prompt, structured)), cfg)
	if err != nil {
		return nil, c.classify(err)
	}

	return finish(c.Name(), resp.Text(), structured)
}

func (c *GeminiClient) classify(err error) *BackendError {
	if apiErr, ok := asAPIError(err); ok {
		return classifyStatus(c.Name(), apiErr.Code, apiErr.Message)
	}
	return transportError(c.Name(), err)
}

func asAPIError(err error) (*genai.APIError, bool) {
	var ptr *genai.APIError
	if errors.As(err, &ptr) {
		return ptr, true
	}
	var val genai.APIError
	if errors.As(err, &val) {
		return &val, true
	}
	return nil, false
}
