package client

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/makeasinger/songprompt/internal/config"
)

// OllamaClient calls a local Ollama server. It needs no credential.
type OllamaClient struct {
	http  *resty.Client
	model string
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func NewOllamaClient(cfg *config.OllamaConfig) *OllamaClient {
	return &OllamaClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(cfg.Timeout),
		model: cfg.Model,
	}
}

func (c *OllamaClient) Name() string { return "ollama" }

func (c *OllamaClient) IsConfigured() bool { return true }

func (c *OllamaClient) Complete(ctx context.Context, prompt, system string, structured bool) (*Completion, error) {
	body := ollamaChatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: withStructuredInstruction(prompt, structured)},
		},
		Options: map[string]any{"temperature": 0.3},
	}
	if structured {
		body.Format = "json"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/chat")
	if err != nil {
		return nil, transportError(c.Name(), err)
	}
	if resp.IsError() {
		return nil, classifyStatus(c.Name(), resp.StatusCode(), resp.String())
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, &BackendError{Backend: c.Name(), Kind: KindMalformedResponse, Message: "could not decode chat response", Err: err}
	}
	if out.Error != "" {
		return nil, &BackendError{Backend: c.Name(), Kind: KindUpstream, Message: out.Error}
	}

	return finish(c.Name(), out.Message.Content, structured)
}
