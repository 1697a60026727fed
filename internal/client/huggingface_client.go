package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/makeasinger/songprompt/internal/config"
)

// HuggingFaceClient calls the hosted text-generation inference API.
type HuggingFaceClient struct {
	http  *resty.Client
	token string
	model string
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

func NewHuggingFaceClient(cfg *config.HuggingFaceConfig) *HuggingFaceClient {
	return &HuggingFaceClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(cfg.Timeout),
		token: cfg.Token,
		model: cfg.Model,
	}
}

func (c *HuggingFaceClient) Name() string { return "huggingface" }

func (c *HuggingFaceClient) IsConfigured() bool {
	return c.token != ""
}

// chatTemplate renders the Llama 3 instruct prompt format.
func chatTemplate(system, user string) string {
	return fmt.Sprintf("<|begin_of_text|><|start_header_id|>system<|end_header_id|>\n\n%s<|eot_id|>"+
		"<|start_header_id|>user<|end_header_id|>\n\n%s<|eot_id|>"+
		"<|start_header_id|>assistant<|end_header_id|>\n\n", system, user)
}

func (c *HuggingFaceClient) Complete(ctx context.Context, prompt, system string, structured bool) (*Completion, error) {
	if !c.IsConfigured() {
		return nil, NotConfigured(c.Name())
	}

	body := hfRequest{
		Inputs: chatTemplate(system, withStructuredInstruction(prompt, structured)),
		Parameters: hfParameters{
			MaxNewTokens: 1500,
			Temperature:  0.3,
		},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetBody(body).
		Post("/models/" + c.model)
	if err != nil {
		return nil, transportError(c.Name(), err)
	}
	if resp.IsError() {
		return nil, classifyStatus(c.Name(), resp.StatusCode(), resp.String())
	}

	out, err := decodeGenerations(resp.Body())
	if err != nil {
		return nil, &BackendError{Backend: c.Name(), Kind: KindMalformedResponse, Message: "could not decode generation", Err: err}
	}
	if len(out) == 0 {
		return nil, &BackendError{Backend: c.Name(), Kind: KindMalformedResponse, Message: "no generations in response"}
	}

	return finish(c.Name(), out[0].GeneratedText, structured)
}

// decodeGenerations accepts the usual list and the single object some
// inference endpoints return instead.
func decodeGenerations(body []byte) ([]hfGeneration, error) {
	var list []hfGeneration
	err := json.Unmarshal(body, &list)
	if err == nil {
		return list, nil
	}

	var single hfGeneration
	if json.Unmarshal(body, &single) == nil {
		return []hfGeneration{single}, nil
	}
	return nil, err
}
