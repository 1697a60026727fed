package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const duckDuckGoBaseURL = "https://api.duckduckgo.com"

// DuckDuckGoSearcher uses the keyless instant-answer API. Coverage is thin but
// it needs no credential.
type DuckDuckGoSearcher struct {
	http *resty.Client
}

type duckDuckGoResponse struct {
	Heading       string          `json:"Heading"`
	AbstractText  string          `json:"AbstractText"`
	RelatedTopics []duckDuckTopic `json:"RelatedTopics"`
}

type duckDuckTopic struct {
	Text   string          `json:"Text"`
	Topics []duckDuckTopic `json:"Topics"`
}

func NewDuckDuckGoSearcher(baseURL string, timeout time.Duration) *DuckDuckGoSearcher {
	if baseURL == "" {
		baseURL = duckDuckGoBaseURL
	}
	return &DuckDuckGoSearcher{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("User-Agent", "songprompt/1.0").
			SetTimeout(timeout),
	}
}

func (s *DuckDuckGoSearcher) Name() string { return "duckduckgo" }

func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string) ([]string, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("format", "json").
		SetQueryParam("no_html", "1").
		SetQueryParam("skip_disambig", "1").
		Get("/")
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("duckduckgo search HTTP %d: %s", resp.StatusCode(), resp.Status())
	}

	var ddg duckDuckGoResponse
	if err := json.Unmarshal(resp.Body(), &ddg); err != nil {
		return nil, fmt.Errorf("failed to decode duckduckgo response: %w", err)
	}

	var snippets []string
	if t := strings.TrimSpace(ddg.AbstractText); t != "" {
		snippets = append(snippets, t)
	}
	for _, topic := range flattenTopics(ddg.RelatedTopics) {
		if t := strings.TrimSpace(topic.Text); t != "" {
			snippets = append(snippets, t)
		}
		if len(snippets) >= 5 {
			break
		}
	}
	return snippets, nil
}

func flattenTopics(topics []duckDuckTopic) []duckDuckTopic {
	var out []duckDuckTopic
	for _, t := range topics {
		if len(t.Topics) > 0 {
			out = append(out, flattenTopics(t.Topics)...)
			continue
		}
		out = append(out, t)
	}
	return out
}
