package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const serperBaseURL = "https://google.serper.dev"

// SerperSearcher queries the Serper Google search API and returns organic
// result snippets plus the knowledge graph description when present.
type SerperSearcher struct {
	http   *resty.Client
	apiKey string
	num    int
}

type serperResponse struct {
	KnowledgeGraph struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func NewSerperSearcher(apiKey, baseURL string, timeout time.Duration) *SerperSearcher {
	if baseURL == "" {
		baseURL = serperBaseURL
	}
	return &SerperSearcher{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Content-Type", "application/json").
			SetTimeout(timeout),
		apiKey: apiKey,
		num:    5,
	}
}

func (s *SerperSearcher) Name() string { return "serper" }

func (s *SerperSearcher) Search(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, fmt.Errorf("SERPER_API_KEY not configured")
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", s.apiKey).
		SetBody(map[string]any{"q": query, "num": s.num}).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("failed to query Serper search API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("serper search API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	var out serperResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode Serper response: %w", err)
	}

	snippets := make([]string, 0, len(out.Organic)+1)
	if d := strings.TrimSpace(out.KnowledgeGraph.Description); d != "" {
		snippets = append(snippets, d)
	}
	for _, r := range out.Organic {
		if sn := strings.TrimSpace(r.Snippet); sn != "" {
			snippets = append(snippets, sn)
		}
	}
	return snippets, nil
}
