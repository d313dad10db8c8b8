// Package tavily implements web search as a ports.Tool on the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/switchboard/pkg/domain"
)

const (
	DefaultEndpoint   = "https://api.tavily.com/search"
	DefaultMaxResults = 2
)

// Result is one search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search is the researcher's web search tool.
type Search struct {
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
}

// Option configures Search.
type Option func(*Search)

// WithEndpoint overrides the API URL.
func WithEndpoint(url string) Option {
	return func(s *Search) { s.endpoint = url }
}

// WithMaxResults sets how many hits are returned.
func WithMaxResults(n int) Option {
	return func(s *Search) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Search) { s.client = c }
}

// New creates a search tool.
func New(apiKey string, opts ...Option) (*Search, error) {
	if apiKey == "" {
		return nil, errors.New("tavily: api key is required")
	}
	s := &Search{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		maxResults: DefaultMaxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Search) Name() string { return "web_search" }

func (s *Search) Description() string {
	return "Searches the web and returns the most relevant pages with a short excerpt each."
}

// Invoke searches for query and formats the hits as text.
func (s *Search) Invoke(ctx context.Context, query string) (string, error) {
	results, err := s.Query(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s", i+1, r.Title, r.URL, strings.TrimSpace(r.Content))
	}
	return b.String(), nil
}

// Query returns the raw hits. Transport failures, rate limits and server errors are
// reported as domain.CollaboratorUnavailable.
func (s *Search) Query(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(searchRequest{Query: query, MaxResults: s.maxResults})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.Unavailable("web_search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, domain.Unavailable("web_search", err)
		}
		return nil, fmt.Errorf("tavily: %w", err)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}
	if len(out.Results) > s.maxResults {
		out.Results = out.Results[:s.maxResults]
	}
	return out.Results, nil
}
