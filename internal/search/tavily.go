package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/TobiSchelling/newsjacker/internal/logging"
)

const tavilyURL = "https://api.tavily.com/search"

// TavilyProvider searches recent news through the Tavily REST API.
type TavilyProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewTavilyProvider creates a Tavily client reading its key from apiKeyEnv.
// rpm <= 0 disables client-side rate limiting.
func NewTavilyProvider(apiKeyEnv string, rpm int) *TavilyProvider {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rpm > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return &TavilyProvider{
		apiKey:   os.Getenv(apiKeyEnv),
		endpoint: tavilyURL,
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  limiter,
	}
}

func (t *TavilyProvider) Name() string { return "tavily" }

// IsConfigured returns whether the API key is available.
func (t *TavilyProvider) IsConfigured() bool {
	return t.apiKey != ""
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	Topic             string `json:"topic"`
	TimeRange         string `json:"time_range"`
	SearchDepth       string `json:"search_depth"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
	IncludeImages     bool   `json:"include_images"`
}

// Search runs query against Tavily. A body that is not JSON is reported as
// *MalformedDataError; a missing or non-array results field is zero results.
func (t *TavilyProvider) Search(ctx context.Context, query string, maxResults int, window time.Duration) ([]RawResult, error) {
	if t.apiKey == "" {
		return nil, ErrMissingCredentials
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	data, err := json.Marshal(tavilyRequest{
		Query:       query,
		MaxResults:  maxResults,
		Topic:       "news",
		TimeRange:   timeRange(window),
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	results, err := decodeTavily(body)
	if err != nil {
		return nil, &MalformedDataError{Provider: t.Name(), Err: err}
	}
	logging.Debug("tavily search", "query", query, "results", len(results))
	return results, nil
}

func decodeTavily(body []byte) ([]RawResult, error) {
	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if len(envelope.Results) == 0 || json.Unmarshal(envelope.Results, &items) != nil {
		return nil, nil
	}

	results := make([]RawResult, 0, len(items))
	for i, item := range items {
		var r RawResult
		if err := json.Unmarshal(item, &r); err != nil {
			logging.Warn("skipping undecodable tavily result", "index", i, "error", err)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

func timeRange(window time.Duration) string {
	switch {
	case window <= 24*time.Hour:
		return "day"
	case window <= 7*24*time.Hour:
		return "week"
	case window <= 31*24*time.Hour:
		return "month"
	default:
		return "year"
	}
}
