package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/huddle-backend/internal/platform/httpx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

type Client struct {
	log     *logger.Logger
	json    *httpx.JSONClient
	timeout time.Duration
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("missing WEB_SEARCH_URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["X-API-Key"] = cfg.APIKey
	}
	c := &Client{log: log.With("service", "WebSearchClient"), timeout: timeout}
	c.json = &httpx.JSONClient{
		Service:    "websearch",
		BaseURL:    base,
		Headers:    headers,
		HTTPClient: hc,
		MaxRetries: cfg.MaxRetries,
		OnRetry: func(attempt int, sleep time.Duration, err error) {
			c.log.Warn("web search retrying", "attempt", attempt, "sleep", sleep.String(), "error", err)
		},
	}
	return c, nil
}

type searchResponse struct {
	Results []Result `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))

	var out searchResponse
	if err := c.json.Do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		results = append(results, r)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}
