package moderation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/huddle-backend/internal/platform/httpx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type GuardConfig struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GuardClient calls a hosted guard model: POST {role, text} → {safe, categories}.
type GuardClient struct {
	log     *logger.Logger
	json    *httpx.JSONClient
	timeout time.Duration
}

func NewGuardClient(log *logger.Logger, cfg GuardConfig) (*GuardClient, error) {
	url := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if url == "" {
		return nil, fmt.Errorf("missing MODERATION_URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	return &GuardClient{
		log:     log.With("service", "GuardClient"),
		timeout: timeout,
		json: &httpx.JSONClient{
			Service:    "moderation",
			BaseURL:    url,
			Headers:    headers,
			HTTPClient: hc,
			MaxRetries: 0,
		},
	}, nil
}

type guardRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type guardResponse struct {
	Safe       *bool    `json:"safe"`
	Categories []string `json:"categories"`
}

func (c *GuardClient) Classify(ctx context.Context, role Role, text string) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out guardResponse
	if err := c.json.Do(ctx, http.MethodPost, "", guardRequest{Role: string(role), Text: text}, &out); err != nil {
		return Classification{}, unavailable(err)
	}
	if out.Safe == nil {
		return Classification{}, unavailable(fmt.Errorf("classifier reply missing safe field"))
	}
	return Classification{Safe: *out.Safe, Categories: normalizeCategories(out.Categories)}, nil
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
