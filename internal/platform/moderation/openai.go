package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIClient classifies text with the OpenAI moderations endpoint.
type OpenAIClient struct {
	log     *logger.Logger
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIClient(log *logger.Logger, cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing moderation api key")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oc.BaseURL = base
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "omni-moderation-latest"
	}
	return &OpenAIClient{
		log:     log.With("service", "OpenAIModeration"),
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		timeout: timeout,
	}, nil
}

func (c *OpenAIClient) Classify(ctx context.Context, _ Role, text string) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Moderations(ctx, openai.ModerationRequest{Input: text, Model: c.model})
	if err != nil {
		return Classification{}, unavailable(err)
	}
	if len(resp.Results) == 0 {
		return Classification{}, unavailable(fmt.Errorf("empty moderation result"))
	}
	res := resp.Results[0]
	cats, err := flaggedCategories(res.Categories)
	if err != nil {
		return Classification{}, unavailable(err)
	}
	return Classification{Safe: !res.Flagged, Categories: cats}, nil
}

// flaggedCategories lists the true fields of the category struct by their JSON names.
func flaggedCategories(v any) ([]string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]bool
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	var out []string
	for k, flagged := range m {
		if flagged {
			out = append(out, strings.ToLower(k))
		}
	}
	sort.Strings(out)
	return out, nil
}
