package app

import (
	"fmt"

	"github.com/yungbote/huddle-backend/internal/platform/llm"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	platmod "github.com/yungbote/huddle-backend/internal/platform/moderation"
	"github.com/yungbote/huddle-backend/internal/platform/scheduler"
	"github.com/yungbote/huddle-backend/internal/platform/websearch"
	"github.com/yungbote/huddle-backend/internal/realtime/bus"
)

type Clients struct {
	LLM        llm.Provider
	Classifier platmod.Classifier
	Search     websearch.Searcher
	Bus        bus.Bus
	Scheduler  *scheduler.Scheduler
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	switch cfg.LLMProvider {
	case "anthropic":
		p, err := llm.NewAnthropic(log, llm.AnthropicConfig{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.LLMModel,
			MaxTokens: cfg.LLMMaxTokens,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init anthropic provider: %w", err)
		}
		out.LLM = p
	default:
		p, err := llm.NewOpenAI(log, llm.OpenAIConfig{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init openai provider: %w", err)
		}
		out.LLM = p
	}

	switch cfg.ModerationProvider {
	case "openai":
		c, err := platmod.NewOpenAIClient(log, platmod.OpenAIConfig{
			APIKey:  firstNonEmpty(cfg.ModerationAPIKey, cfg.LLMAPIKey),
			BaseURL: cfg.ModerationURL,
			Model:   cfg.ModerationModel,
			Timeout: cfg.ModerationTimeout,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init openai moderation: %w", err)
		}
		out.Classifier = c
	default:
		if cfg.ModerationURL == "" {
			log.Warn("MODERATION_URL unset; every prompt will be blocked until a classifier is configured")
			break
		}
		c, err := platmod.NewGuardClient(log, platmod.GuardConfig{
			URL:     cfg.ModerationURL,
			APIKey:  cfg.ModerationAPIKey,
			Timeout: cfg.ModerationTimeout,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init guard classifier: %w", err)
		}
		out.Classifier = c
	}

	if cfg.WebSearchURL != "" {
		c, err := websearch.NewClient(log, websearch.Config{
			URL:     cfg.WebSearchURL,
			APIKey:  cfg.WebSearchAPIKey,
			Timeout: cfg.WebSearchTimeout,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init web search: %w", err)
		}
		out.Search = c
	} else {
		log.Info("web search disabled")
	}

	b, err := bus.New(log, bus.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Channel:  cfg.RedisChannel,
	})
	if err != nil {
		return Clients{}, fmt.Errorf("init room bus: %w", err)
	}
	out.Bus = b

	out.Scheduler = scheduler.New(scheduler.RealClock(), scheduler.Config{
		RatePerSecond: cfg.LLMRate,
		Burst:         cfg.LLMBurst,
		MaxQueue:      cfg.LLMMaxQueue,
	})
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
