package app

import (
	"errors"
	"strings"
	"time"

	"github.com/yungbote/huddle-backend/internal/data/db"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/moderation"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
	"github.com/yungbote/huddle-backend/internal/platform/envutil"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type Config struct {
	Env         string
	Port        string
	ServiceName string
	Version     string
	CORSOrigins []string

	JWTSecretKey string
	JWTIssuer    string

	Postgres db.PostgresConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	LLMProvider  string
	LLMModel     string
	LLMBaseURL   string
	LLMAPIKey    string
	LLMTimeout   time.Duration
	LLMMaxTokens int
	LLMRate      float64
	LLMBurst     int
	LLMMaxQueue  int

	ModerationProvider string
	ModerationURL      string
	ModerationAPIKey   string
	ModerationModel    string
	ModerationTimeout  time.Duration

	WebSearchURL     string
	WebSearchAPIKey  string
	WebSearchTimeout time.Duration

	Assistant AssistantConfig
}

// AssistantConfig holds the policy knobs. The YAML policy file may override
// any of them.
type AssistantConfig struct {
	MaxPromptChars       int
	MaxTotalContext      int
	HistoryLimit         int
	MessageChars         int
	EntityLimit          int
	SelectedLimit        int
	DocumentChars        int
	WebResults           int
	Heartbeat            time.Duration
	FinishTimeout        time.Duration
	WorkspaceHourlyLimit int
	UserHourlyLimit      int
	PaidPlans            []string
	CostPer1K            float64
	MinRequestCost       int64
	EstimatedCost        int64
	HighSeverity         []string
	Roles                toolkit.RoleTable
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Env:         envutil.String("APP_ENV", "development"),
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("SERVICE_NAME", "huddle-backend"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),
		CORSOrigins: envutil.List("CORS_ORIGINS", nil),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:    envutil.String("JWT_ISSUER", ""),

		Postgres: db.PostgresConfigFromEnv(),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		RedisChannel:  envutil.String("REDIS_CHANNEL", "rooms"),

		LLMProvider:  strings.ToLower(envutil.String("LLM_PROVIDER", "openai")),
		LLMModel:     envutil.String("LLM_MODEL", "gpt-4o-mini"),
		LLMBaseURL:   envutil.String("LLM_BASE_URL", ""),
		LLMAPIKey:    envutil.String("LLM_API_KEY", ""),
		LLMTimeout:   envutil.Duration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxTokens: envutil.Int("LLM_MAX_TOKENS", 1024),
		LLMRate:      envutil.Float("LLM_RATE_PER_SECOND", 10),
		LLMBurst:     envutil.Int("LLM_BURST", 20),
		LLMMaxQueue:  envutil.Int("LLM_MAX_QUEUE", 200),

		ModerationProvider: strings.ToLower(envutil.String("MODERATION_PROVIDER", "guard")),
		ModerationURL:      envutil.String("MODERATION_URL", ""),
		ModerationAPIKey:   envutil.String("MODERATION_API_KEY", ""),
		ModerationModel:    envutil.String("MODERATION_MODEL", ""),
		ModerationTimeout:  envutil.Duration("MODERATION_TIMEOUT", 10*time.Second),

		WebSearchURL:     envutil.String("WEB_SEARCH_URL", ""),
		WebSearchAPIKey:  envutil.String("WEB_SEARCH_API_KEY", ""),
		WebSearchTimeout: envutil.Duration("WEB_SEARCH_TIMEOUT", 8*time.Second),

		Assistant: AssistantConfig{
			MaxPromptChars:       envutil.Int("ASSISTANT_MAX_PROMPT_CHARS", 4000),
			MaxTotalContext:      envutil.Int("ASSISTANT_MAX_TOTAL_CONTEXT", 24000),
			HistoryLimit:         envutil.Int("ASSISTANT_HISTORY_LIMIT", 30),
			MessageChars:         envutil.Int("ASSISTANT_HISTORY_MESSAGE_CHARS", 1200),
			EntityLimit:          envutil.Int("ASSISTANT_ENTITY_LIMIT", 25),
			SelectedLimit:        envutil.Int("ASSISTANT_SELECTED_LIMIT", 5),
			DocumentChars:        envutil.Int("ASSISTANT_DOCUMENT_CHARS", 4000),
			WebResults:           envutil.Int("ASSISTANT_WEB_RESULTS", 5),
			Heartbeat:            envutil.Duration("ASSISTANT_HEARTBEAT", 15*time.Second),
			FinishTimeout:        envutil.Duration("ASSISTANT_FINISH_TIMEOUT", 30*time.Second),
			WorkspaceHourlyLimit: envutil.Int("ASSISTANT_WORKSPACE_HOURLY_LIMIT", 200),
			UserHourlyLimit:      envutil.Int("ASSISTANT_USER_HOURLY_LIMIT", 40),
			PaidPlans:            envutil.List("ASSISTANT_PAID_PLANS", []string{"pro", "business", "enterprise"}),
			CostPer1K:            envutil.Float("ASSISTANT_COST_PER_1K_TOKENS", 1),
			MinRequestCost:       envutil.Int64("ASSISTANT_MIN_REQUEST_COST", 1),
			EstimatedCost:        envutil.Int64("ASSISTANT_ESTIMATED_REQUEST_COST", 5),
			HighSeverity:         envutil.List("ASSISTANT_HIGH_SEVERITY_CATEGORIES", moderation.DefaultHighSeverity),
			Roles:                toolkit.DefaultRoleTable(),
		},
	}

	if path := envutil.String("ASSISTANT_POLICY_FILE", ""); path != "" {
		pf, err := LoadPolicyFile(path)
		if err != nil {
			return Config{}, err
		}
		pf.Apply(&cfg.Assistant)
		log.Info("assistant policy file loaded", "path", path)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsDevelopment() bool { return c.Env == "development" || c.Env == "dev" }

func (c *Config) validate() error {
	if c.JWTSecretKey == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET_KEY is required")
		}
		c.JWTSecretKey = "dev-secret"
	}
	switch c.LLMProvider {
	case "openai", "anthropic":
	default:
		return errors.New("LLM_PROVIDER must be openai or anthropic")
	}
	switch c.ModerationProvider {
	case "guard", "openai":
	default:
		return errors.New("MODERATION_PROVIDER must be guard or openai")
	}
	if c.ModerationProvider == "guard" && c.ModerationURL == "" && !c.IsDevelopment() {
		return errors.New("MODERATION_URL is required for the guard classifier")
	}
	return nil
}
