package app

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/modules/assistant"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/contextpack"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/finalize"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/gatekeeper"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/moderation"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/stream"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/platform/scheduler"
	"github.com/yungbote/huddle-backend/internal/realtime"
)

type Services struct {
	Hub       *realtime.Hub
	Assistant assistant.Usecases
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	ac := cfg.Assistant

	gate := gatekeeper.New(gatekeeper.Deps{
		Log:        log,
		Rooms:      r.Room,
		Members:    r.Member,
		Workspaces: r.Workspace,
		Messages:   r.ChatMessage,
		Metrics:    metrics,
	}, gatekeeper.Config{
		MaxPromptChars:       ac.MaxPromptChars,
		PaidPlans:            ac.PaidPlans,
		EstimatedCost:        ac.EstimatedCost,
		WorkspaceHourlyLimit: ac.WorkspaceHourlyLimit,
		UserHourlyLimit:      ac.UserHourlyLimit,
		Window:               time.Hour,
	})

	filter := moderation.NewFilter(log, c.Classifier, moderation.NewPolicy(ac.HighSeverity), cfg.ModerationTimeout, metrics)

	assembler := contextpack.NewAssembler(contextpack.Deps{
		Log:       log,
		Messages:  r.ChatMessage,
		Tasks:     r.Task,
		Contacts:  r.Contact,
		Accounts:  r.Account,
		Deals:     r.Deal,
		Forms:     r.Form,
		Documents: r.Document,
		Search:    c.Search,
		Metrics:   metrics,
	}, contextpack.Config{
		MaxTotal:      ac.MaxTotalContext,
		HistoryLimit:  ac.HistoryLimit,
		MessageChars:  ac.MessageChars,
		EntityLimit:   ac.EntityLimit,
		SelectedLimit: ac.SelectedLimit,
		DocumentChars: ac.DocumentChars,
		WebResults:    ac.WebResults,
		SearchTimeout: cfg.WebSearchTimeout,
	})

	registry := toolkit.DefaultRegistry()
	resolver := toolkit.NewResolver(registry, ac.Roles)
	executor := toolkit.NewExecutor(toolkit.ExecutorDeps{
		Log:        log,
		DB:         db,
		Tasks:      r.Task,
		Notes:      r.Note,
		Calendar:   r.CalendarEvent,
		Contacts:   r.Contact,
		Accounts:   r.Account,
		Deals:      r.Deal,
		Executions: r.ToolExecution,
		Search:     c.Search,
		Metrics:    metrics,
	}, registry)

	driver := stream.NewDriver(stream.Deps{
		Log:       log,
		Scheduler: c.Scheduler,
		Metrics:   metrics,
	}, stream.Config{
		Timeout:   cfg.LLMTimeout,
		Heartbeat: ac.Heartbeat,
		Priority:  scheduler.PriorityInteractive,
	})

	finalizer := finalize.New(finalize.Deps{
		Log:        log,
		DB:         db,
		Messages:   r.ChatMessage,
		Workspaces: r.Workspace,
		Filter:     filter,
		Bus:        c.Bus,
		Metrics:    metrics,
	}, finalize.Config{
		Pricing: finalize.Pricing{CostPer1K: ac.CostPer1K, MinCost: ac.MinRequestCost},
	})

	return Services{
		Hub: realtime.NewHub(log),
		Assistant: assistant.New(assistant.UsecasesDeps{
			Log:           log,
			Messages:      r.ChatMessage,
			Bus:           c.Bus,
			Metrics:       metrics,
			Gatekeeper:    gate,
			Filter:        filter,
			Assembler:     assembler,
			Resolver:      resolver,
			Executor:      executor,
			Driver:        driver,
			Finalizer:     finalizer,
			Provider:      c.LLM,
			Model:         cfg.LLMModel,
			MaxTokens:     cfg.LLMMaxTokens,
			FinishTimeout: ac.FinishTimeout,
		}),
	}
}
