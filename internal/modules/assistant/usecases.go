// Package assistant answers prompts in rooms: admission, moderation, context,
// streaming, tool execution and billing for one turn.
package assistant

import (
	"context"
	"time"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/contextpack"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/events"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/finalize"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/gatekeeper"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/moderation"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/steps"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/stream"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/llm"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/realtime/bus"
)

type UsecasesDeps struct {
	Log *logger.Logger

	Messages repos.ChatMessageRepo
	Bus      bus.Bus
	Metrics  *observability.Metrics

	Gatekeeper *gatekeeper.Gatekeeper
	Filter     *moderation.Filter
	Assembler  *contextpack.Assembler
	Resolver   *toolkit.Resolver
	Executor   *toolkit.Executor
	Driver     *stream.Driver
	Finalizer  *finalize.Finalizer
	Provider   llm.Provider

	Model         string
	MaxTokens     int
	Temperature   *float32
	FinishTimeout time.Duration
	Now           func() time.Time
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type (
	RespondInput  = steps.RespondInput
	RespondOutput = steps.RespondOutput
)

func (u Usecases) Respond(ctx context.Context, in RespondInput, sink events.Sink) (RespondOutput, error) {
	return steps.Respond(ctx, steps.RespondDeps{
		Log:           u.deps.Log,
		Messages:      u.deps.Messages,
		Bus:           u.deps.Bus,
		Metrics:       u.deps.Metrics,
		Gatekeeper:    u.deps.Gatekeeper,
		Filter:        u.deps.Filter,
		Assembler:     u.deps.Assembler,
		Resolver:      u.deps.Resolver,
		Executor:      u.deps.Executor,
		Driver:        u.deps.Driver,
		Finalizer:     u.deps.Finalizer,
		Provider:      u.deps.Provider,
		Model:         u.deps.Model,
		MaxTokens:     u.deps.MaxTokens,
		Temperature:   u.deps.Temperature,
		FinishTimeout: u.deps.FinishTimeout,
		Now:           u.deps.Now,
	}, in, sink)
}
