// Package finalize turns a finished run into a persisted, billed reply.
package finalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/events"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/moderation"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/realtime"
	"github.com/yungbote/huddle-backend/internal/realtime/bus"
)

const (
	CodeBillingFailed = "billing_failed"
	CodePersistFailed = "persist_failed"

	DefaultApology = "I'm sorry, but I can't share that response. Please try rephrasing your request."
)

var ErrBillingFailed = errors.New("billing failed")

type Config struct {
	Pricing Pricing
	Apology string
}

type Deps struct {
	Log        *logger.Logger
	DB         *gorm.DB
	Messages   repos.ChatMessageRepo
	Workspaces repos.WorkspaceRepo
	Filter     *moderation.Filter
	Bus        bus.Bus
	Metrics    *observability.Metrics
}

type Input struct {
	RequestID    string
	WorkspaceID  uuid.UUID
	RoomID       uuid.UUID
	UserID       uuid.UUID
	ThreadRootID *uuid.UUID

	PromptChars  int
	ContextChars int

	Answer       string
	ToolResults  []types.ToolResult
	Sources      []types.WebSource
	InputVerdict *types.ModerationVerdict
	// Fallback marks a reply not produced by the model, e.g. "web_sources".
	Fallback string
}

type Output struct {
	Message *types.ChatMessage
	Usage   types.Usage
	Verdict moderation.Verdict
}

type Finalizer struct {
	deps Deps
	cfg  Config
}

func New(deps Deps, cfg Config) *Finalizer {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if cfg.Apology == "" {
		cfg.Apology = DefaultApology
	}
	if cfg.Pricing.MinCost <= 0 {
		cfg.Pricing.MinCost = 1
	}
	if cfg.Pricing.CostPer1K <= 0 {
		cfg.Pricing.CostPer1K = 1
	}
	deps.Log = deps.Log.With("service", "Finalizer")
	return &Finalizer{deps: deps, cfg: cfg}
}

// Finalize composes and moderates the reply, then stores it and debits the
// workspace in one transaction. If the debit fails nothing is stored and a
// billing_failed error event is sent; there is no unbilled reply.
func (f *Finalizer) Finalize(ctx context.Context, in Input, sink events.Sink) (*Output, error) {
	log := f.deps.Log.With("request_id", ctxutil.RequestID(ctx), "room_id", in.RoomID)

	body := Compose(in.Answer, in.ToolResults)
	verdict := moderation.Verdict{Direction: moderation.DirectionOutput, Outcome: moderation.OutcomeSafe, Safe: true, Severity: moderation.SeverityNone}
	if f.deps.Filter != nil {
		verdict = f.deps.Filter.Check(ctx, body, moderation.DirectionOutput)
	}
	if verdict.Blocked {
		log.Warn("assistant output blocked", "categories", verdict.Categories, "reason", verdict.Reason)
		body = f.cfg.Apology
		_ = sink.Emit(events.Event{
			Type:       events.TypeModerationBlocked,
			RequestID:  in.RequestID,
			Direction:  string(moderation.DirectionOutput),
			Categories: verdict.Categories,
			Content:    body,
		})
	}

	usage := EstimateUsage(in.PromptChars, in.ContextChars, len(body), f.cfg.Pricing)

	meta := types.MessageMetadata{
		RequestID:   in.RequestID,
		Moderation:  &types.ModerationRecord{Input: in.InputVerdict, Output: verdict.Record()},
		ToolResults: in.ToolResults,
		WebSources:  in.Sources,
		Usage:       &usage,
		Fallback:    in.Fallback,
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	userID := in.UserID
	msg := &types.ChatMessage{
		RoomID:       in.RoomID,
		WorkspaceID:  in.WorkspaceID,
		RequestedBy:  &userID,
		ThreadRootID: in.ThreadRootID,
		Body:         body,
		IsAI:         true,
		Metadata:     datatypes.JSON(rawMeta),
		CreatedAt:    time.Now().UTC(),
	}

	err = f.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := f.deps.Messages.Create(inner, msg); err != nil {
			return fmt.Errorf("insert reply: %w", err)
		}
		return f.deps.Workspaces.Debit(inner, in.WorkspaceID, usage.Cost)
	})
	if err != nil {
		if errors.Is(err, repos.ErrInsufficientBalance) {
			f.deps.Metrics.ObserveDebit(false, usage.Cost)
			log.Warn("debit rejected; reply discarded", "cost", usage.Cost)
			_ = sink.Emit(events.Event{
				Type:      events.TypeError,
				RequestID: in.RequestID,
				Code:      CodeBillingFailed,
				Message:   "The workspace balance could not cover this reply. Nothing was charged.",
				Retryable: true,
			})
			return nil, ErrBillingFailed
		}
		log.Error("persisting reply failed", "error", err)
		_ = sink.Emit(events.Event{
			Type:      events.TypeError,
			RequestID: in.RequestID,
			Code:      CodePersistFailed,
			Message:   "The reply could not be saved. Nothing was charged.",
			Retryable: true,
		})
		return nil, err
	}
	f.deps.Metrics.ObserveDebit(true, usage.Cost)

	if f.deps.Bus != nil {
		ev := realtime.Event{
			Channel: realtime.RoomChannel(in.RoomID),
			Event:   realtime.EventAssistantMessageCreated,
			Data:    msg,
		}
		if err := f.deps.Bus.Publish(ctx, ev); err != nil {
			log.Warn("room publish failed", "error", err)
		}
	}

	_ = sink.Emit(events.Event{
		Type:        events.TypeComplete,
		RequestID:   in.RequestID,
		MessageID:   msg.ID.String(),
		ToolResults: in.ToolResults,
		Sources:     in.Sources,
		Usage:       &usage,
		Moderation:  meta.Moderation,
	})
	log.Info("reply stored", "message_id", msg.ID, "cost", usage.Cost)
	return &Output{Message: msg, Usage: usage, Verdict: verdict}, nil
}
