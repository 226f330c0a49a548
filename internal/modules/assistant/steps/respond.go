package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/contextpack"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/events"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/finalize"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/gatekeeper"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/moderation"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/stream"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/apierr"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/llm"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/realtime"
	"github.com/yungbote/huddle-backend/internal/realtime/bus"
)

// Outcomes recorded on the assistant request counter.
const (
	OutcomeCompleted         = "completed"
	OutcomeFallback          = "fallback"
	OutcomeRejected          = "rejected"
	OutcomeModerationBlocked = "moderation_blocked"
	OutcomeCancelled         = "cancelled"
	OutcomeProviderError     = "provider_error"
	OutcomeBillingFailed     = "billing_failed"
	OutcomePersistFailed     = "persist_failed"
)

const CodeProviderUnavailable = "provider_unavailable"

type RespondDeps struct {
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

	Model       string
	MaxTokens   int
	Temperature *float32
	// FinishTimeout bounds tool execution and finalization once the stream
	// has completed. That work is detached from the client connection.
	FinishTimeout time.Duration
	Now           func() time.Time
}

type RespondInput struct {
	UserID       uuid.UUID
	RoomID       uuid.UUID
	ThreadRootID *uuid.UUID
	Prompt       string
	UserTimezone string

	ContextOptions contextpack.Options
	ToolOptions    toolkit.Options
}

type RespondOutput struct {
	Outcome       string
	UserMessageID uuid.UUID
	MessageID     uuid.UUID
}

// Respond runs one assistant turn. Failures before anything was written to
// sink come back as *apierr.Error; once streaming has begun every failure is
// reported to sink and Respond returns nil.
func Respond(ctx context.Context, deps RespondDeps, in RespondInput, sink events.Sink) (RespondOutput, error) {
	out := RespondOutput{}
	if deps.Gatekeeper == nil || deps.Filter == nil || deps.Assembler == nil || deps.Resolver == nil ||
		deps.Executor == nil || deps.Driver == nil || deps.Finalizer == nil || deps.Provider == nil || deps.Messages == nil {
		return out, apierr.Internal("assistant_unavailable", fmt.Errorf("assistant respond: missing deps"))
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.FinishTimeout <= 0 {
		deps.FinishTimeout = 30 * time.Second
	}
	requestID := ctxutil.RequestID(ctx)
	log := deps.Log.With("request_id", requestID, "room_id", in.RoomID, "user_id", in.UserID)

	finish := func(outcome string) {
		out.Outcome = outcome
		deps.Metrics.IncAssistantOutcome(outcome)
	}

	// Admission.
	actx, span := observability.StartSpan(ctx, "assistant.admit", attribute.String("room_id", in.RoomID.String()))
	adm, err := deps.Gatekeeper.Admit(dbctx.Context{Ctx: actx}, gatekeeper.Input{UserID: in.UserID, RoomID: in.RoomID, Prompt: in.Prompt})
	endSpan(span, err)
	if err != nil {
		log.Info("request rejected", "code", apierr.As(err).Code)
		finish(OutcomeRejected)
		return out, err
	}
	log = log.With("workspace_id", adm.Workspace.ID, "role", adm.Role)

	if in.ThreadRootID != nil {
		root, err := deps.Messages.GetByID(dbctx.Context{Ctx: ctx}, *in.ThreadRootID)
		if err != nil {
			finish(OutcomeRejected)
			return out, apierr.Internal("thread_lookup_failed", err)
		}
		if root == nil || root.RoomID != adm.Room.ID {
			finish(OutcomeRejected)
			return out, apierr.NotFound("thread_not_found", errors.New("thread not found in this room"))
		}
	}

	// Input moderation. No completion is generated unless this passes.
	mctx, span := observability.StartSpan(ctx, "assistant.moderate_input")
	inVerdict := deps.Filter.Check(mctx, adm.Prompt, moderation.DirectionInput)
	span.SetAttributes(attribute.String("outcome", string(inVerdict.Outcome)))
	span.End()
	if inVerdict.Blocked {
		log.Warn("prompt blocked by moderation", "outcome", inVerdict.Outcome, "categories", inVerdict.Categories, "reason", inVerdict.Reason)
		finish(OutcomeModerationBlocked)
		return out, apierr.Validation("moderation_blocked", errors.New("this request can't be processed")).
			WithDetail("categories", inVerdict.Categories).
			WithDetail("outcome", string(inVerdict.Outcome))
	}
	if len(inVerdict.Categories) > 0 {
		log.Info("prompt flagged below block threshold", "categories", inVerdict.Categories)
	}

	// The prompt is stored before the model is invoked.
	userID := in.UserID
	userMsg := &types.ChatMessage{
		RoomID:       adm.Room.ID,
		WorkspaceID:  adm.Workspace.ID,
		UserID:       &userID,
		ThreadRootID: in.ThreadRootID,
		Body:         adm.Prompt,
		CreatedAt:    deps.Now().UTC(),
	}
	if _, err := deps.Messages.Create(dbctx.Context{Ctx: ctx}, userMsg); err != nil {
		log.Error("persisting prompt failed", "error", err)
		finish(OutcomePersistFailed)
		return out, apierr.Internal(finalize.CodePersistFailed, fmt.Errorf("store prompt: %w", err))
	}
	out.UserMessageID = userMsg.ID
	if deps.Bus != nil {
		ev := realtime.Event{Channel: realtime.RoomChannel(adm.Room.ID), Event: realtime.EventMessageCreated, Data: userMsg}
		if err := deps.Bus.Publish(ctx, ev); err != nil {
			log.Warn("room publish failed", "error", err)
		}
	}

	// Context and tools.
	cctx, span := observability.StartSpan(ctx, "assistant.context")
	bundle, err := deps.Assembler.Build(cctx, contextpack.Input{
		WorkspaceID:      adm.Workspace.ID,
		RoomID:           adm.Room.ID,
		ThreadRootID:     in.ThreadRootID,
		ExcludeMessageID: userMsg.ID,
		Query:            adm.Prompt,
		Options:          in.ContextOptions,
	})
	if bundle != nil {
		span.SetAttributes(attribute.Int("context.size", bundle.Size()), attribute.Int("context.dropped", len(bundle.Dropped)))
	}
	endSpan(span, err)
	if err != nil {
		if ctx.Err() != nil {
			finish(OutcomeCancelled)
			return out, nil
		}
		log.Error("context assembly failed", "error", err)
		finish(OutcomeRejected)
		return out, apierr.Internal("context_failed", err)
	}

	allowed := deps.Resolver.Resolve(adm.Role, adm.Room.Settings, in.ToolOptions)
	loc := resolveLocation(log, in.UserTimezone)

	system := buildSystemPrompt(systemPromptInput{
		WorkspaceName: adm.Workspace.Name,
		RoomName:      adm.Room.Name,
		Now:           deps.Now(),
		Location:      loc,
		Tools:         allowed.Names(),
		CanWrite:      adm.Room.Settings.AICanWrite,
		Background:    bundle.Render(),
	})
	msgs := make([]llm.Message, 0, len(bundle.History)+1)
	msgs = append(msgs, bundle.History...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: adm.Prompt})

	req := llm.Request{
		Model:       deps.Model,
		System:      system,
		Messages:    msgs,
		Tools:       allowed.Tools(),
		MaxTokens:   deps.MaxTokens,
		Temperature: deps.Temperature,
	}

	// Stream.
	sctx, span := observability.StartSpan(ctx, "assistant.stream", attribute.Int("tools.allowed", allowed.Len()))
	res, err := deps.Driver.Run(sctx, deps.Provider, req, sink)
	if res != nil {
		span.SetAttributes(attribute.String("stream.state", string(res.State)))
	}
	endSpan(span, err)

	// Work after the stream is detached from the client so a completed turn is
	// always stored and billed; an aborted stream never reaches this point.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deps.FinishTimeout)
	defer cancel()

	fin := finalize.Input{
		RequestID:    requestID,
		WorkspaceID:  adm.Workspace.ID,
		RoomID:       adm.Room.ID,
		UserID:       in.UserID,
		ThreadRootID: in.ThreadRootID,
		PromptChars:  len(adm.Prompt),
		ContextChars: bundle.Size(),
		InputVerdict: inVerdict.Record(),
	}

	switch {
	case errors.Is(err, stream.ErrCancelled):
		finish(OutcomeCancelled)
		return out, nil
	case err != nil:
		sources := bundle.FallbackSources()
		if len(sources) == 0 {
			log.Warn("model unavailable; no fallback sources", "error", err)
			_ = sink.Emit(events.Event{
				Type:      events.TypeError,
				RequestID: requestID,
				Code:      CodeProviderUnavailable,
				Message:   "The assistant is temporarily unavailable. Please try again.",
				Retryable: true,
			})
			finish(OutcomeProviderError)
			return out, nil
		}
		log.Warn("model unavailable; answering from web sources", "error", err, "sources", len(sources))
		answer := finalize.SourcesOnly(sources)
		_ = sink.Emit(events.Event{Type: events.TypeContent, RequestID: requestID, Content: answer})
		fin.Answer = answer
		fin.Sources = sources
		fin.Fallback = "web_sources"
		out.MessageID, out.Outcome = finalizeTurn(fctx, deps, log, fin, sink, OutcomeFallback)
		deps.Metrics.IncAssistantOutcome(out.Outcome)
		return out, nil
	}

	// Tools.
	var results []types.ToolResult
	if len(res.ToolCalls) > 0 {
		tctx, span := observability.StartSpan(fctx, "assistant.tools", attribute.Int("tools.calls", len(res.ToolCalls)))
		results = deps.Executor.Execute(tctx, toolkit.Scope{
			WorkspaceID: adm.Workspace.ID,
			RoomID:      adm.Room.ID,
			UserID:      in.UserID,
			RequestID:   requestID,
			Settings:    adm.Room.Settings,
			Allowed:     allowed,
			Location:    loc,
		}, res.ToolCalls)
		span.End()
		for i := range results {
			r := results[i]
			_ = sink.Emit(events.Event{Type: events.TypeToolResult, RequestID: requestID, ToolResult: &r})
			if r.Success && !r.Cached && deps.Bus != nil {
				ev := realtime.Event{Channel: realtime.RoomChannel(adm.Room.ID), Event: realtime.EventToolExecuted, Data: r}
				if err := deps.Bus.Publish(fctx, ev); err != nil {
					log.Warn("room publish failed", "error", err)
				}
			}
		}
	}

	fin.Answer = res.Content
	fin.ToolResults = results
	fin.Sources = mergeSources(bundle.Sources, toolkit.SourcesFrom(results))
	out.MessageID, out.Outcome = finalizeTurn(fctx, deps, log, fin, sink, OutcomeCompleted)
	deps.Metrics.IncAssistantOutcome(out.Outcome)
	return out, nil
}

// finalizeTurn stores and bills the reply. Failures were already reported to
// sink by the finalizer.
func finalizeTurn(ctx context.Context, deps RespondDeps, log *logger.Logger, in finalize.Input, sink events.Sink, outcome string) (uuid.UUID, string) {
	fctx, span := observability.StartSpan(ctx, "assistant.finalize")
	res, err := deps.Finalizer.Finalize(fctx, in, sink)
	endSpan(span, err)
	switch {
	case errors.Is(err, finalize.ErrBillingFailed):
		return uuid.Nil, OutcomeBillingFailed
	case err != nil:
		log.Error("finalize failed", "error", err)
		return uuid.Nil, OutcomePersistFailed
	case res.Verdict.Blocked:
		return res.Message.ID, OutcomeModerationBlocked
	}
	return res.Message.ID, outcome
}

func mergeSources(a, b []types.WebSource) []types.WebSource {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]types.WebSource, 0, len(a)+len(b))
	for _, list := range [][]types.WebSource{a, b} {
		for _, s := range list {
			if seen[s.URL] {
				continue
			}
			seen[s.URL] = true
			out = append(out, s)
		}
	}
	return out
}

func resolveLocation(log *logger.Logger, tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Debug("unknown user timezone; using UTC", "timezone", tz)
		return time.UTC
	}
	return loc
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
