// Package stream drives one streaming model call: it forwards content as it
// arrives, reassembles tool calls, keeps the connection alive with
// heartbeats and stops cleanly on disconnect or timeout.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yungbote/huddle-backend/internal/modules/assistant/events"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/llm"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/platform/scheduler"
)

type State string

const (
	StateInit             State = "init"
	StateStreaming        State = "streaming"
	StateToolCallsPending State = "tool_calls_pending"
	StateComplete         State = "complete"
	StateAborted          State = "aborted"
	StateError            State = "error"
)

var (
	// ErrProvider covers a failed open, a non-2xx answer and a broken stream.
	ErrProvider = errors.New("model provider failed")
	// ErrCancelled means the run was aborted; a cancelled event was emitted.
	ErrCancelled = errors.New("stream cancelled")
)

type Config struct {
	Timeout   time.Duration
	Heartbeat time.Duration
	Priority  scheduler.Priority
}

type Deps struct {
	Log       *logger.Logger
	Scheduler *scheduler.Scheduler
	Metrics   *observability.Metrics
}

type Result struct {
	State State
	// Content is the visible answer text with any inline call markup removed.
	Content      string
	ToolCalls    []toolkit.ToolCall
	Inline       bool
	FinishReason string
	CancelReason string
}

type Driver struct {
	deps Deps
	cfg  Config
}

func NewDriver(deps Deps, cfg Config) *Driver {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 15 * time.Second
	}
	deps.Log = deps.Log.With("service", "StreamDriver")
	return &Driver{deps: deps, cfg: cfg}
}

type recvItem struct {
	delta llm.Delta
	err   error
}

// Run streams one completion. Content events go to sink as they arrive;
// tool calls are returned, never executed here.
func (d *Driver) Run(ctx context.Context, provider llm.Provider, req llm.Request, sink events.Sink) (*Result, error) {
	res := &Result{State: StateInit}
	requestID := ctxutil.RequestID(ctx)
	log := d.deps.Log.With("request_id", requestID, "provider", provider.Name())

	tctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	hb := time.NewTimer(d.cfg.Heartbeat)
	defer hb.Stop()
	resetHeartbeat := func() {
		if !hb.Stop() {
			select {
			case <-hb.C:
			default:
			}
		}
		hb.Reset(d.cfg.Heartbeat)
	}
	emit := func(ev events.Event) error {
		ev.RequestID = requestID
		err := sink.Emit(ev)
		resetHeartbeat()
		return err
	}
	abort := func(reason string) (*Result, error) {
		res.State = StateAborted
		res.CancelReason = reason
		log.Info("stream aborted", "reason", reason)
		_ = emit(events.Event{Type: events.TypeCancelled, Reason: reason})
		return res, ErrCancelled
	}
	cancelReason := func() string {
		if ctx.Err() != nil {
			return events.CancelClientDisconnect
		}
		return events.CancelTimeout
	}

	if d.deps.Scheduler != nil {
		if err := d.deps.Scheduler.Acquire(tctx, d.cfg.Priority); err != nil {
			if tctx.Err() != nil {
				return abort(cancelReason())
			}
			res.State = StateError
			return res, fmt.Errorf("%w: %w", ErrProvider, err)
		}
	}

	start := time.Now()
	observe := func(status string, out int) {
		d.deps.Metrics.ObserveLLMRequest(provider.Name(), req.Model, status, time.Since(start), estimateRequestTokens(req), out)
	}

	s, err := provider.Stream(tctx, req)
	if err != nil {
		if tctx.Err() != nil {
			observe("cancelled", 0)
			return abort(cancelReason())
		}
		observe("error", 0)
		log.Warn("provider open failed", "error", err)
		res.State = StateError
		return res, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer s.Close()
	res.State = StateStreaming

	items := make(chan recvItem)
	go func() {
		for {
			dl, err := s.Recv()
			select {
			case items <- recvItem{delta: dl, err: err}:
			case <-tctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	acc := NewAccumulators()
	guard := &markupGuard{}
	var full strings.Builder

recv:
	for {
		select {
		case <-tctx.Done():
			observe("cancelled", tokensOf(full.Len()))
			return abort(cancelReason())
		case <-hb.C:
			_ = emit(events.Event{Type: events.TypeHeartbeat})
		case it := <-items:
			if it.err != nil {
				if errors.Is(it.err, io.EOF) {
					break recv
				}
				if tctx.Err() != nil {
					observe("cancelled", tokensOf(full.Len()))
					return abort(cancelReason())
				}
				observe("error", tokensOf(full.Len()))
				log.Warn("provider stream broke", "error", it.err)
				res.State = StateError
				res.Content = full.String()
				return res, fmt.Errorf("%w: %w", ErrProvider, it.err)
			}
			if c := it.delta.Content; c != "" {
				full.WriteString(c)
				if visible := guard.feed(c); visible != "" {
					if err := emit(events.Event{Type: events.TypeContent, Content: visible}); err != nil {
						observe("cancelled", tokensOf(full.Len()))
						res.State = StateAborted
						res.CancelReason = events.CancelClientDisconnect
						log.Info("client write failed; stopping stream", "error", err)
						return res, ErrCancelled
					}
				}
			}
			for _, tc := range it.delta.ToolCalls {
				acc.Add(tc)
			}
			if it.delta.FinishReason != "" {
				res.FinishReason = it.delta.FinishReason
			}
		}
	}

	content := full.String()
	calls := acc.Calls()
	held := guard.flush()
	if len(calls) == 0 {
		if cleaned, call, ok := ExtractInlineCall(content); ok {
			calls = []toolkit.ToolCall{*call}
			content = cleaned
			res.Inline = true
			held, _, _ = ExtractInlineCall(held)
			log.Info("inline tool markup recovered", "tool", call.Name)
		}
	}
	if held != "" {
		_ = emit(events.Event{Type: events.TypeContent, Content: held})
	}

	res.Content = strings.TrimSpace(content)
	res.ToolCalls = calls
	if len(calls) > 0 {
		res.State = StateToolCallsPending
	} else {
		res.State = StateComplete
	}
	observe("ok", tokensOf(len(content)))
	return res, nil
}

func tokensOf(chars int) int { return (chars + 3) / 4 }

func estimateRequestTokens(req llm.Request) int {
	n := len(req.System)
	for _, m := range req.Messages {
		n += len(m.Content)
	}
	return tokensOf(n)
}
