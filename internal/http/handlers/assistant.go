package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/huddle-backend/internal/http/response"
	"github.com/yungbote/huddle-backend/internal/modules/assistant"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/contextpack"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/events"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
	"github.com/yungbote/huddle-backend/internal/platform/apierr"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/platform/sse"
)

type AssistantService interface {
	Respond(ctx context.Context, in assistant.RespondInput, sink events.Sink) (assistant.RespondOutput, error)
}

type AssistantHandler struct {
	log       *logger.Logger
	assistant AssistantService
}

func NewAssistantHandler(log *logger.Logger, svc AssistantService) *AssistantHandler {
	return &AssistantHandler{log: log.With("handler", "AssistantHandler"), assistant: svc}
}

type chatRequest struct {
	RoomID         string              `json:"room_id"`
	ThreadRootID   *string             `json:"thread_root_id"`
	Prompt         string              `json:"prompt"`
	UserTimezone   string              `json:"user_timezone"`
	ContextOptions contextpack.Options `json:"context_options"`
	ToolOptions    toolkit.Options     `json:"tool_options"`
}

// sseSink opens the event stream on the first event, so errors returned
// before that can still be answered with a JSON status.
type sseSink struct {
	w *sse.Writer
}

func (s sseSink) Emit(ev events.Event) error { return s.w.Send(ev) }

// POST /api/ai/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondAPIError(c, apierr.Auth(errors.New("not authenticated")))
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	roomID, err := uuid.Parse(strings.TrimSpace(req.RoomID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_room_id", err)
		return
	}
	var threadRootID *uuid.UUID
	if req.ThreadRootID != nil && strings.TrimSpace(*req.ThreadRootID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*req.ThreadRootID))
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_thread_root_id", err)
			return
		}
		threadRootID = &id
	}

	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		response.RespondAPIError(c, apierr.Internal("streaming_unsupported", err))
		return
	}
	sink := sseSink{w: w}

	out, err := h.assistant.Respond(ctx, assistant.RespondInput{
		UserID:         rd.UserID,
		RoomID:         roomID,
		ThreadRootID:   threadRootID,
		Prompt:         req.Prompt,
		UserTimezone:   req.UserTimezone,
		ContextOptions: req.ContextOptions,
		ToolOptions:    req.ToolOptions,
	}, sink)
	if err != nil {
		if !w.Started() {
			response.RespondAPIError(c, err)
			return
		}
		ae := apierr.As(err)
		h.log.Error("assistant failed mid-stream", "error", err, "request_id", ctxutil.RequestID(ctx))
		_ = sink.Emit(events.Event{
			Type:      events.TypeError,
			RequestID: ctxutil.RequestID(ctx),
			Code:      ae.Code,
			Message:   "The assistant could not finish this reply.",
			Retryable: ae.Retryable(),
		})
		return
	}
	if !w.Started() {
		// Nothing was streamed, which only happens for a cancelled request.
		c.Status(http.StatusNoContent)
	}
	h.log.Debug("assistant turn finished", "outcome", out.Outcome, "message_id", out.MessageID, "request_id", ctxutil.RequestID(ctx))
}
