package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	"github.com/yungbote/huddle-backend/internal/http/response"
	"github.com/yungbote/huddle-backend/internal/platform/apierr"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/platform/sse"
	"github.com/yungbote/huddle-backend/internal/realtime"
)

// RoomEventsHandler streams room notifications (new messages, assistant
// replies, executed tools) to workspace members.
type RoomEventsHandler struct {
	log       *logger.Logger
	hub       *realtime.Hub
	rooms     repos.RoomRepo
	members   repos.MemberRepo
	keepAlive time.Duration
}

func NewRoomEventsHandler(log *logger.Logger, hub *realtime.Hub, rooms repos.RoomRepo, members repos.MemberRepo) *RoomEventsHandler {
	return &RoomEventsHandler{
		log:       log.With("handler", "RoomEventsHandler"),
		hub:       hub,
		rooms:     rooms,
		members:   members,
		keepAlive: 25 * time.Second,
	}
}

// GET /api/rooms/:id/events
func (h *RoomEventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondAPIError(c, apierr.Auth(errors.New("not authenticated")))
		return
	}
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_room_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: ctx}
	room, err := h.rooms.GetActive(dbc, roomID)
	if err != nil {
		response.RespondAPIError(c, apierr.Internal("room_lookup_failed", err))
		return
	}
	if room == nil {
		response.RespondAPIError(c, apierr.NotFound("room_not_found", errors.New("room not found")))
		return
	}
	ok, err := h.members.IsMember(dbc, room.WorkspaceID, rd.UserID)
	if err != nil {
		response.RespondAPIError(c, apierr.Internal("role_lookup_failed", err))
		return
	}
	if !ok {
		response.RespondAPIError(c, apierr.Permission("not_a_member", errors.New("not a member of this workspace")))
		return
	}

	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		response.RespondAPIError(c, apierr.Internal("streaming_unsupported", err))
		return
	}
	client := h.hub.NewClient(rd.UserID)
	h.hub.AddChannel(client, realtime.RoomChannel(room.ID))
	defer h.hub.CloseClient(client)
	w.Start()
	h.log.Debug("room stream open", "room_id", room.ID, "client_id", client.ID)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := w.Send(gin.H{"event": "heartbeat"}); err != nil {
				return
			}
		case ev, ok := <-client.Outbound:
			if !ok {
				return
			}
			if err := w.Send(ev); err != nil {
				h.log.Debug("room stream write failed", "error", err, "client_id", client.ID)
				return
			}
		}
	}
}
