package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

// AIScope selects which AI replies count toward a rate-limit window.
// A nil RequestedBy counts the whole workspace.
type AIScope struct {
	WorkspaceID uuid.UUID
	RequestedBy *uuid.UUID
}

type ChatMessageRepo interface {
	Create(dbc dbctx.Context, msg *types.ChatMessage) (*types.ChatMessage, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatMessage, error)
	// ListRecent returns the newest limit messages of a room, or of one thread
	// when threadRootID is set, in chronological order.
	ListRecent(dbc dbctx.Context, roomID uuid.UUID, threadRootID *uuid.UUID, limit int) ([]*types.ChatMessage, error)
	CountAISince(dbc dbctx.Context, scope AIScope, since time.Time) (int64, error)
	OldestAISince(dbc dbctx.Context, scope AIScope, since time.Time) (*time.Time, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, log *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{db: db, log: log.With("repo", "ChatMessageRepo")}
}

func (r *chatMessageRepo) Create(dbc dbctx.Context, msg *types.ChatMessage) (*types.ChatMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil message")
	}
	if msg.RoomID == uuid.Nil || msg.WorkspaceID == uuid.Nil {
		return nil, fmt.Errorf("missing room_id or workspace_id")
	}
	if err := dbc.DB(r.db).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *chatMessageRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatMessage, error) {
	var rows []*types.ChatMessage
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *chatMessageRepo) ListRecent(dbc dbctx.Context, roomID uuid.UUID, threadRootID *uuid.UUID, limit int) ([]*types.ChatMessage, error) {
	if roomID == uuid.Nil {
		return nil, fmt.Errorf("missing room_id")
	}
	if limit <= 0 {
		limit = 30
	}
	q := dbc.DB(r.db).Where("room_id = ?", roomID)
	if threadRootID != nil && *threadRootID != uuid.Nil {
		q = q.Where("(id = ? OR thread_root_id = ?)", *threadRootID, *threadRootID)
	}
	var rows []*types.ChatMessage
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *chatMessageRepo) aiWindow(dbc dbctx.Context, scope AIScope, since time.Time) *gorm.DB {
	q := dbc.DB(r.db).
		Model(&types.ChatMessage{}).
		Where("workspace_id = ? AND is_ai = ? AND created_at >= ?", scope.WorkspaceID, true, since.UTC())
	if scope.RequestedBy != nil {
		q = q.Where("requested_by = ?", *scope.RequestedBy)
	}
	return q
}

func (r *chatMessageRepo) CountAISince(dbc dbctx.Context, scope AIScope, since time.Time) (int64, error) {
	var n int64
	if err := r.aiWindow(dbc, scope, since).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *chatMessageRepo) OldestAISince(dbc dbctx.Context, scope AIScope, since time.Time) (*time.Time, error) {
	var rows []*types.ChatMessage
	if err := r.aiWindow(dbc, scope, since).
		Select("id", "created_at").
		Order("created_at ASC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	t := rows[0].CreatedAt.UTC()
	return &t, nil
}
