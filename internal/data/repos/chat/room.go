package chat

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type RoomRepo interface {
	Create(dbc dbctx.Context, room *types.Room) (*types.Room, error)
	// GetActive returns nil, nil for unknown or archived rooms.
	GetActive(dbc dbctx.Context, id uuid.UUID) (*types.Room, error)
}

type roomRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRoomRepo(db *gorm.DB, baseLog *logger.Logger) RoomRepo {
	return &roomRepo{db: db, log: baseLog.With("repo", "RoomRepo")}
}

func (r *roomRepo) Create(dbc dbctx.Context, room *types.Room) (*types.Room, error) {
	if room == nil {
		return nil, errors.New("nil room")
	}
	if err := dbc.DB(r.db).Create(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}

func (r *roomRepo) GetActive(dbc dbctx.Context, id uuid.UUID) (*types.Room, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.Room
	if err := dbc.DB(r.db).
		Where("id = ? AND archived_at IS NULL", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}
