package entities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type TaskRepo interface {
	Create(dbc dbctx.Context, t *types.Task) (*types.Task, error)
	ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Task, error)
	CountByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) (int64, error)
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{db: db, log: baseLog.With("repo", "TaskRepo")}
}

func (r *taskRepo) Create(dbc dbctx.Context, t *types.Task) (*types.Task, error) {
	return create(dbc, r.db, t)
}

func (r *taskRepo) ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Task, error) {
	return listRecent[types.Task](dbc, r.db, workspaceID, limit)
}

func (r *taskRepo) CountByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Task{}).Where("workspace_id = ?", workspaceID).Count(&n).Error
	return n, err
}

type NoteRepo interface {
	Create(dbc dbctx.Context, n *types.Note) (*types.Note, error)
}

type noteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo {
	return &noteRepo{db: db, log: baseLog.With("repo", "NoteRepo")}
}

func (r *noteRepo) Create(dbc dbctx.Context, n *types.Note) (*types.Note, error) {
	return create(dbc, r.db, n)
}

type CalendarEventRepo interface {
	Create(dbc dbctx.Context, e *types.CalendarEvent) (*types.CalendarEvent, error)
}

type calendarEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCalendarEventRepo(db *gorm.DB, baseLog *logger.Logger) CalendarEventRepo {
	return &calendarEventRepo{db: db, log: baseLog.With("repo", "CalendarEventRepo")}
}

func (r *calendarEventRepo) Create(dbc dbctx.Context, e *types.CalendarEvent) (*types.CalendarEvent, error) {
	return create(dbc, r.db, e)
}
