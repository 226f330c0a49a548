package entities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type FormRepo interface {
	Create(dbc dbctx.Context, f *types.Form) (*types.Form, error)
	CreateSubmission(dbc dbctx.Context, s *types.FormSubmission) (*types.FormSubmission, error)
	ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Form, error)
	GetByIDs(dbc dbctx.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*types.Form, error)
	// RecentCompletedSubmissions returns the newest completed submissions
	// across formIDs, newest first.
	RecentCompletedSubmissions(dbc dbctx.Context, workspaceID uuid.UUID, formIDs []uuid.UUID, limit int) ([]*types.FormSubmission, error)
}

type formRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFormRepo(db *gorm.DB, baseLog *logger.Logger) FormRepo {
	return &formRepo{db: db, log: baseLog.With("repo", "FormRepo")}
}

func (r *formRepo) Create(dbc dbctx.Context, f *types.Form) (*types.Form, error) {
	return create(dbc, r.db, f)
}

func (r *formRepo) CreateSubmission(dbc dbctx.Context, s *types.FormSubmission) (*types.FormSubmission, error) {
	return create(dbc, r.db, s)
}

func (r *formRepo) ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Form, error) {
	return listRecent[types.Form](dbc, r.db, workspaceID, limit)
}

func (r *formRepo) GetByIDs(dbc dbctx.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*types.Form, error) {
	return getByIDs[types.Form](dbc, r.db, workspaceID, ids)
}

func (r *formRepo) RecentCompletedSubmissions(dbc dbctx.Context, workspaceID uuid.UUID, formIDs []uuid.UUID, limit int) ([]*types.FormSubmission, error) {
	var rows []*types.FormSubmission
	if len(formIDs) == 0 {
		return rows, nil
	}
	if limit <= 0 {
		limit = 25
	}
	if err := dbc.DB(r.db).
		Where("workspace_id = ? AND form_id IN ? AND status = ?", workspaceID, formIDs, types.SubmissionStatusCompleted).
		Order("submitted_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type DocumentRepo interface {
	Create(dbc dbctx.Context, d *types.Document) (*types.Document, error)
	ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Document, error)
	GetByIDs(dbc dbctx.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*types.Document, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, d *types.Document) (*types.Document, error) {
	return create(dbc, r.db, d)
}

func (r *documentRepo) ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Document, error) {
	return listRecent[types.Document](dbc, r.db, workspaceID, limit)
}

func (r *documentRepo) GetByIDs(dbc dbctx.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*types.Document, error) {
	return getByIDs[types.Document](dbc, r.db, workspaceID, ids)
}
