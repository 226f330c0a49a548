package entities

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type ContactRepo interface {
	Create(dbc dbctx.Context, c *types.Contact) (*types.Contact, error)
	ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Contact, error)
}

type contactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContactRepo(db *gorm.DB, baseLog *logger.Logger) ContactRepo {
	return &contactRepo{db: db, log: baseLog.With("repo", "ContactRepo")}
}

func (r *contactRepo) Create(dbc dbctx.Context, c *types.Contact) (*types.Contact, error) {
	return create(dbc, r.db, c)
}

func (r *contactRepo) ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Contact, error) {
	return listRecent[types.Contact](dbc, r.db, workspaceID, limit)
}

type AccountRepo interface {
	Create(dbc dbctx.Context, a *types.Account) (*types.Account, error)
	ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Account, error)
	GetByIDs(dbc dbctx.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*types.Account, error)
}

type accountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	return &accountRepo{db: db, log: baseLog.With("repo", "AccountRepo")}
}

func (r *accountRepo) Create(dbc dbctx.Context, a *types.Account) (*types.Account, error) {
	return create(dbc, r.db, a)
}

func (r *accountRepo) ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Account, error) {
	return listRecent[types.Account](dbc, r.db, workspaceID, limit)
}

func (r *accountRepo) GetByIDs(dbc dbctx.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*types.Account, error) {
	return getByIDs[types.Account](dbc, r.db, workspaceID, ids)
}

type DealRepo interface {
	Create(dbc dbctx.Context, d *types.Deal) (*types.Deal, error)
	ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Deal, error)
	// PipelineTotals aggregates open deal count and amount per stage.
	PipelineTotals(dbc dbctx.Context, workspaceID uuid.UUID) ([]types.PipelineStage, error)
}

type dealRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDealRepo(db *gorm.DB, baseLog *logger.Logger) DealRepo {
	return &dealRepo{db: db, log: baseLog.With("repo", "DealRepo")}
}

func (r *dealRepo) Create(dbc dbctx.Context, d *types.Deal) (*types.Deal, error) {
	return create(dbc, r.db, d)
}

func (r *dealRepo) ListRecent(dbc dbctx.Context, workspaceID uuid.UUID, limit int) ([]*types.Deal, error) {
	return listRecent[types.Deal](dbc, r.db, workspaceID, limit)
}

func (r *dealRepo) PipelineTotals(dbc dbctx.Context, workspaceID uuid.UUID) ([]types.PipelineStage, error) {
	if workspaceID == uuid.Nil {
		return nil, errMissingWorkspace
	}
	var rows []types.PipelineStage
	if err := dbc.DB(r.db).
		Model(&types.Deal{}).
		Select("stage, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("workspace_id = ?", workspaceID).
		Group("stage").
		Order("stage ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
