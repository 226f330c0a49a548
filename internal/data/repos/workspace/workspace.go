package workspace

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

// ErrInsufficientBalance is returned by Debit when the conditional decrement
// matched no row.
var ErrInsufficientBalance = errors.New("insufficient balance")

type WorkspaceRepo interface {
	Create(dbc dbctx.Context, ws *types.Workspace) (*types.Workspace, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Workspace, error)
	Debit(dbc dbctx.Context, id uuid.UUID, amount int64) error
}

type workspaceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorkspaceRepo(db *gorm.DB, baseLog *logger.Logger) WorkspaceRepo {
	return &workspaceRepo{db: db, log: baseLog.With("repo", "WorkspaceRepo")}
}

func (r *workspaceRepo) Create(dbc dbctx.Context, ws *types.Workspace) (*types.Workspace, error) {
	if ws == nil {
		return nil, errors.New("nil workspace")
	}
	if err := dbc.DB(r.db).Create(ws).Error; err != nil {
		return nil, err
	}
	return ws, nil
}

// GetByID returns nil, nil when the workspace does not exist.
func (r *workspaceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Workspace, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var rows []*types.Workspace
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Debit decrements the balance in one statement guarded by balance >= amount,
// so concurrent debits can never take it below zero.
func (r *workspaceRepo) Debit(dbc dbctx.Context, id uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	res := dbc.DB(r.db).
		Model(&types.Workspace{}).
		Where("id = ? AND balance >= ?", id, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": r.db.NowFunc(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrInsufficientBalance
	}
	return nil
}
