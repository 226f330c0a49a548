package chat

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

// ErrDuplicateExecution means another request already recorded the same
// idempotency hash.
var ErrDuplicateExecution = errors.New("duplicate tool execution")

type ToolExecutionRepo interface {
	GetByHash(dbc dbctx.Context, hash string) (*types.ToolExecution, error)
	Create(dbc dbctx.Context, rec *types.ToolExecution) error
}

type toolExecutionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewToolExecutionRepo(db *gorm.DB, baseLog *logger.Logger) ToolExecutionRepo {
	return &toolExecutionRepo{db: db, log: baseLog.With("repo", "ToolExecutionRepo")}
}

func (r *toolExecutionRepo) GetByHash(dbc dbctx.Context, hash string) (*types.ToolExecution, error) {
	if hash == "" {
		return nil, nil
	}
	var rows []*types.ToolExecution
	if err := dbc.DB(r.db).Where("idempotency_hash = ?", hash).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *toolExecutionRepo) Create(dbc dbctx.Context, rec *types.ToolExecution) error {
	if rec == nil {
		return errors.New("nil tool execution")
	}
	if err := dbc.DB(r.db).Create(rec).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateExecution
		}
		return err
	}
	return nil
}

// IsUniqueViolation recognizes both the translated gorm error and a raw
// postgres 23505.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicateExecution) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
