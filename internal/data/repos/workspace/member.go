package workspace

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/huddle-backend/internal/domain"
	wsdomain "github.com/yungbote/huddle-backend/internal/domain/workspace"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type MemberRepo interface {
	Upsert(dbc dbctx.Context, m *types.WorkspaceMember) error
	// GetRole falls back to viewer when the stored role is empty or unknown.
	// Callers gate on IsMember first; a missing row also reads as viewer.
	GetRole(dbc dbctx.Context, workspaceID, userID uuid.UUID) (types.Role, error)
	IsMember(dbc dbctx.Context, workspaceID, userID uuid.UUID) (bool, error)
}

type memberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return &memberRepo{db: db, log: baseLog.With("repo", "MemberRepo")}
}

func (r *memberRepo) Upsert(dbc dbctx.Context, m *types.WorkspaceMember) error {
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
		}).
		Create(m).Error
}

func (r *memberRepo) GetRole(dbc dbctx.Context, workspaceID, userID uuid.UUID) (types.Role, error) {
	var rows []*types.WorkspaceMember
	if err := dbc.DB(r.db).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return types.RoleViewer, err
	}
	if len(rows) == 0 {
		return types.RoleViewer, nil
	}
	return wsdomain.ParseRole(string(rows[0].Role)), nil
}

func (r *memberRepo) IsMember(dbc dbctx.Context, workspaceID, userID uuid.UUID) (bool, error) {
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
