package entities

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
)

var errMissingWorkspace = errors.New("missing workspace_id")

func listRecent[T any](dbc dbctx.Context, db *gorm.DB, workspaceID uuid.UUID, limit int) ([]*T, error) {
	if workspaceID == uuid.Nil {
		return nil, errMissingWorkspace
	}
	if limit <= 0 {
		limit = 25
	}
	var rows []*T
	if err := dbc.DB(db).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// getByIDs never crosses workspaces: ids from another tenant are ignored.
func getByIDs[T any](dbc dbctx.Context, db *gorm.DB, workspaceID uuid.UUID, ids []uuid.UUID) ([]*T, error) {
	if workspaceID == uuid.Nil {
		return nil, errMissingWorkspace
	}
	var rows []*T
	if len(ids) == 0 {
		return rows, nil
	}
	if err := dbc.DB(db).
		Where("workspace_id = ? AND id IN ?", workspaceID, ids).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func create[T any](dbc dbctx.Context, db *gorm.DB, row *T) (*T, error) {
	if row == nil {
		return nil, errors.New("nil row")
	}
	if err := dbc.DB(db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}
