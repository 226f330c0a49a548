package workspace

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ParseRole maps unknown or empty values to viewer.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleMember:
		return Role(s)
	default:
		return RoleViewer
	}
}

// Workspace is the tenant boundary. Balance is in cost units and never negative.
type Workspace struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string    `gorm:"column:name;not null;default:''" json:"name"`
	Plan    string    `gorm:"column:plan;not null;default:'free';index" json:"plan"`
	Balance int64     `gorm:"column:balance;not null;default:0;check:chk_workspace_balance_nonneg,balance >= 0" json:"balance"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Workspace) TableName() string { return "workspace" }

func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

type Member struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_member_user,priority:1" json:"workspace_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_member_user,priority:2;index" json:"user_id"`
	Role        Role      `gorm:"column:role;not null;default:'viewer'" json:"role"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Member) TableName() string { return "workspace_member" }

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
