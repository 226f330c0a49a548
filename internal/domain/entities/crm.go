package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Contact struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index:idx_contact_ws_created,priority:1" json:"workspace_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Email       string    `gorm:"column:email;not null;default:''" json:"email"`
	Phone       string    `gorm:"column:phone;not null;default:''" json:"phone"`
	Company     string    `gorm:"column:company;not null;default:''" json:"company"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null;index:idx_contact_ws_created,priority:2" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Contact) TableName() string { return "contact" }

func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Account struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Industry    string    `gorm:"column:industry;not null;default:''" json:"industry"`
	Website     string    `gorm:"column:website;not null;default:''" json:"website"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Account) TableName() string { return "account" }

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Deal amounts are whole currency units.
type Deal struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;not null;index" json:"workspace_id"`
	AccountID   *uuid.UUID `gorm:"type:uuid;index" json:"account_id,omitempty"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Amount      int64      `gorm:"column:amount;not null;default:0" json:"amount"`
	Stage       string     `gorm:"column:stage;not null;default:'lead';index" json:"stage"`
	CloseDate   *time.Time `gorm:"column:close_date" json:"close_date,omitempty"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Deal) TableName() string { return "deal" }

func (d *Deal) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// PipelineStage is an aggregate row, not a table.
type PipelineStage struct {
	Stage  string `json:"stage"`
	Count  int64  `json:"count"`
	Amount int64  `json:"amount"`
}
