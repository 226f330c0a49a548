package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DocumentKindDoc  = "doc"
	DocumentKindFile = "file"
)

// Document covers both editor documents and uploaded files with extracted text.
type Document struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index:idx_document_ws_kind,priority:1" json:"workspace_id"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Body        string    `gorm:"column:body;type:text;not null;default:''" json:"body"`
	Kind        string    `gorm:"column:kind;not null;default:'doc';index:idx_document_ws_kind,priority:2" json:"kind"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
