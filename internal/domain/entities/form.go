package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Form struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID      `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description;type:text;not null;default:''" json:"description"`
	Fields      datatypes.JSON `gorm:"type:jsonb;column:fields;not null;default:'[]'" json:"fields"`
	CreatedBy   uuid.UUID      `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Form) TableName() string { return "form" }

func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if len(f.Fields) == 0 {
		f.Fields = datatypes.JSON([]byte("[]"))
	}
	return nil
}

const SubmissionStatusCompleted = "completed"

type FormSubmission struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID      `gorm:"type:uuid;not null;index" json:"workspace_id"`
	FormID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_form_submission_form_submitted,priority:1" json:"form_id"`
	Data        datatypes.JSON `gorm:"type:jsonb;column:data;not null;default:'{}'" json:"data"`
	Status      string         `gorm:"column:status;not null;default:'draft'" json:"status"`
	SubmittedAt *time.Time     `gorm:"column:submitted_at;index:idx_form_submission_form_submitted,priority:2" json:"submitted_at,omitempty"`
	CreatedBy   uuid.UUID      `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FormSubmission) TableName() string { return "form_submission" }

func (s *FormSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if len(s.Data) == 0 {
		s.Data = datatypes.JSON([]byte("{}"))
	}
	return nil
}
