package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CalendarEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	StartsAt    time.Time `gorm:"column:starts_at;not null;index" json:"starts_at"`
	EndsAt      time.Time `gorm:"column:ends_at;not null" json:"ends_at"`
	Location    string    `gorm:"column:location;not null;default:''" json:"location"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CalendarEvent) TableName() string { return "calendar_event" }

func (e *CalendarEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
