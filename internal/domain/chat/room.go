package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoomSettings struct {
	AIAllowed  bool `gorm:"column:ai_allowed;not null;default:false" json:"ai_allowed"`
	AICanWrite bool `gorm:"column:ai_can_write;not null;default:false" json:"ai_can_write"`
}

// Room is a channel or direct-message thread inside a workspace. Rooms are
// archived, never deleted.
type Room struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID    `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string       `gorm:"column:name;not null;default:''" json:"name"`
	Settings    RoomSettings `gorm:"embedded;embeddedPrefix:settings_" json:"settings"`
	ArchivedAt  *time.Time   `gorm:"index" json:"archived_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Room) TableName() string { return "room" }

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
