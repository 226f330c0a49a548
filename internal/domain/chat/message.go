package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatMessage is one turn in a room. AI replies have a nil UserID and record
// the triggering user in RequestedBy so per-user rate limits can count them.
type ChatMessage struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_chat_message_room_created,priority:1" json:"room_id"`
	WorkspaceID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_chat_message_ws_ai_created,priority:1" json:"workspace_id"`
	UserID       *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	RequestedBy  *uuid.UUID `gorm:"type:uuid;index" json:"requested_by,omitempty"`
	ThreadRootID *uuid.UUID `gorm:"type:uuid;index" json:"thread_root_id,omitempty"`

	Body     string         `gorm:"column:body;type:text;not null;default:''" json:"body"`
	IsAI     bool           `gorm:"column:is_ai;not null;default:false;index:idx_chat_message_ws_ai_created,priority:2" json:"is_ai"`
	Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	Pinned   bool       `gorm:"column:pinned;not null;default:false" json:"pinned"`
	EditedAt *time.Time `json:"edited_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index:idx_chat_message_room_created,priority:2;index:idx_chat_message_ws_ai_created,priority:3" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ChatMessage) TableName() string { return "chat_message" }

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if len(m.Metadata) == 0 {
		m.Metadata = datatypes.JSON([]byte("{}"))
	}
	return nil
}
