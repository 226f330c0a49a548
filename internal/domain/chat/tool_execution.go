package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ToolExecution is the audit and idempotency record for one executed tool
// call. IdempotencyHash is unique: a second insert of the same call fails.
type ToolExecution struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"workspace_id"`
	RoomID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"room_id"`
	RequestID       string         `gorm:"column:request_id;not null;default:'';index" json:"request_id"`
	ToolName        string         `gorm:"column:tool_name;not null;index" json:"tool_name"`
	IdempotencyHash string         `gorm:"column:idempotency_hash;not null;uniqueIndex" json:"idempotency_hash"`
	Arguments       datatypes.JSON `gorm:"type:jsonb;column:arguments;not null;default:'{}'" json:"arguments"`
	Result          datatypes.JSON `gorm:"type:jsonb;column:result;not null;default:'{}'" json:"result"`
	Success         bool           `gorm:"column:success;not null;default:false" json:"success"`
	Error           string         `gorm:"column:error;type:text;not null;default:''" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ToolExecution) TableName() string { return "tool_execution" }

func (t *ToolExecution) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
