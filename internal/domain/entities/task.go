package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

type Task struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;not null;index:idx_task_ws_created,priority:1" json:"workspace_id"`
	RoomID      *uuid.UUID `gorm:"type:uuid;index" json:"room_id,omitempty"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Description string     `gorm:"column:description;type:text;not null;default:''" json:"description"`
	DueDate     *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`
	Priority    string     `gorm:"column:priority;not null;default:'medium'" json:"priority"`
	Status      TaskStatus `gorm:"column:status;not null;default:'todo';index" json:"status"`
	AssigneeID  *uuid.UUID `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null;index:idx_task_ws_created,priority:2" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Task) TableName() string { return "task" }

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

type Note struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID  `gorm:"type:uuid;not null;index" json:"workspace_id"`
	RoomID      *uuid.UUID `gorm:"type:uuid;index" json:"room_id,omitempty"`
	Title       string     `gorm:"column:title;not null" json:"title"`
	Body        string     `gorm:"column:body;type:text;not null;default:''" json:"body"`
	CreatedBy   uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Note) TableName() string { return "note" }

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
