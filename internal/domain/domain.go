package domain

import (
	"github.com/yungbote/huddle-backend/internal/domain/chat"
	"github.com/yungbote/huddle-backend/internal/domain/entities"
	"github.com/yungbote/huddle-backend/internal/domain/workspace"
)

type Role = workspace.Role

const (
	RoleOwner  = workspace.RoleOwner
	RoleAdmin  = workspace.RoleAdmin
	RoleMember = workspace.RoleMember
	RoleViewer = workspace.RoleViewer
)

type Workspace = workspace.Workspace
type WorkspaceMember = workspace.Member

type Room = chat.Room
type RoomSettings = chat.RoomSettings
type ChatMessage = chat.ChatMessage
type MessageMetadata = chat.MessageMetadata
type ModerationRecord = chat.ModerationRecord
type ModerationVerdict = chat.ModerationVerdict
type ToolResult = chat.ToolResult
type WebSource = chat.WebSource
type Usage = chat.Usage
type ToolExecution = chat.ToolExecution

type Task = entities.Task
type TaskStatus = entities.TaskStatus
type Note = entities.Note
type CalendarEvent = entities.CalendarEvent
type Contact = entities.Contact
type Account = entities.Account
type Deal = entities.Deal
type PipelineStage = entities.PipelineStage
type Form = entities.Form
type FormSubmission = entities.FormSubmission
type Document = entities.Document

const (
	TaskStatusTodo            = entities.TaskStatusTodo
	TaskStatusInProgress      = entities.TaskStatusInProgress
	TaskStatusDone            = entities.TaskStatusDone
	SubmissionStatusCompleted = entities.SubmissionStatusCompleted
	DocumentKindDoc           = entities.DocumentKindDoc
	DocumentKindFile          = entities.DocumentKindFile
)

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{
		&workspace.Workspace{},
		&workspace.Member{},

		&chat.Room{},
		&chat.ChatMessage{},
		&chat.ToolExecution{},

		&entities.Task{},
		&entities.Note{},
		&entities.CalendarEvent{},
		&entities.Contact{},
		&entities.Account{},
		&entities.Deal{},
		&entities.Form{},
		&entities.FormSubmission{},
		&entities.Document{},
	}
}
