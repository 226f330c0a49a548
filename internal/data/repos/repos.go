package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/data/repos/chat"
	"github.com/yungbote/huddle-backend/internal/data/repos/entities"
	"github.com/yungbote/huddle-backend/internal/data/repos/workspace"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type WorkspaceRepo = workspace.WorkspaceRepo
type MemberRepo = workspace.MemberRepo

type RoomRepo = chat.RoomRepo
type ChatMessageRepo = chat.ChatMessageRepo
type ToolExecutionRepo = chat.ToolExecutionRepo
type AIScope = chat.AIScope

type TaskRepo = entities.TaskRepo
type NoteRepo = entities.NoteRepo
type CalendarEventRepo = entities.CalendarEventRepo
type ContactRepo = entities.ContactRepo
type AccountRepo = entities.AccountRepo
type DealRepo = entities.DealRepo
type FormRepo = entities.FormRepo
type DocumentRepo = entities.DocumentRepo

var (
	ErrInsufficientBalance = workspace.ErrInsufficientBalance
	ErrDuplicateExecution  = chat.ErrDuplicateExecution
)

func IsUniqueViolation(err error) bool { return chat.IsUniqueViolation(err) }

func NewWorkspaceRepo(db *gorm.DB, baseLog *logger.Logger) WorkspaceRepo {
	return workspace.NewWorkspaceRepo(db, baseLog)
}
func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return workspace.NewMemberRepo(db, baseLog)
}

func NewRoomRepo(db *gorm.DB, baseLog *logger.Logger) RoomRepo { return chat.NewRoomRepo(db, baseLog) }
func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return chat.NewChatMessageRepo(db, baseLog)
}
func NewToolExecutionRepo(db *gorm.DB, baseLog *logger.Logger) ToolExecutionRepo {
	return chat.NewToolExecutionRepo(db, baseLog)
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo { return entities.NewTaskRepo(db, baseLog) }
func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo { return entities.NewNoteRepo(db, baseLog) }
func NewCalendarEventRepo(db *gorm.DB, baseLog *logger.Logger) CalendarEventRepo {
	return entities.NewCalendarEventRepo(db, baseLog)
}
func NewContactRepo(db *gorm.DB, baseLog *logger.Logger) ContactRepo {
	return entities.NewContactRepo(db, baseLog)
}
func NewAccountRepo(db *gorm.DB, baseLog *logger.Logger) AccountRepo {
	return entities.NewAccountRepo(db, baseLog)
}
func NewDealRepo(db *gorm.DB, baseLog *logger.Logger) DealRepo { return entities.NewDealRepo(db, baseLog) }
func NewFormRepo(db *gorm.DB, baseLog *logger.Logger) FormRepo { return entities.NewFormRepo(db, baseLog) }
func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return entities.NewDocumentRepo(db, baseLog)
}
