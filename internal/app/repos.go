package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type Repos struct {
	Workspace repos.WorkspaceRepo
	Member    repos.MemberRepo

	Room          repos.RoomRepo
	ChatMessage   repos.ChatMessageRepo
	ToolExecution repos.ToolExecutionRepo

	Task          repos.TaskRepo
	Note          repos.NoteRepo
	CalendarEvent repos.CalendarEventRepo
	Contact       repos.ContactRepo
	Account       repos.AccountRepo
	Deal          repos.DealRepo
	Form          repos.FormRepo
	Document      repos.DocumentRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Workspace: repos.NewWorkspaceRepo(db, log),
		Member:    repos.NewMemberRepo(db, log),

		Room:          repos.NewRoomRepo(db, log),
		ChatMessage:   repos.NewChatMessageRepo(db, log),
		ToolExecution: repos.NewToolExecutionRepo(db, log),

		Task:          repos.NewTaskRepo(db, log),
		Note:          repos.NewNoteRepo(db, log),
		CalendarEvent: repos.NewCalendarEventRepo(db, log),
		Contact:       repos.NewContactRepo(db, log),
		Account:       repos.NewAccountRepo(db, log),
		Deal:          repos.NewDealRepo(db, log),
		Form:          repos.NewFormRepo(db, log),
		Document:      repos.NewDocumentRepo(db, log),
	}
}
