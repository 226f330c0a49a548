package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/huddle-backend/internal/domain"
)

func SeedWorkspace(tb testing.TB, ctx context.Context, tx *gorm.DB, plan string, balance int64) *types.Workspace {
	tb.Helper()
	ws := &types.Workspace{
		ID:      uuid.New(),
		Name:    "acme",
		Plan:    plan,
		Balance: balance,
	}
	if err := tx.WithContext(ctx).Create(ws).Error; err != nil {
		tb.Fatalf("seed workspace: %v", err)
	}
	return ws
}

func SeedMember(tb testing.TB, ctx context.Context, tx *gorm.DB, workspaceID, userID uuid.UUID, role types.Role) *types.WorkspaceMember {
	tb.Helper()
	m := &types.WorkspaceMember{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed member: %v", err)
	}
	return m
}

func SeedRoom(tb testing.TB, ctx context.Context, tx *gorm.DB, workspaceID uuid.UUID, settings types.RoomSettings) *types.Room {
	tb.Helper()
	r := &types.Room{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        "general",
		Settings:    settings,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed room: %v", err)
	}
	return r
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, room *types.Room, userID *uuid.UUID, body string, isAI bool, at time.Time) *types.ChatMessage {
	tb.Helper()
	m := &types.ChatMessage{
		ID:          uuid.New(),
		RoomID:      room.ID,
		WorkspaceID: room.WorkspaceID,
		Body:        body,
		IsAI:        isAI,
		CreatedAt:   at.UTC(),
		UpdatedAt:   at.UTC(),
	}
	if isAI {
		m.RequestedBy = userID
	} else {
		m.UserID = userID
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

func SeedTask(tb testing.TB, ctx context.Context, tx *gorm.DB, workspaceID, createdBy uuid.UUID, title string) *types.Task {
	tb.Helper()
	t := &types.Task{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Title:       title,
		Status:      types.TaskStatusTodo,
		Priority:    "medium",
		CreatedBy:   createdBy,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed task: %v", err)
	}
	return t
}

func SeedContact(tb testing.TB, ctx context.Context, tx *gorm.DB, workspaceID, createdBy uuid.UUID, name, email, phone string) *types.Contact {
	tb.Helper()
	c := &types.Contact{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		Email:       email,
		Phone:       phone,
		CreatedBy:   createdBy,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed contact: %v", err)
	}
	return c
}

func SeedDeal(tb testing.TB, ctx context.Context, tx *gorm.DB, workspaceID, createdBy uuid.UUID, name, stage string, amount int64) *types.Deal {
	tb.Helper()
	d := &types.Deal{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		Stage:       stage,
		Amount:      amount,
		CreatedBy:   createdBy,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed deal: %v", err)
	}
	return d
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, workspaceID, createdBy uuid.UUID, title, body string) *types.Document {
	tb.Helper()
	d := &types.Document{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Title:       title,
		Body:        body,
		Kind:        types.DocumentKindDoc,
		CreatedBy:   createdBy,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
