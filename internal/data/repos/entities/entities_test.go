package entities

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/huddle-backend/internal/data/repos/testutil"
	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
)

func TestDealRepoPipelineTotals(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewDealRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx}

	ws := testutil.SeedWorkspace(t, ctx, db, "pro", 0)
	other := testutil.SeedWorkspace(t, ctx, db, "pro", 0)
	u := uuid.New()
	testutil.SeedDeal(t, ctx, db, ws.ID, u, "a", "lead", 100)
	testutil.SeedDeal(t, ctx, db, ws.ID, u, "b", "lead", 50)
	testutil.SeedDeal(t, ctx, db, ws.ID, u, "c", "won", 900)
	testutil.SeedDeal(t, ctx, db, other.ID, u, "x", "lead", 1)

	rows, err := repo.PipelineTotals(dbc, ws.ID)
	if err != nil {
		t.Fatalf("PipelineTotals: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 stages, got %+v", rows)
	}
	if rows[0].Stage != "lead" || rows[0].Count != 2 || rows[0].Amount != 150 {
		t.Fatalf("lead: %+v", rows[0])
	}
	if rows[1].Stage != "won" || rows[1].Count != 1 || rows[1].Amount != 900 {
		t.Fatalf("won: %+v", rows[1])
	}
}

func TestListRecentAndScopedIDs(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	log := testutil.Logger(t)

	ws := testutil.SeedWorkspace(t, ctx, db, "pro", 0)
	other := testutil.SeedWorkspace(t, ctx, db, "pro", 0)
	u := uuid.New()
	for i := 0; i < 4; i++ {
		testutil.SeedTask(t, ctx, db, ws.ID, u, "task")
	}
	tasks, err := NewTaskRepo(db, log).ListRecent(dbc, ws.ID, 3)
	if err != nil || len(tasks) != 3 {
		t.Fatalf("ListRecent tasks: len=%d err=%v", len(tasks), err)
	}
	if _, err := NewTaskRepo(db, log).ListRecent(dbc, uuid.Nil, 3); err == nil {
		t.Fatalf("expected error for missing workspace")
	}

	mine := testutil.SeedDocument(t, ctx, db, ws.ID, u, "mine", "body")
	theirs := testutil.SeedDocument(t, ctx, db, other.ID, u, "theirs", "body")
	docs, err := NewDocumentRepo(db, log).GetByIDs(dbc, ws.ID, []uuid.UUID{mine.ID, theirs.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != mine.ID {
		t.Fatalf("GetByIDs crossed workspaces: %+v", docs)
	}
}

func TestFormRepoRecentCompletedSubmissions(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewFormRepo(db, testutil.Logger(t))

	ws := testutil.SeedWorkspace(t, ctx, db, "pro", 0)
	u := uuid.New()
	form, err := repo.Create(dbc, &types.Form{WorkspaceID: ws.ID, Name: "intake", CreatedBy: u})
	if err != nil {
		t.Fatalf("Create form: %v", err)
	}
	now := time.Now().UTC()
	for i, status := range []string{"completed", "draft", "completed"} {
		at := now.Add(time.Duration(i) * time.Minute)
		if _, err := repo.CreateSubmission(dbc, &types.FormSubmission{
			WorkspaceID: ws.ID,
			FormID:      form.ID,
			Status:      status,
			SubmittedAt: &at,
			CreatedBy:   u,
		}); err != nil {
			t.Fatalf("CreateSubmission: %v", err)
		}
	}

	subs, err := repo.RecentCompletedSubmissions(dbc, ws.ID, []uuid.UUID{form.ID}, 5)
	if err != nil {
		t.Fatalf("RecentCompletedSubmissions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("want 2 completed submissions, got %d", len(subs))
	}
	if !subs[0].SubmittedAt.After(*subs[1].SubmittedAt) {
		t.Fatalf("submissions not newest first")
	}
}
