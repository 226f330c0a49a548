package toolkit

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	"github.com/yungbote/huddle-backend/internal/data/repos/testutil"
	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/websearch"
)

type searcherFunc func(ctx context.Context, q string, limit int) ([]websearch.Result, error)

func (f searcherFunc) Search(ctx context.Context, q string, limit int) ([]websearch.Result, error) {
	return f(ctx, q, limit)
}

var allOptions = Options{
	AllowTaskCreation:    true,
	AllowNoteCreation:    true,
	AllowContactCreation: true,
	AllowCalendarEvents:  true,
	AllowAccountCreation: true,
	AllowDealCreation:    true,
	AllowWebSearch:       true,
}

func TestResolve(t *testing.T) {
	r := NewResolver(DefaultRegistry(), nil)
	writable := types.RoomSettings{AIAllowed: true, AICanWrite: true}
	readOnly := types.RoomSettings{AIAllowed: true}

	cases := []struct {
		name     string
		role     types.Role
		settings types.RoomSettings
		opts     Options
		want     []string
	}{
		{"owner all", types.RoleOwner, writable, allOptions, []string{
			ToolCreateAccount, ToolCreateCalendarEvent, ToolCreateContact, ToolCreateDeal, ToolCreateNote, ToolCreateTask, ToolWebSearch,
		}},
		{"member", types.RoleMember, writable, allOptions, []string{
			ToolCreateCalendarEvent, ToolCreateContact, ToolCreateNote, ToolCreateTask, ToolWebSearch,
		}},
		{"member read-only room", types.RoleMember, readOnly, allOptions, []string{ToolWebSearch}},
		{"viewer", types.RoleViewer, writable, allOptions, []string{ToolWebSearch}},
		{"nothing opted in", types.RoleOwner, writable, Options{}, []string{}},
		{"only what was asked", types.RoleAdmin, writable, Options{AllowDealCreation: true}, []string{ToolCreateDeal}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(tc.role, tc.settings, tc.opts)
			if !reflect.DeepEqual(got.Names(), tc.want) {
				t.Fatalf("Resolve=%v want %v", got.Names(), tc.want)
			}
			if len(got.Tools()) != len(tc.want) {
				t.Fatalf("Tools len=%d", len(got.Tools()))
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 02:00 UTC on the 10th is still the 9th in UTC-5.
	now := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)

	cases := []struct {
		in   string
		kind DateKind
		want string
	}{
		{"today", DateOnly, "2026-03-09"},
		{"Tomorrow", DateOnly, "2026-03-10"},
		{"2026-04-01", DateOnly, "2026-04-01"},
		{"2026-04-01T23:30:00Z", DateOnly, "2026-04-01"},
		{"tomorrow", DateTime, "2026-03-10T14:00:00Z"},
		{"2026-04-01 15:30", DateTime, "2026-04-01T20:30:00Z"},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in, tc.kind, loc, now)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}
		var s string
		if tc.kind == DateOnly {
			s = got.Format("2006-01-02")
		} else {
			s = got.UTC().Format(time.RFC3339)
		}
		if s != tc.want {
			t.Fatalf("ParseDate(%q)=%s want %s", tc.in, s, tc.want)
		}
	}
	if _, err := ParseDate("next blue moon", DateOnly, loc, now); err == nil {
		t.Fatalf("expected error for unparseable date")
	}
}

func TestIdempotencyHashIgnoresKeyOrder(t *testing.T) {
	ws, room := uuid.New(), uuid.New()
	a, _ := decodeArgs(`{"title":"Ship","due_date":"2026-01-02"}`)
	b, _ := decodeArgs(`{"due_date":"2026-01-02","title":"Ship"}`)
	ha, err := IdempotencyHash(ws, room, ToolCreateTask, a, "")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hb, _ := IdempotencyHash(ws, room, ToolCreateTask, b, "")
	if ha != hb {
		t.Fatalf("hash differs by key order")
	}
	hc, _ := IdempotencyHash(ws, uuid.New(), ToolCreateTask, a, "")
	if hc == ha {
		t.Fatalf("hash should include room")
	}
}

type fixture struct {
	db    *gorm.DB
	exec  *Executor
	tasks repos.TaskRepo
	ws    *types.Workspace
	room  *types.Room
	user  uuid.UUID
	now   time.Time
}

func newFixture(t *testing.T, settings types.RoomSettings, search websearch.Searcher) *fixture {
	t.Helper()
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	ws := testutil.SeedWorkspace(t, ctx, db, "pro", 100)
	room := testutil.SeedRoom(t, ctx, db, ws.ID, settings)
	now := time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)
	tasks := repos.NewTaskRepo(db, log)
	exec := NewExecutor(ExecutorDeps{
		Log:        log,
		DB:         db,
		Tasks:      tasks,
		Notes:      repos.NewNoteRepo(db, log),
		Calendar:   repos.NewCalendarEventRepo(db, log),
		Contacts:   repos.NewContactRepo(db, log),
		Accounts:   repos.NewAccountRepo(db, log),
		Deals:      repos.NewDealRepo(db, log),
		Executions: repos.NewToolExecutionRepo(db, log),
		Search:     search,
		Now:        func() time.Time { return now },
	}, nil)
	return &fixture{db: db, exec: exec, tasks: tasks, ws: ws, room: room, user: uuid.New(), now: now}
}

func (f *fixture) scope(role types.Role, requestID string) Scope {
	r := NewResolver(DefaultRegistry(), nil)
	return Scope{
		WorkspaceID: f.ws.ID,
		RoomID:      f.room.ID,
		UserID:      f.user,
		RequestID:   requestID,
		Settings:    f.room.Settings,
		Allowed:     r.Resolve(role, f.room.Settings, allOptions),
		Location:    time.UTC,
	}
}

func (f *fixture) countTasks(t *testing.T) int64 {
	t.Helper()
	n, err := f.tasks.CountByWorkspace(dbctx.Context{Ctx: context.Background()}, f.ws.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestExecuteCreateTaskIsIdempotent(t *testing.T) {
	f := newFixture(t, types.RoomSettings{AIAllowed: true, AICanWrite: true}, nil)
	ctx := context.Background()
	call := ToolCall{ID: "call_1", Name: ToolCreateTask, Arguments: `{"title":"Send the deck","due_date":"tomorrow"}`}

	first := f.exec.Execute(ctx, f.scope(types.RoleMember, "req-1"), []ToolCall{call})
	if len(first) != 1 || !first[0].Success || first[0].Cached {
		t.Fatalf("first run: %+v", first)
	}
	if first[0].Summary["due_date"] != "2026-05-05" || first[0].Summary["title"] != "Send the deck" {
		t.Fatalf("summary: %+v", first[0].Summary)
	}

	// A retried request carries a new request id but the same arguments.
	second := f.exec.Execute(ctx, f.scope(types.RoleMember, "req-2"), []ToolCall{call})
	if len(second) != 1 || !second[0].Success || !second[0].Cached {
		t.Fatalf("second run should be cached: %+v", second)
	}
	if second[0].Summary["id"] != first[0].Summary["id"] {
		t.Fatalf("cached result points at a different task")
	}
	if n := f.countTasks(t); n != 1 {
		t.Fatalf("tasks=%d want 1", n)
	}
}

func TestExecuteConcurrentDuplicatesInsertOnce(t *testing.T) {
	f := newFixture(t, types.RoomSettings{AIAllowed: true, AICanWrite: true}, nil)
	ctx := context.Background()
	call := ToolCall{Name: ToolCreateTask, Arguments: `{"title":"Renew domain"}`}

	const workers = 8
	results := make([][]types.ToolResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.exec.Execute(ctx, f.scope(types.RoleOwner, uuid.NewString()), []ToolCall{call})
		}(i)
	}
	wg.Wait()

	fresh := 0
	var id any
	for i, r := range results {
		if len(r) != 1 || !r[0].Success {
			t.Fatalf("worker %d: %+v", i, r)
		}
		if !r[0].Cached {
			fresh++
		}
		if id == nil {
			id = r[0].Summary["id"]
		} else if r[0].Summary["id"] != id {
			t.Fatalf("workers disagree on task id")
		}
	}
	if fresh != 1 {
		t.Fatalf("fresh executions=%d want 1", fresh)
	}
	if n := f.countTasks(t); n != 1 {
		t.Fatalf("tasks=%d want 1", n)
	}
}

func TestExecuteViewerForgedCallRejected(t *testing.T) {
	f := newFixture(t, types.RoomSettings{AIAllowed: true, AICanWrite: true}, nil)
	res := f.exec.Execute(context.Background(), f.scope(types.RoleViewer, "req"), []ToolCall{
		{Name: ToolCreateTask, Arguments: `{"title":"sneaky"}`},
		{Name: "drop_tables", Arguments: `{}`},
	})
	if len(res) != 2 {
		t.Fatalf("results=%d", len(res))
	}
	if res[0].Success || res[0].ErrorCode != CodePermissionDenied {
		t.Fatalf("create_task: %+v", res[0])
	}
	if res[1].Success || res[1].ErrorCode != CodeUnknownTool {
		t.Fatalf("unknown tool: %+v", res[1])
	}
	if n := f.countTasks(t); n != 0 {
		t.Fatalf("tasks=%d want 0", n)
	}
}

func TestExecuteWritesDisabled(t *testing.T) {
	f := newFixture(t, types.RoomSettings{AIAllowed: true}, nil)
	s := f.scope(types.RoleOwner, "req")
	// Forge an allowed set that ignores the room setting.
	s.Allowed = NewResolver(DefaultRegistry(), nil).Resolve(types.RoleOwner, types.RoomSettings{AICanWrite: true}, allOptions)
	res := f.exec.Execute(context.Background(), s, []ToolCall{{Name: ToolCreateNote, Arguments: `{"title":"x"}`}})
	if res[0].Success || res[0].ErrorCode != CodeWritesDisabled {
		t.Fatalf("want writes_disabled, got %+v", res[0])
	}
}

func TestExecuteArgumentHandling(t *testing.T) {
	f := newFixture(t, types.RoomSettings{AIAllowed: true, AICanWrite: true}, nil)
	ctx := context.Background()
	s := f.scope(types.RoleOwner, "req")

	cases := []struct {
		name    string
		call    ToolCall
		ok      bool
		code    string
		summary map[string]any
	}{
		{"missing title", ToolCall{Name: ToolCreateTask, Arguments: `{"description":"x"}`}, false, CodeInvalidArguments, nil},
		{"not json", ToolCall{Name: ToolCreateTask, Arguments: `{"title":`}, false, CodeInvalidArguments, nil},
		{"bad date", ToolCall{Name: ToolCreateTask, Arguments: `{"title":"x","due_date":"someday"}`}, false, CodeInvalidArguments, nil},
		{"unknown field", ToolCall{Name: ToolCreateNote, Arguments: `{"title":"x","color":"red"}`}, false, CodeInvalidArguments, nil},
		{"amount as string", ToolCall{Name: ToolCreateDeal, Arguments: `{"name":"Acme","amount":"12,500","stage":"proposal"}`}, true, "", map[string]any{"amount": int64(12500), "stage": "proposal"}},
		{"negative amount", ToolCall{Name: ToolCreateDeal, Arguments: `{"name":"Acme","amount":-4}`}, false, CodeInvalidArguments, nil},
		{"bad email", ToolCall{Name: ToolCreateContact, Arguments: `{"name":"Ana","email":"not-an-email"}`}, false, CodeInvalidArguments, nil},
		{"valid email", ToolCall{Name: ToolCreateContact, Arguments: `{"name":"Ana","email":"ana@example.com"}`}, true, "", nil},
		{"bad assignee", ToolCall{Name: ToolCreateTask, Arguments: `{"title":"x","assignee_id":"bob"}`}, false, CodeInvalidArguments, nil},
		{"foreign account", ToolCall{Name: ToolCreateDeal, Arguments: `{"name":"B","account_id":"` + uuid.NewString() + `"}`}, false, CodeInvalidArguments, nil},
		{"event default duration", ToolCall{Name: ToolCreateCalendarEvent, Arguments: `{"title":"Sync","starts_at":"2026-05-06T10:00:00Z"}`}, true, "", map[string]any{"ends_at": "2026-05-06T11:00:00Z"}},
		{"event ends before start", ToolCall{Name: ToolCreateCalendarEvent, Arguments: `{"title":"Sync","starts_at":"2026-05-06T10:00:00Z","ends_at":"2026-05-06T09:00:00Z"}`}, false, CodeInvalidArguments, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.exec.Execute(ctx, s, []ToolCall{tc.call})
			if len(res) != 1 {
				t.Fatalf("results=%d", len(res))
			}
			r := res[0]
			if r.Success != tc.ok {
				t.Fatalf("success=%v want %v (%+v)", r.Success, tc.ok, r)
			}
			if r.ErrorCode != tc.code {
				t.Fatalf("code=%q want %q (%s)", r.ErrorCode, tc.code, r.Error)
			}
			for k, v := range tc.summary {
				if r.Summary[k] != v {
					t.Fatalf("summary[%s]=%v (%T) want %v", k, r.Summary[k], r.Summary[k], v)
				}
			}
		})
	}
}

func TestExecuteWebSearchNotDeduplicated(t *testing.T) {
	calls := 0
	search := searcherFunc(func(ctx context.Context, q string, limit int) ([]websearch.Result, error) {
		calls++
		if q == "boom" {
			return nil, errors.New("upstream down")
		}
		return []websearch.Result{{Title: "<b>Go</b> 1.26", URL: "https://www.go.dev/blog", Snippet: "release"}}, nil
	})
	f := newFixture(t, types.RoomSettings{AIAllowed: true}, search)
	ctx := context.Background()
	call := ToolCall{Name: ToolWebSearch, Arguments: `{"query":"go release","limit":"3"}`}

	first := f.exec.Execute(ctx, f.scope(types.RoleViewer, "req-1"), []ToolCall{call})
	second := f.exec.Execute(ctx, f.scope(types.RoleViewer, "req-2"), []ToolCall{call})
	if !first[0].Success || !second[0].Success || second[0].Cached {
		t.Fatalf("web_search results: %+v / %+v", first[0], second[0])
	}
	if calls != 2 {
		t.Fatalf("search calls=%d want 2", calls)
	}
	src := SourcesFrom(first)
	if len(src) != 1 || src[0].Host != "go.dev" || src[0].Title != "Go 1.26" {
		t.Fatalf("sources=%+v", src)
	}

	failed := f.exec.Execute(ctx, f.scope(types.RoleViewer, "req-3"), []ToolCall{{Name: ToolWebSearch, Arguments: `{"query":"boom"}`}})
	if failed[0].Success || failed[0].ErrorCode != CodeSearchFailed {
		t.Fatalf("failed search: %+v", failed[0])
	}
}
