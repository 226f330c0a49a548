package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/contextpack"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/platform/websearch"
)

const (
	CodePermissionDenied = "permission_denied"
	CodeWritesDisabled   = "writes_disabled"
	CodeUnknownTool      = "unknown_tool"
	CodeInvalidArguments = "invalid_arguments"
	CodeExecutionFailed  = "execution_failed"
	CodeSearchFailed     = "search_failed"
)

// ToolCall is one finalized call from the model. Arguments is the raw JSON
// text exactly as reassembled from the stream.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Scope identifies who is executing and where.
type Scope struct {
	WorkspaceID uuid.UUID
	RoomID      uuid.UUID
	UserID      uuid.UUID
	RequestID   string
	Settings    types.RoomSettings
	Allowed     Allowed
	Location    *time.Location
}

type ExecutorDeps struct {
	Log        *logger.Logger
	DB         *gorm.DB
	Tasks      repos.TaskRepo
	Notes      repos.NoteRepo
	Calendar   repos.CalendarEventRepo
	Contacts   repos.ContactRepo
	Accounts   repos.AccountRepo
	Deals      repos.DealRepo
	Executions repos.ToolExecutionRepo
	Search     websearch.Searcher
	Metrics    *observability.Metrics
	Now        func() time.Time
}

type Executor struct {
	deps ExecutorDeps
	reg  *Registry
}

func NewExecutor(deps ExecutorDeps, reg *Registry) *Executor {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if reg == nil {
		reg = DefaultRegistry()
	}
	deps.Log = deps.Log.With("service", "ToolExecutor")
	return &Executor{deps: deps, reg: reg}
}

// Execute runs calls one after another. A failing call produces a result
// with Success=false and never stops the ones after it.
func (e *Executor) Execute(ctx context.Context, scope Scope, calls []ToolCall) []types.ToolResult {
	out := make([]types.ToolResult, 0, len(calls))
	for _, call := range calls {
		if ctx.Err() != nil {
			break
		}
		res := e.executeOne(ctx, scope, call)
		res.ToolCallID = call.ID
		res.Tool = call.Name
		out = append(out, res)
	}
	return out
}

type toolError struct {
	code string
	err  error
}

func (t *toolError) Error() string { return t.err.Error() }

func fail(code string, format string, a ...any) *toolError {
	return &toolError{code: code, err: fmt.Errorf(format, a...)}
}

func failed(code string, err error) types.ToolResult {
	return types.ToolResult{Success: false, Error: err.Error(), ErrorCode: code}
}

func (e *Executor) executeOne(ctx context.Context, scope Scope, call ToolCall) types.ToolResult {
	log := e.deps.Log.With("request_id", ctxutil.RequestID(ctx), "tool", call.Name)

	def, known := e.reg.Get(call.Name)
	if !scope.Allowed.Has(call.Name) {
		log.Warn("tool call rejected: not in allowed set")
		e.deps.Metrics.IncToolExecution(call.Name, "denied")
		if !known {
			return failed(CodeUnknownTool, fmt.Errorf("unknown tool %q", call.Name))
		}
		return failed(CodePermissionDenied, fmt.Errorf("%s is not permitted here", call.Name))
	}
	if def.Mutating && !scope.Settings.AICanWrite {
		log.Warn("tool call rejected: room is read-only for the assistant")
		e.deps.Metrics.IncToolExecution(call.Name, "denied")
		return failed(CodeWritesDisabled, fmt.Errorf("this room does not allow the assistant to make changes"))
	}

	args, err := decodeArgs(call.Arguments)
	if err == nil {
		err = normalize(def, args, scope.Location, e.deps.Now())
	}
	if err != nil {
		e.deps.Metrics.IncToolExecution(call.Name, "invalid")
		return failed(CodeInvalidArguments, err)
	}

	salt := ""
	if !def.Mutating {
		salt = scope.RequestID
	}
	hash, err := IdempotencyHash(scope.WorkspaceID, scope.RoomID, def.Name, args, salt)
	if err != nil {
		return failed(CodeInvalidArguments, err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	if def.Mutating {
		if prior, err := e.deps.Executions.GetByHash(dbc, hash); err != nil {
			log.Warn("idempotency lookup failed", "error", err)
		} else if prior != nil {
			e.deps.Metrics.IncToolExecution(call.Name, "cached")
			return cachedResult(prior)
		}
	}

	if err := def.Validate(args); err != nil {
		e.deps.Metrics.IncToolExecution(call.Name, "invalid")
		return failed(CodeInvalidArguments, err)
	}

	if !def.Mutating {
		return e.runReadOnly(ctx, scope, def, args, hash)
	}

	var summary map[string]any
	err = e.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: tx}
		s, err := e.create(inner, scope, def.Name, args)
		if err != nil {
			return err
		}
		summary = s
		return e.deps.Executions.Create(inner, &types.ToolExecution{
			WorkspaceID:     scope.WorkspaceID,
			RoomID:          scope.RoomID,
			RequestID:       scope.RequestID,
			ToolName:        def.Name,
			IdempotencyHash: hash,
			Arguments:       mustJSON(args),
			Result:          mustJSON(s),
			Success:         true,
		})
	})
	switch {
	case err == nil:
		e.deps.Metrics.IncToolExecution(call.Name, "ok")
		log.Info("tool executed", "hash", hash)
		return types.ToolResult{Success: true, Summary: summary}
	case repos.IsUniqueViolation(err):
		// Lost the race to a concurrent identical call; our insert is rolled
		// back, so report the winner's result.
		winner, getErr := e.deps.Executions.GetByHash(dbc, hash)
		if getErr == nil && winner != nil {
			e.deps.Metrics.IncToolExecution(call.Name, "cached")
			return cachedResult(winner)
		}
		log.Error("duplicate execution but winner not readable", "error", getErr)
		e.deps.Metrics.IncToolExecution(call.Name, "failed")
		return failed(CodeExecutionFailed, errors.New("could not confirm the earlier identical action"))
	default:
		var te *toolError
		if errors.As(err, &te) {
			e.deps.Metrics.IncToolExecution(call.Name, "invalid")
			return failed(te.code, te.err)
		}
		log.Error("tool execution failed", "error", err)
		e.deps.Metrics.IncToolExecution(call.Name, "failed")
		return failed(CodeExecutionFailed, errors.New("the action could not be saved"))
	}
}

func (e *Executor) runReadOnly(ctx context.Context, scope Scope, def *Definition, args map[string]any, hash string) types.ToolResult {
	log := e.deps.Log.With("request_id", ctxutil.RequestID(ctx), "tool", def.Name)
	if e.deps.Search == nil {
		e.deps.Metrics.IncToolExecution(def.Name, "failed")
		return failed(CodeSearchFailed, errors.New("web search is not configured"))
	}
	limit := 5
	if f, ok := args["limit"].(float64); ok {
		limit = int(f)
	}
	query := str(args, "query")
	results, err := e.deps.Search.Search(ctx, query, limit)
	if err != nil {
		log.Warn("web search tool failed", "error", err)
		e.deps.Metrics.IncToolExecution(def.Name, "failed")
		return failed(CodeSearchFailed, errors.New("web search is unavailable right now"))
	}
	sources := make([]types.WebSource, 0, len(results))
	for _, r := range results {
		title := contextpack.FilterInjection(contextpack.StripHTML(r.Title))
		if r.URL == "" {
			continue
		}
		sources = append(sources, types.WebSource{Title: title, URL: r.URL, Host: contextpack.HostOf(r.URL)})
	}
	summary := map[string]any{"query": query, "count": len(sources), "sources": sources}

	rec := &types.ToolExecution{
		WorkspaceID:     scope.WorkspaceID,
		RoomID:          scope.RoomID,
		RequestID:       scope.RequestID,
		ToolName:        def.Name,
		IdempotencyHash: hash,
		Arguments:       mustJSON(args),
		Result:          mustJSON(summary),
		Success:         true,
	}
	if err := e.deps.Executions.Create(dbctx.Context{Ctx: ctx}, rec); err != nil {
		log.Warn("recording web search failed", "error", err)
	}
	e.deps.Metrics.IncToolExecution(def.Name, "ok")
	return types.ToolResult{Success: true, Summary: summary}
}

func (e *Executor) create(dbc dbctx.Context, scope Scope, tool string, args map[string]any) (map[string]any, error) {
	roomID := scope.RoomID
	switch tool {
	case ToolCreateTask:
		assignee, err := optUUID(args, "assignee_id")
		if err != nil {
			return nil, fail(CodeInvalidArguments, "%v", err)
		}
		priority := str(args, "priority")
		if priority == "" {
			priority = "medium"
		}
		t, err := e.deps.Tasks.Create(dbc, &types.Task{
			WorkspaceID: scope.WorkspaceID,
			RoomID:      &roomID,
			Title:       str(args, "title"),
			Description: str(args, "description"),
			DueDate:     optDate(args, "due_date", "2006-01-02"),
			Priority:    priority,
			Status:      types.TaskStatusTodo,
			AssigneeID:  assignee,
			CreatedBy:   scope.UserID,
		})
		if err != nil {
			return nil, err
		}
		s := map[string]any{"id": t.ID.String(), "title": t.Title, "priority": t.Priority}
		if t.DueDate != nil {
			s["due_date"] = t.DueDate.Format("2006-01-02")
		}
		return s, nil

	case ToolCreateNote:
		n, err := e.deps.Notes.Create(dbc, &types.Note{
			WorkspaceID: scope.WorkspaceID,
			RoomID:      &roomID,
			Title:       str(args, "title"),
			Body:        str(args, "body"),
			CreatedBy:   scope.UserID,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": n.ID.String(), "title": n.Title}, nil

	case ToolCreateContact:
		c, err := e.deps.Contacts.Create(dbc, &types.Contact{
			WorkspaceID: scope.WorkspaceID,
			Name:        str(args, "name"),
			Email:       str(args, "email"),
			Phone:       str(args, "phone"),
			Company:     str(args, "company"),
			CreatedBy:   scope.UserID,
		})
		if err != nil {
			return nil, err
		}
		s := map[string]any{"id": c.ID.String(), "name": c.Name}
		if c.Company != "" {
			s["company"] = c.Company
		}
		return s, nil

	case ToolCreateCalendarEvent:
		starts := optDate(args, "starts_at", time.RFC3339)
		if starts == nil {
			return nil, fail(CodeInvalidArguments, "starts_at is required")
		}
		ends := optDate(args, "ends_at", time.RFC3339)
		if ends == nil {
			minutes := 60.0
			if f, ok := args["duration_minutes"].(float64); ok {
				minutes = f
			}
			t := starts.Add(time.Duration(minutes) * time.Minute)
			ends = &t
		}
		if !ends.After(*starts) {
			return nil, fail(CodeInvalidArguments, "ends_at must be after starts_at")
		}
		ev, err := e.deps.Calendar.Create(dbc, &types.CalendarEvent{
			WorkspaceID: scope.WorkspaceID,
			Title:       str(args, "title"),
			StartsAt:    *starts,
			EndsAt:      *ends,
			Location:    str(args, "location"),
			CreatedBy:   scope.UserID,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"id":        ev.ID.String(),
			"title":     ev.Title,
			"starts_at": ev.StartsAt.UTC().Format(time.RFC3339),
			"ends_at":   ev.EndsAt.UTC().Format(time.RFC3339),
		}, nil

	case ToolCreateAccount:
		a, err := e.deps.Accounts.Create(dbc, &types.Account{
			WorkspaceID: scope.WorkspaceID,
			Name:        str(args, "name"),
			Industry:    str(args, "industry"),
			Website:     str(args, "website"),
			CreatedBy:   scope.UserID,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": a.ID.String(), "name": a.Name}, nil

	case ToolCreateDeal:
		accountID, err := optUUID(args, "account_id")
		if err != nil {
			return nil, fail(CodeInvalidArguments, "%v", err)
		}
		if accountID != nil {
			found, err := e.deps.Accounts.GetByIDs(dbc, scope.WorkspaceID, []uuid.UUID{*accountID})
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				return nil, fail(CodeInvalidArguments, "account_id does not exist in this workspace")
			}
		}
		stage := str(args, "stage")
		if stage == "" {
			stage = "lead"
		}
		var amount int64
		if f, ok := args["amount"].(float64); ok {
			amount = int64(math.Round(f))
		}
		d, err := e.deps.Deals.Create(dbc, &types.Deal{
			WorkspaceID: scope.WorkspaceID,
			AccountID:   accountID,
			Name:        str(args, "name"),
			Amount:      amount,
			Stage:       stage,
			CloseDate:   optDate(args, "close_date", "2006-01-02"),
			CreatedBy:   scope.UserID,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"id": d.ID.String(), "name": d.Name, "amount": d.Amount, "stage": d.Stage}, nil
	}
	return nil, fail(CodeUnknownTool, "no handler for %s", tool)
}

func cachedResult(rec *types.ToolExecution) types.ToolResult {
	res := types.ToolResult{Success: rec.Success, Cached: true, Error: rec.Error}
	if len(rec.Result) > 0 {
		var summary map[string]any
		if err := json.Unmarshal(rec.Result, &summary); err == nil && len(summary) > 0 {
			res.Summary = summary
		}
	}
	return res
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil || len(b) == 0 {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}

// SourcesFrom collects web sources reported by web_search results.
func SourcesFrom(results []types.ToolResult) []types.WebSource {
	var out []types.WebSource
	for _, r := range results {
		if r.Tool != ToolWebSearch || !r.Success {
			continue
		}
		switch v := r.Summary["sources"].(type) {
		case []types.WebSource:
			out = append(out, v...)
		case []any:
			for _, item := range v {
				m, ok := item.(map[string]any)
				if !ok {
					continue
				}
				src := types.WebSource{}
				src.Title, _ = m["title"].(string)
				src.URL, _ = m["url"].(string)
				src.Host, _ = m["host"].(string)
				if src.URL != "" {
					out = append(out, src)
				}
			}
		}
	}
	return out
}
