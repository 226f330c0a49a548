package contextpack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/ctxutil"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/llm"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
	"github.com/yungbote/huddle-backend/internal/platform/websearch"
)

// Options mirrors the client's context_options. Every flag is a request;
// nothing outside the caller's workspace is ever read.
type Options struct {
	History             bool        `json:"history"`
	Tasks               bool        `json:"tasks"`
	Contacts            bool        `json:"contacts"`
	Accounts            bool        `json:"accounts"`
	Deals               bool        `json:"deals"`
	Pipeline            bool        `json:"pipeline"`
	Forms               bool        `json:"forms"`
	Documents           bool        `json:"documents"`
	WebSearch           bool        `json:"web_search"`
	SelectedFormIDs     []uuid.UUID `json:"selected_form_ids"`
	SelectedDocumentIDs []uuid.UUID `json:"selected_document_ids"`
	SelectedFileIDs     []uuid.UUID `json:"selected_file_ids"`
}

type Config struct {
	MaxTotal      int
	HistoryLimit  int
	MessageChars  int
	EntityLimit   int
	SelectedLimit int
	DocumentChars int
	WebResults    int
	SearchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTotal <= 0 {
		c.MaxTotal = 24000
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 30
	}
	if c.MessageChars <= 0 {
		c.MessageChars = 1200
	}
	if c.EntityLimit <= 0 {
		c.EntityLimit = 25
	}
	if c.SelectedLimit <= 0 {
		c.SelectedLimit = 5
	}
	if c.DocumentChars <= 0 {
		c.DocumentChars = 4000
	}
	if c.WebResults <= 0 {
		c.WebResults = 5
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 8 * time.Second
	}
	return c
}

type Deps struct {
	Log       *logger.Logger
	Messages  repos.ChatMessageRepo
	Tasks     repos.TaskRepo
	Contacts  repos.ContactRepo
	Accounts  repos.AccountRepo
	Deals     repos.DealRepo
	Forms     repos.FormRepo
	Documents repos.DocumentRepo
	Search    websearch.Searcher
	Metrics   *observability.Metrics
}

type Input struct {
	WorkspaceID  uuid.UUID
	RoomID       uuid.UUID
	ThreadRootID *uuid.UUID
	// ExcludeMessageID is the prompt message itself, already persisted.
	ExcludeMessageID uuid.UUID
	Query            string
	Options          Options
}

type Assembler struct {
	deps Deps
	cfg  Config
}

func NewAssembler(deps Deps, cfg Config) *Assembler {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	deps.Log = deps.Log.With("service", "ContextAssembler")
	return &Assembler{deps: deps, cfg: cfg.withDefaults()}
}

// slices holds everything fetched concurrently before the budget pass.
type slices struct {
	history   []*types.ChatMessage
	tasks     []*types.Task
	contacts  []*types.Contact
	accounts  []*types.Account
	deals     []*types.Deal
	pipeline  []types.PipelineStage
	forms     []*types.Form
	subs      []*types.FormSubmission
	documents []*types.Document
	selForms  []*types.Form
	selDocs   []*types.Document
	web       []websearch.Result
}

// Build fetches every requested source concurrently, then adds them in
// priority order (history, entity slices, selected artifacts, web) until the
// budget is used. A failing source is logged and left out.
func (a *Assembler) Build(ctx context.Context, in Input) (*Bundle, error) {
	if in.WorkspaceID == uuid.Nil || in.RoomID == uuid.Nil {
		return nil, fmt.Errorf("contextpack: missing workspace or room")
	}
	s := a.fetch(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := newBundle(a.cfg.MaxTotal)
	a.addHistory(b, in, s.history)

	for _, t := range s.tasks {
		b.add(SectionTasks, RedactPII(FilterInjection(renderTask(t))))
	}
	for _, c := range s.contacts {
		b.add(SectionContacts, RedactPII(FilterInjection(renderContact(c))))
	}
	for _, acc := range s.accounts {
		b.add(SectionAccounts, RedactPII(FilterInjection(renderAccount(acc))))
	}
	for _, d := range s.deals {
		b.add(SectionDeals, RedactPII(FilterInjection(renderDeal(d))))
	}
	for _, p := range s.pipeline {
		b.add(SectionPipeline, fmt.Sprintf("%s: %d deals, total %d", p.Stage, p.Count, p.Amount))
	}
	formNames := map[uuid.UUID]string{}
	for _, f := range s.forms {
		formNames[f.ID] = f.Name
		b.add(SectionForms, RedactPII(FilterInjection(renderForm(f, false))))
	}
	for _, sub := range s.subs {
		b.add(SectionForms, RedactPII(FilterInjection(renderSubmission(sub, formNames[sub.FormID]))))
	}
	for _, d := range s.documents {
		b.add(SectionDocuments, RedactPII(FilterInjection(renderDocumentSummary(d))))
	}

	for _, f := range s.selForms {
		b.add(SectionSelected, RedactPII(FilterInjection(renderForm(f, true))))
	}
	for _, d := range s.selDocs {
		b.add(SectionSelected, RedactPII(FilterInjection(a.renderSelectedDocument(d))))
	}

	for _, r := range s.web {
		host := HostOf(r.URL)
		if b.add(SectionWeb, fmt.Sprintf("[From %s] %s: %s", host, r.Title, r.Snippet)) {
			b.Sources = append(b.Sources, types.WebSource{Title: r.Title, URL: r.URL, Host: host})
		}
	}
	b.WebResults = s.web

	for _, d := range b.Dropped {
		a.deps.Metrics.IncContextDropped(string(d))
		a.deps.Log.Info("context item over budget; skipped",
			"request_id", ctxutil.RequestID(ctx),
			"section", d,
			"size", b.Size(),
			"budget", b.budget,
		)
	}
	return b, nil
}

func (a *Assembler) fetch(ctx context.Context, in Input) *slices {
	s := &slices{}
	opts := in.Options
	limit := a.cfg.EntityLimit
	dbc := dbctx.Context{Ctx: ctx}

	var g errgroup.Group
	g.SetLimit(4)

	// Each fetch logs its own failure and returns nil so siblings keep going.
	run := func(section Section, enabled bool, fn func() error) {
		if !enabled {
			return
		}
		g.Go(func() error {
			if err := fn(); err != nil {
				a.deps.Log.Warn("context source failed; continuing without it",
					"request_id", ctxutil.RequestID(ctx),
					"section", section,
					"error", err,
				)
			}
			return nil
		})
	}

	run(SectionHistory, opts.History && a.deps.Messages != nil, func() (err error) {
		s.history, err = a.deps.Messages.ListRecent(dbc, in.RoomID, in.ThreadRootID, a.cfg.HistoryLimit+1)
		return err
	})
	run(SectionTasks, opts.Tasks && a.deps.Tasks != nil, func() (err error) {
		s.tasks, err = a.deps.Tasks.ListRecent(dbc, in.WorkspaceID, limit)
		return err
	})
	run(SectionContacts, opts.Contacts && a.deps.Contacts != nil, func() (err error) {
		s.contacts, err = a.deps.Contacts.ListRecent(dbc, in.WorkspaceID, limit)
		return err
	})
	run(SectionAccounts, opts.Accounts && a.deps.Accounts != nil, func() (err error) {
		s.accounts, err = a.deps.Accounts.ListRecent(dbc, in.WorkspaceID, limit)
		return err
	})
	run(SectionDeals, opts.Deals && a.deps.Deals != nil, func() (err error) {
		s.deals, err = a.deps.Deals.ListRecent(dbc, in.WorkspaceID, limit)
		return err
	})
	run(SectionPipeline, opts.Pipeline && a.deps.Deals != nil, func() (err error) {
		s.pipeline, err = a.deps.Deals.PipelineTotals(dbc, in.WorkspaceID)
		return err
	})
	run(SectionForms, opts.Forms && a.deps.Forms != nil, func() error {
		forms, err := a.deps.Forms.ListRecent(dbc, in.WorkspaceID, limit)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(forms))
		for _, f := range forms {
			ids = append(ids, f.ID)
		}
		subs, err := a.deps.Forms.RecentCompletedSubmissions(dbc, in.WorkspaceID, ids, limit)
		if err != nil {
			return err
		}
		s.forms, s.subs = forms, subs
		return nil
	})
	run(SectionDocuments, opts.Documents && a.deps.Documents != nil, func() (err error) {
		s.documents, err = a.deps.Documents.ListRecent(dbc, in.WorkspaceID, limit)
		return err
	})
	run(SectionSelected, len(opts.SelectedFormIDs) > 0 && a.deps.Forms != nil, func() (err error) {
		s.selForms, err = a.deps.Forms.GetByIDs(dbc, in.WorkspaceID, capIDs(opts.SelectedFormIDs, a.cfg.SelectedLimit))
		return err
	})
	// Files are stored as documents; both lists share one cap.
	selected := make([]uuid.UUID, 0, len(opts.SelectedDocumentIDs)+len(opts.SelectedFileIDs))
	selected = append(append(selected, opts.SelectedDocumentIDs...), opts.SelectedFileIDs...)
	selectedDocs := capIDs(selected, a.cfg.SelectedLimit)
	run(SectionSelected, len(selectedDocs) > 0 && a.deps.Documents != nil, func() (err error) {
		s.selDocs, err = a.deps.Documents.GetByIDs(dbc, in.WorkspaceID, selectedDocs)
		return err
	})
	run(SectionWeb, opts.WebSearch && a.deps.Search != nil && strings.TrimSpace(in.Query) != "", func() error {
		sctx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout)
		defer cancel()
		results, err := a.deps.Search.Search(sctx, in.Query, a.cfg.WebResults)
		if err != nil {
			return err
		}
		s.web = sanitizeResults(results, a.cfg.WebResults)
		return nil
	})

	_ = g.Wait()
	return s
}

// addHistory walks newest to oldest so the most recent turns win the budget,
// then restores chronological order.
func (a *Assembler) addHistory(b *Bundle, in Input, rows []*types.ChatMessage) {
	kept := make([]*types.ChatMessage, 0, len(rows))
	for _, m := range rows {
		if m.ID == in.ExcludeMessageID {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) > a.cfg.HistoryLimit {
		kept = kept[len(kept)-a.cfg.HistoryLimit:]
	}

	var msgs []llm.Message
	for i := len(kept) - 1; i >= 0; i-- {
		m := kept[i]
		msg := llm.Message{Role: llm.RoleUser, Content: SanitizeHumanTurn(m.Body, a.cfg.MessageChars)}
		if m.IsAI {
			msg = llm.Message{Role: llm.RoleAssistant, Content: m.Body}
		}
		if msg.Content == "" {
			continue
		}
		if !b.addHistory(msg) {
			break
		}
		msgs = append(msgs, msg)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	b.History = msgs
}

func sanitizeResults(in []websearch.Result, limit int) []websearch.Result {
	out := make([]websearch.Result, 0, len(in))
	for _, r := range in {
		if limit > 0 && len(out) >= limit {
			break
		}
		r.Title = FilterInjection(StripHTML(r.Title))
		r.Snippet = Truncate(FilterInjection(StripHTML(r.Snippet)), 500)
		if r.URL == "" || (r.Title == "" && r.Snippet == "") {
			continue
		}
		out = append(out, r)
	}
	return out
}

// HostOf returns the bare lower-cased host of a URL, without "www.".
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown source"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func capIDs(ids []uuid.UUID, n int) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		if n > 0 && len(out) >= n {
			break
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func renderTask(t *types.Task) string {
	s := fmt.Sprintf("Task %q status=%s priority=%s", t.Title, t.Status, t.Priority)
	if t.DueDate != nil {
		s += " due=" + t.DueDate.Format("2006-01-02")
	}
	return s
}

func renderContact(c *types.Contact) string {
	parts := []string{"Contact " + c.Name}
	if c.Company != "" {
		parts = append(parts, "("+c.Company+")")
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	if c.Phone != "" {
		parts = append(parts, c.Phone)
	}
	return strings.Join(parts, " ")
}

func renderAccount(a *types.Account) string {
	s := "Account " + a.Name
	if a.Industry != "" {
		s += " industry=" + a.Industry
	}
	if a.Website != "" {
		s += " website=" + a.Website
	}
	return s
}

func renderDeal(d *types.Deal) string {
	s := fmt.Sprintf("Deal %q stage=%s amount=%d", d.Name, d.Stage, d.Amount)
	if d.CloseDate != nil {
		s += " close=" + d.CloseDate.Format("2006-01-02")
	}
	return s
}

func renderForm(f *types.Form, withFields bool) string {
	s := fmt.Sprintf("Form %q", f.Name)
	if f.Description != "" {
		s += ": " + Truncate(f.Description, 200)
	}
	if withFields && len(f.Fields) > 0 {
		s += "\nfields: " + Truncate(compactJSON(f.Fields), 1500)
	}
	return s
}

func renderSubmission(sub *types.FormSubmission, formName string) string {
	at := ""
	if sub.SubmittedAt != nil {
		at = " at " + sub.SubmittedAt.UTC().Format(time.RFC3339)
	}
	if formName == "" {
		formName = sub.FormID.String()
	}
	return fmt.Sprintf("Submission to %q%s: %s", formName, at, Truncate(compactJSON(sub.Data), 300))
}

func renderDocumentSummary(d *types.Document) string {
	return fmt.Sprintf("Document %q (%s): %s", d.Title, d.Kind, Truncate(collapseSpace(d.Body), 200))
}

func (a *Assembler) renderSelectedDocument(d *types.Document) string {
	body := Truncate(d.Body, a.cfg.DocumentChars)
	truncated := body != d.Body
	return fmt.Sprintf("Document %q (%s, truncated: %t):\n%s", d.Title, d.Kind, truncated, body)
}

func compactJSON(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
