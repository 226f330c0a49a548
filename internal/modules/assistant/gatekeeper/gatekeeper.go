package gatekeeper

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/huddle-backend/internal/data/repos"
	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/observability"
	"github.com/yungbote/huddle-backend/internal/platform/apierr"
	"github.com/yungbote/huddle-backend/internal/platform/dbctx"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

type Config struct {
	MaxPromptChars       int
	PaidPlans            []string
	EstimatedCost        int64
	WorkspaceHourlyLimit int
	UserHourlyLimit      int
	Window               time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPromptChars <= 0 {
		c.MaxPromptChars = 4000
	}
	if len(c.PaidPlans) == 0 {
		c.PaidPlans = []string{"pro", "business", "enterprise"}
	}
	if c.EstimatedCost <= 0 {
		c.EstimatedCost = 5
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	return c
}

type Deps struct {
	Log        *logger.Logger
	Rooms      repos.RoomRepo
	Members    repos.MemberRepo
	Workspaces repos.WorkspaceRepo
	Messages   repos.ChatMessageRepo
	Metrics    *observability.Metrics
	Now        func() time.Time
}

type Input struct {
	UserID uuid.UUID
	RoomID uuid.UUID
	Prompt string
}

// Admission is everything later phases need about the caller.
type Admission struct {
	UserID        uuid.UUID
	Prompt        string
	Workspace     *types.Workspace
	Room          *types.Room
	Role          types.Role
	EstimatedCost int64
}

type Gatekeeper struct {
	deps Deps
	cfg  Config
	paid map[string]bool
}

func New(deps Deps, cfg Config) *Gatekeeper {
	cfg = cfg.withDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	paid := make(map[string]bool, len(cfg.PaidPlans))
	for _, p := range cfg.PaidPlans {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			paid[p] = true
		}
	}
	return &Gatekeeper{deps: deps, cfg: cfg, paid: paid}
}

// ValidatePrompt trims the prompt and enforces length and the sensitive-data
// scan. It touches nothing outside the process.
func ValidatePrompt(prompt string, maxChars int) (string, error) {
	p := strings.TrimSpace(prompt)
	if p == "" {
		return "", apierr.Validation("prompt_required", errors.New("prompt is required"))
	}
	if n := utf8.RuneCountInString(p); maxChars > 0 && n > maxChars {
		return "", apierr.Validation("prompt_too_long", fmt.Errorf("prompt exceeds %d characters", maxChars)).
			WithDetail("max_chars", maxChars).
			WithDetail("chars", n)
	}
	if kind, found := ScanSensitive(p); found {
		return "", apierr.Validation("sensitive_content", errors.New("prompt appears to contain sensitive data; remove it and try again")).
			WithDetail("kind", kind)
	}
	return p, nil
}

func (g *Gatekeeper) Admit(dbc dbctx.Context, in Input) (*Admission, error) {
	if in.UserID == uuid.Nil {
		return nil, apierr.Auth(errors.New("missing user identity"))
	}
	prompt, err := ValidatePrompt(in.Prompt, g.cfg.MaxPromptChars)
	if err != nil {
		return nil, err
	}

	room, err := g.deps.Rooms.GetActive(dbc, in.RoomID)
	if err != nil {
		return nil, apierr.Internal("room_lookup_failed", err)
	}
	if room == nil {
		return nil, apierr.NotFound("room_not_found", errors.New("room not found"))
	}
	if !room.Settings.AIAllowed {
		return nil, apierr.Permission("ai_disabled", errors.New("the assistant is disabled in this room"))
	}

	member, err := g.deps.Members.IsMember(dbc, room.WorkspaceID, in.UserID)
	if err != nil {
		return nil, apierr.Internal("membership_lookup_failed", err)
	}
	if !member {
		return nil, apierr.Permission("not_a_member", errors.New("you are not a member of this workspace"))
	}
	role, err := g.deps.Members.GetRole(dbc, room.WorkspaceID, in.UserID)
	if err != nil {
		return nil, apierr.Internal("role_lookup_failed", err)
	}

	ws, err := g.deps.Workspaces.GetByID(dbc, room.WorkspaceID)
	if err != nil {
		return nil, apierr.Internal("workspace_lookup_failed", err)
	}
	if ws == nil {
		return nil, apierr.NotFound("workspace_not_found", errors.New("workspace not found"))
	}
	if !g.paid[strings.ToLower(strings.TrimSpace(ws.Plan))] {
		return nil, apierr.Permission("plan_ineligible", errors.New("the assistant requires a paid plan")).
			WithDetail("upgrade_required", true).
			WithDetail("plan", ws.Plan)
	}
	if ws.Balance < g.cfg.EstimatedCost {
		return nil, apierr.Billing("insufficient_balance", errors.New("workspace balance is too low for an assistant request")).
			WithDetail("balance", ws.Balance).
			WithDetail("required", g.cfg.EstimatedCost)
	}

	if err := g.checkRate(dbc, "workspace", repos.AIScope{WorkspaceID: ws.ID}, g.cfg.WorkspaceHourlyLimit); err != nil {
		return nil, err
	}
	userID := in.UserID
	if err := g.checkRate(dbc, "user", repos.AIScope{WorkspaceID: ws.ID, RequestedBy: &userID}, g.cfg.UserHourlyLimit); err != nil {
		return nil, err
	}

	return &Admission{
		UserID:        in.UserID,
		Prompt:        prompt,
		Workspace:     ws,
		Room:          room,
		Role:          role,
		EstimatedCost: g.cfg.EstimatedCost,
	}, nil
}

// checkRate counts persisted AI replies inside the sliding window. A limit
// of zero disables the scope.
func (g *Gatekeeper) checkRate(dbc dbctx.Context, scopeName string, scope repos.AIScope, limit int) error {
	if limit <= 0 {
		return nil
	}
	now := g.deps.Now().UTC()
	since := now.Add(-g.cfg.Window)
	n, err := g.deps.Messages.CountAISince(dbc, scope, since)
	if err != nil {
		return apierr.Internal("rate_limit_lookup_failed", err)
	}
	if n < int64(limit) {
		return nil
	}

	retryAfter := g.cfg.Window
	oldest, err := g.deps.Messages.OldestAISince(dbc, scope, since)
	if err != nil {
		g.deps.Log.Warn("oldest rate-limit row lookup failed", "scope", scopeName, "error", err)
	} else if oldest != nil {
		retryAfter = oldest.Add(g.cfg.Window).Sub(now)
	}
	secs := int64(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}

	g.deps.Metrics.IncRateLimited(scopeName)
	return apierr.RateLimited(fmt.Errorf("%s assistant limit of %d requests per hour reached", scopeName, limit), secs).
		WithDetail("scope", scopeName).
		WithDetail("limit", limit).
		WithDetail("window_seconds", int64(g.cfg.Window.Seconds())).
		WithDetail("window_remaining_seconds", secs)
}
