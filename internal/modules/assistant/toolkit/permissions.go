package toolkit

import (
	"sort"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/llm"
)

// Options is the client's tool_options. A flag only requests a tool; the
// role table and room settings decide whether it is granted.
type Options struct {
	AllowTaskCreation    bool `json:"allow_task_creation"`
	AllowNoteCreation    bool `json:"allow_note_creation"`
	AllowContactCreation bool `json:"allow_contact_creation"`
	AllowCalendarEvents  bool `json:"allow_calendar_events"`
	AllowAccountCreation bool `json:"allow_account_creation"`
	AllowDealCreation    bool `json:"allow_deal_creation"`
	AllowWebSearch       bool `json:"allow_web_search"`
}

func (o Options) Enabled(flag string) bool {
	switch flag {
	case "allow_task_creation":
		return o.AllowTaskCreation
	case "allow_note_creation":
		return o.AllowNoteCreation
	case "allow_contact_creation":
		return o.AllowContactCreation
	case "allow_calendar_events":
		return o.AllowCalendarEvents
	case "allow_account_creation":
		return o.AllowAccountCreation
	case "allow_deal_creation":
		return o.AllowDealCreation
	case "allow_web_search":
		return o.AllowWebSearch
	}
	return false
}

// RoleTable maps a role to the tools it may ever use. "*" grants every tool.
type RoleTable map[types.Role][]string

func DefaultRoleTable() RoleTable {
	return RoleTable{
		types.RoleOwner: {"*"},
		types.RoleAdmin: {"*"},
		types.RoleMember: {
			ToolCreateTask,
			ToolCreateNote,
			ToolCreateContact,
			ToolCreateCalendarEvent,
			ToolWebSearch,
		},
		types.RoleViewer: {ToolWebSearch},
	}
}

func (t RoleTable) permits(role types.Role, tool string) bool {
	for _, name := range t[role] {
		if name == "*" || name == tool {
			return true
		}
	}
	return false
}

// Allowed is the resolved tool set for one request.
type Allowed struct {
	defs map[string]*Definition
}

func (a Allowed) Has(name string) bool {
	_, ok := a.defs[name]
	return ok
}

func (a Allowed) Len() int { return len(a.defs) }

func (a Allowed) Names() []string {
	out := make([]string, 0, len(a.defs))
	for n := range a.defs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Tools lists the granted tools in the shape sent to the model.
func (a Allowed) Tools() []llm.Tool {
	names := a.Names()
	out := make([]llm.Tool, 0, len(names))
	for _, n := range names {
		out = append(out, a.defs[n].LLMTool())
	}
	return out
}

type Resolver struct {
	reg   *Registry
	roles RoleTable
}

func NewResolver(reg *Registry, roles RoleTable) *Resolver {
	if roles == nil {
		roles = DefaultRoleTable()
	}
	return &Resolver{reg: reg, roles: roles}
}

// Resolve grants a tool when it was opted into, the room permits it (writes
// need ai_can_write) and the caller's role allows it.
func (r *Resolver) Resolve(role types.Role, settings types.RoomSettings, opts Options) Allowed {
	out := Allowed{defs: map[string]*Definition{}}
	for _, d := range r.reg.Definitions() {
		if !opts.Enabled(d.OptIn) {
			continue
		}
		if d.Mutating && !settings.AICanWrite {
			continue
		}
		if !r.roles.permits(role, d.Name) {
			continue
		}
		out.defs[d.Name] = d
	}
	return out
}
