// Package toolkit holds the assistant's tool definitions, decides which of
// them a caller may use, and executes the calls a model makes.
package toolkit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yungbote/huddle-backend/internal/platform/llm"
)

const (
	ToolCreateTask          = "create_task"
	ToolCreateNote          = "create_note"
	ToolCreateContact       = "create_contact"
	ToolCreateCalendarEvent = "create_calendar_event"
	ToolCreateAccount       = "create_account"
	ToolCreateDeal          = "create_deal"
	ToolWebSearch           = "web_search"
)

type DateKind int

const (
	DateOnly DateKind = iota + 1
	DateTime
)

type NumberRange struct {
	Min     float64
	Max     float64
	Integer bool
}

type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Mutating    bool
	// OptIn is the tool_options flag that must be set for this tool.
	OptIn string

	Numbers map[string]NumberRange
	Dates   map[string]DateKind

	schema *jsonschema.Schema
}

func (d *Definition) LLMTool() llm.Tool {
	return llm.Tool{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
}

// Validate checks decoded arguments against the tool's JSON schema.
func (d *Definition) Validate(args map[string]any) error {
	if d.schema == nil {
		return nil
	}
	// Round trip so the validator only ever sees plain JSON values.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return d.schema.Validate(decoded)
}

type Registry struct {
	defs map[string]*Definition
}

func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{defs: map[string]*Definition{}}
	for _, d := range defs {
		if d == nil || d.Name == "" {
			return nil, fmt.Errorf("tool definition without name")
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("tool %s already registered", d.Name)
		}
		if len(d.Parameters) > 0 {
			compiled, err := compileSchema(d.Name+".schema.json", d.Parameters)
			if err != nil {
				return nil, fmt.Errorf("compile %s schema: %w", d.Name, err)
			}
			d.schema = compiled
		}
		r.defs[d.Name] = d
	}
	return r, nil
}

// compileSchema enables format assertions, which draft 2020-12 treats as
// annotations by default.
func compileSchema(url string, raw json.RawMessage) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// DefaultRegistry builds the built-in tool set. The schemas are static, so a
// compile failure is a programming error.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(builtinDefinitions()...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Definitions returns every tool sorted by name.
func (r *Registry) Definitions() []*Definition {
	out := make([]*Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func builtinDefinitions() []*Definition {
	return []*Definition{
		{
			Name:        ToolCreateTask,
			Description: "Create a task in the current workspace.",
			Mutating:    true,
			OptIn:       "allow_task_creation",
			Dates:       map[string]DateKind{"due_date": DateOnly},
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 200},
    "description": {"type": "string", "maxLength": 4000},
    "due_date": {"type": "string", "description": "YYYY-MM-DD, RFC3339, today or tomorrow"},
    "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
    "assignee_id": {"type": "string", "format": "uuid"}
  },
  "required": ["title"],
  "additionalProperties": false
}`),
		},
		{
			Name:        ToolCreateNote,
			Description: "Save a note in the current workspace.",
			Mutating:    true,
			OptIn:       "allow_note_creation",
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 200},
    "body": {"type": "string", "maxLength": 20000}
  },
  "required": ["title"],
  "additionalProperties": false
}`),
		},
		{
			Name:        ToolCreateContact,
			Description: "Add a contact to the workspace CRM.",
			Mutating:    true,
			OptIn:       "allow_contact_creation",
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 200},
    "email": {"type": "string", "format": "email"},
    "phone": {"type": "string", "maxLength": 40},
    "company": {"type": "string", "maxLength": 200}
  },
  "required": ["name"],
  "additionalProperties": false
}`),
		},
		{
			Name:        ToolCreateCalendarEvent,
			Description: "Schedule a calendar event.",
			Mutating:    true,
			OptIn:       "allow_calendar_events",
			Dates:       map[string]DateKind{"starts_at": DateTime, "ends_at": DateTime},
			Numbers:     map[string]NumberRange{"duration_minutes": {Min: 1, Max: 1440, Integer: true}},
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1, "maxLength": 200},
    "starts_at": {"type": "string"},
    "ends_at": {"type": "string"},
    "duration_minutes": {"type": "integer", "minimum": 1, "maximum": 1440},
    "location": {"type": "string", "maxLength": 200}
  },
  "required": ["title", "starts_at"],
  "additionalProperties": false
}`),
		},
		{
			Name:        ToolCreateAccount,
			Description: "Add a company account to the workspace CRM.",
			Mutating:    true,
			OptIn:       "allow_account_creation",
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 200},
    "industry": {"type": "string", "maxLength": 100},
    "website": {"type": "string", "maxLength": 300}
  },
  "required": ["name"],
  "additionalProperties": false
}`),
		},
		{
			Name:        ToolCreateDeal,
			Description: "Open a deal in the sales pipeline.",
			Mutating:    true,
			OptIn:       "allow_deal_creation",
			Dates:       map[string]DateKind{"close_date": DateOnly},
			Numbers:     map[string]NumberRange{"amount": {Min: 0, Max: 1e12}},
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 200},
    "amount": {"type": "number", "minimum": 0, "maximum": 1000000000000},
    "stage": {"type": "string", "enum": ["lead", "qualified", "proposal", "negotiation", "won", "lost"]},
    "account_id": {"type": "string", "format": "uuid"},
    "close_date": {"type": "string"}
  },
  "required": ["name"],
  "additionalProperties": false
}`),
		},
		{
			Name:        ToolWebSearch,
			Description: "Search the web for current information.",
			Mutating:    false,
			OptIn:       "allow_web_search",
			Numbers:     map[string]NumberRange{"limit": {Min: 1, Max: 10, Integer: true}},
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "minLength": 1, "maxLength": 300},
    "limit": {"type": "integer", "minimum": 1, "maximum": 10}
  },
  "required": ["query"],
  "additionalProperties": false
}`),
		},
	}
}
