package finalize

import (
	"fmt"
	"math"
	"strings"
	"time"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
)

// ToolLine renders the fixed one-line summary for a tool result.
func ToolLine(r types.ToolResult) string {
	if !r.Success {
		msg := strings.TrimRight(strings.TrimSpace(r.Error), ".")
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Sprintf("⚠️ Could not run %s: %s.", r.Tool, msg)
	}
	s := r.Summary
	var line string
	switch r.Tool {
	case toolkit.ToolCreateTask:
		line = fmt.Sprintf("✅ Created task %q", text(s, "title"))
		if due := text(s, "due_date"); due != "" {
			line += fmt.Sprintf(" (due %s)", due)
		}
	case toolkit.ToolCreateNote:
		line = fmt.Sprintf("✅ Saved note %q", text(s, "title"))
	case toolkit.ToolCreateContact:
		line = fmt.Sprintf("✅ Added contact %q", text(s, "name"))
		if c := text(s, "company"); c != "" {
			line += fmt.Sprintf(" (%s)", c)
		}
	case toolkit.ToolCreateCalendarEvent:
		line = fmt.Sprintf("✅ Scheduled %q", text(s, "title"))
		if at := text(s, "starts_at"); at != "" {
			if t, err := time.Parse(time.RFC3339, at); err == nil {
				at = t.UTC().Format("2006-01-02 15:04 UTC")
			}
			line += " for " + at
		}
	case toolkit.ToolCreateAccount:
		line = fmt.Sprintf("✅ Added account %q", text(s, "name"))
	case toolkit.ToolCreateDeal:
		line = fmt.Sprintf("✅ Opened deal %q (%s, %s)", text(s, "name"), text(s, "stage"), number(s["amount"]))
	case toolkit.ToolWebSearch:
		line = fmt.Sprintf("🔎 Searched the web for %q (%s results)", text(s, "query"), number(s["count"]))
	default:
		line = fmt.Sprintf("✅ Ran %s", r.Tool)
	}
	if r.Cached {
		line += ", already done earlier"
	}
	return line + "."
}

// Compose joins the model's answer with one line per tool result.
func Compose(answer string, results []types.ToolResult) string {
	parts := make([]string, 0, len(results)+1)
	if a := strings.TrimSpace(answer); a != "" {
		parts = append(parts, a)
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, ToolLine(r))
	}
	if len(lines) > 0 {
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// SourcesOnly is the reply used when the model failed but web results were
// already gathered.
func SourcesOnly(sources []types.WebSource) string {
	var b strings.Builder
	b.WriteString("I couldn't reach the assistant model just now, but here is what I found on the web:\n")
	for _, s := range sources {
		title := s.Title
		if title == "" {
			title = s.Host
		}
		fmt.Fprintf(&b, "\n- [From %s] %s (%s)", s.Host, title, s.URL)
	}
	return b.String()
}

func text(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func number(v any) string {
	switch x := v.(type) {
	case int:
		return fmt.Sprint(x)
	case int64:
		return fmt.Sprint(x)
	case float64:
		return fmt.Sprint(int64(math.Round(x)))
	}
	return "0"
}

type Pricing struct {
	CostPer1K float64
	MinCost   int64
}

// EstimateUsage counts about four characters per token over prompt, context
// and response, and prices the total with a per-request floor.
func EstimateUsage(promptChars, contextChars, completionChars int, p Pricing) types.Usage {
	u := types.Usage{
		PromptTokens:     tokens(promptChars),
		ContextTokens:    tokens(contextChars),
		CompletionTokens: tokens(completionChars),
	}
	u.TotalTokens = u.PromptTokens + u.ContextTokens + u.CompletionTokens
	cost := int64(math.Ceil(float64(u.TotalTokens) / 1000 * p.CostPer1K))
	if cost < p.MinCost {
		cost = p.MinCost
	}
	u.Cost = cost
	return u
}

func tokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return int(math.Ceil(float64(chars) / 4))
}
