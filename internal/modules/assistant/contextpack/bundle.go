package contextpack

import (
	"strings"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/llm"
	"github.com/yungbote/huddle-backend/internal/platform/websearch"
)

type Section string

const (
	SectionHistory   Section = "history"
	SectionTasks     Section = "tasks"
	SectionContacts  Section = "contacts"
	SectionAccounts  Section = "accounts"
	SectionDeals     Section = "deals"
	SectionPipeline  Section = "pipeline"
	SectionForms     Section = "forms"
	SectionDocuments Section = "documents"
	SectionSelected  Section = "selected"
	SectionWeb       Section = "web"
)

var sectionTitles = map[Section]string{
	SectionTasks:     "Workspace tasks",
	SectionContacts:  "Workspace contacts",
	SectionAccounts:  "Workspace accounts",
	SectionDeals:     "Workspace deals",
	SectionPipeline:  "Deal pipeline by stage",
	SectionForms:     "Workspace forms",
	SectionDocuments: "Workspace documents",
	SectionSelected:  "Selected by the user",
	SectionWeb:       "Web results",
}

// Bundle is the per-request context. Size counts history message bodies plus
// the rendered background text, and never exceeds the budget it was built with.
type Bundle struct {
	History []llm.Message
	Sources []types.WebSource
	// WebResults holds every sanitized search hit, including any the budget
	// left out, so a provider failure can still answer from them.
	WebResults []websearch.Result
	Dropped    []Section

	budget      int
	historySize int
	rendered    strings.Builder
	sections    map[Section]bool
}

func newBundle(budget int) *Bundle {
	return &Bundle{budget: budget, sections: map[Section]bool{}}
}

func (b *Bundle) Size() int { return b.historySize + b.rendered.Len() }

// Render returns the background block placed in the system prompt.
func (b *Bundle) Render() string { return b.rendered.String() }

// FallbackSources lists every sanitized search hit as a citation, including
// hits the budget kept out of the rendered background.
func (b *Bundle) FallbackSources() []types.WebSource {
	out := make([]types.WebSource, 0, len(b.WebResults))
	for _, r := range b.WebResults {
		out = append(out, types.WebSource{Title: r.Title, URL: r.URL, Host: HostOf(r.URL)})
	}
	return out
}

func (b *Bundle) fits(n int) bool { return b.budget <= 0 || b.Size()+n <= b.budget }

func (b *Bundle) drop(s Section) {
	for _, d := range b.Dropped {
		if d == s {
			return
		}
	}
	b.Dropped = append(b.Dropped, s)
}

func (b *Bundle) addHistory(m llm.Message) bool {
	if !b.fits(len(m.Content)) {
		b.drop(SectionHistory)
		return false
	}
	b.History = append(b.History, m)
	b.historySize += len(m.Content)
	b.sections[SectionHistory] = true
	return true
}

// add appends one item under its section header. An item that does not fit
// is skipped whole; nothing already added is shortened.
func (b *Bundle) add(s Section, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	piece := "- " + strings.ReplaceAll(text, "\n", "\n  ") + "\n"
	if !b.sections[s] {
		header := "### " + sectionTitles[s] + "\n"
		if b.rendered.Len() > 0 {
			header = "\n" + header
		}
		piece = header + piece
	}
	if !b.fits(len(piece)) {
		b.drop(s)
		return false
	}
	b.rendered.WriteString(piece)
	b.sections[s] = true
	return true
}
