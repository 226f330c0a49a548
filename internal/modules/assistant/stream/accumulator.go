package stream

import (
	"sort"
	"strings"

	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
	"github.com/yungbote/huddle-backend/internal/platform/llm"
)

// ToolCallAccumulator collects the fragments of one streamed tool call.
// Name and Arguments only ever grow; a fragment is never replaced.
type ToolCallAccumulator struct {
	Index     int
	ID        string
	Name      strings.Builder
	Arguments strings.Builder
}

func (a *ToolCallAccumulator) add(d llm.ToolCallDelta) {
	if a.ID == "" && d.ID != "" {
		a.ID = d.ID
	}
	a.Name.WriteString(d.Name)
	a.Arguments.WriteString(d.Arguments)
}

func (a *ToolCallAccumulator) call() toolkit.ToolCall {
	return toolkit.ToolCall{
		ID:        a.ID,
		Name:      strings.TrimSpace(a.Name.String()),
		Arguments: a.Arguments.String(),
	}
}

// Accumulators keys accumulators by stream index.
type Accumulators struct {
	byIndex map[int]*ToolCallAccumulator
}

func NewAccumulators() *Accumulators {
	return &Accumulators{byIndex: map[int]*ToolCallAccumulator{}}
}

func (s *Accumulators) Add(d llm.ToolCallDelta) {
	acc, ok := s.byIndex[d.Index]
	if !ok {
		acc = &ToolCallAccumulator{Index: d.Index}
		s.byIndex[d.Index] = acc
	}
	acc.add(d)
}

// Calls returns the finished calls ordered by index. Calls that never got a
// name are dropped.
func (s *Accumulators) Calls() []toolkit.ToolCall {
	idx := make([]int, 0, len(s.byIndex))
	for i := range s.byIndex {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]toolkit.ToolCall, 0, len(idx))
	for _, i := range idx {
		c := s.byIndex[i].call()
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
