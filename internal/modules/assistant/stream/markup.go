package stream

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
)

var (
	functionTagRe = regexp.MustCompile(`(?s)<function=([A-Za-z0-9_\-]+)>\s*(\{.*?\})\s*</function>`)
	toolCallTagRe = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)
	pythonTagRe   = regexp.MustCompile(`(?s)<\|python_tag\|>\s*(\{.*\})`)
)

// ExtractInlineCall finds one tool call written as text instead of a
// structured call. It returns the content with the markup removed.
//
// Recognized forms:
//
//	<function=NAME>{...}</function>
//	<tool_call>{"name": ..., "arguments": {...}}</tool_call>
//	<|python_tag|>{"name": ..., "parameters": {...}}
func ExtractInlineCall(content string) (string, *toolkit.ToolCall, bool) {
	if m := functionTagRe.FindStringSubmatchIndex(content); m != nil {
		name := content[m[2]:m[3]]
		args := content[m[4]:m[5]]
		if json.Valid([]byte(args)) {
			return strip(content, m[0], m[1]), &toolkit.ToolCall{ID: "inline_0", Name: name, Arguments: args}, true
		}
	}
	if m := toolCallTagRe.FindStringSubmatchIndex(content); m != nil {
		if call, ok := parseNamedCall(content[m[2]:m[3]], "arguments"); ok {
			return strip(content, m[0], m[1]), call, true
		}
	}
	if m := pythonTagRe.FindStringSubmatchIndex(content); m != nil {
		if call, ok := parseNamedCall(content[m[2]:m[3]], "parameters"); ok {
			return strip(content, m[0], m[1]), call, true
		}
	}
	return content, nil, false
}

func parseNamedCall(raw, argsKey string) (*toolkit.ToolCall, bool) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, false
	}
	var name string
	if err := json.Unmarshal(body["name"], &name); err != nil || strings.TrimSpace(name) == "" {
		return nil, false
	}
	args := body[argsKey]
	if len(args) == 0 {
		args = body["arguments"]
	}
	// Some models send the arguments as a JSON string.
	var asString string
	if err := json.Unmarshal(args, &asString); err == nil {
		args = json.RawMessage(asString)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return &toolkit.ToolCall{ID: "inline_0", Name: strings.TrimSpace(name), Arguments: string(args)}, true
}

func strip(content string, start, end int) string {
	return strings.TrimSpace(content[:start] + content[end:])
}

var markupOpeners = []string{"<function=", "<tool_call>", "<|python_tag|>"}

// markupGuard holds back streamed text that may be the start of inline tool
// markup so it is never shown to the client.
type markupGuard struct {
	held     strings.Builder
	inMarkup bool
}

// feed returns the part of s that is safe to show now.
func (g *markupGuard) feed(s string) string {
	text := g.held.String() + s
	g.held.Reset()
	if g.inMarkup {
		g.held.WriteString(text)
		return ""
	}
	for i := strings.IndexByte(text, '<'); i >= 0; {
		rest := text[i:]
		for _, op := range markupOpeners {
			if strings.HasPrefix(rest, op) {
				g.inMarkup = true
				g.held.WriteString(rest)
				return text[:i]
			}
			if len(rest) < len(op) && strings.HasPrefix(op, rest) {
				g.held.WriteString(rest)
				return text[:i]
			}
		}
		next := strings.IndexByte(text[i+1:], '<')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return text
}

// flush releases held text that turned out not to be a call.
func (g *markupGuard) flush() string {
	s := g.held.String()
	g.held.Reset()
	g.inMarkup = false
	return s
}
