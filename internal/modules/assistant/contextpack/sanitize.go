package contextpack

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const filteredMarker = "[filtered]"

var (
	rolePrefixRe = regexp.MustCompile(`(?im)^[ \t]*(?:system|assistant|user|developer)[ \t]*:[ \t]*`)

	controlTokenRe = regexp.MustCompile(`(?i)\[/?INST\]|<<\/?SYS>>|<\|(?:im_start|im_end|system|assistant|user|endoftext|eot_id|start_header_id|end_header_id)\|>`)

	injectionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bignore\s+(?:all\s+|any\s+)?(?:of\s+)?(?:the\s+)?(?:previous|prior|above|earlier)\s+(?:instructions?|prompts?|rules|messages?)`),
		regexp.MustCompile(`(?i)\bdisregard\s+(?:all\s+|any\s+)?(?:of\s+)?(?:the\s+)?(?:previous|prior|above|earlier|system)\s+(?:instructions?|prompts?|rules|messages?)`),
		regexp.MustCompile(`(?i)\bforget\s+(?:all\s+|everything\s+)?(?:your|the)\s+(?:previous\s+|prior\s+)?(?:instructions?|rules)`),
		regexp.MustCompile(`(?i)\byou\s+are\s+now\b`),
		regexp.MustCompile(`(?i)\bnew\s+system\s+prompt\b`),
	}
)

// FilterInjection removes control tokens and neutralizes instruction
// override phrases. Role prefixes are left alone; see SanitizeHumanTurn.
func FilterInjection(s string) string {
	s = controlTokenRe.ReplaceAllString(s, "")
	for _, re := range injectionRes {
		s = re.ReplaceAllString(s, filteredMarker)
	}
	return s
}

// SanitizeHumanTurn is applied to every non-AI history message.
func SanitizeHumanTurn(s string, maxChars int) string {
	s = rolePrefixRe.ReplaceAllString(s, "")
	s = FilterInjection(s)
	return Truncate(strings.TrimSpace(s), maxChars)
}

// Truncate cuts s to at most maxChars runes, marking the cut with an ellipsis.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	if maxChars == 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:maxChars-1]) + "…"
}
