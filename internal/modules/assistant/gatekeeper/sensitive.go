package gatekeeper

import (
	"regexp"
	"strings"
)

type sensitivePattern struct {
	kind string
	re   *regexp.Regexp
	// check narrows a regex hit; nil accepts every hit.
	check func(match string) bool
}

var sensitivePatterns = []sensitivePattern{
	{
		kind: "credential",
		re:   regexp.MustCompile(`(?i)\b(?:password|passwd|pwd|passphrase|secret|client[_-]?secret|api[_-]?key|access[_-]?key|auth[_-]?token|token)\b\s*(?:is\s+|[:=]\s*)["']?[^\s"']{4,}`),
	},
	{
		kind: "private_key",
		re:   regexp.MustCompile(`-----BEGIN (?:[A-Z]+ )?PRIVATE KEY-----`),
	},
	{
		kind: "ssn",
		re:   regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		kind:  "card_number",
		re:    regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`),
		check: luhnValid,
	},
}

// ScanSensitive reports the first kind of sensitive data found in text.
func ScanSensitive(text string) (string, bool) {
	for _, p := range sensitivePatterns {
		for _, m := range p.re.FindAllString(text, -1) {
			if p.check == nil || p.check(m) {
				return p.kind, true
			}
		}
	}
	return "", false
}

func luhnValid(candidate string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, candidate)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
