package contextpack

import "regexp"

var piiPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`\b\d(?:[ \-]?\d){12,18}\b`), "[CARD]"},
	// Phones need a leading +, an area code in parentheses or separators;
	// bare digit runs such as amounts stay.
	{regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?\d{3}[ .\-]?\d{3}[ .\-]?\d{4}|\(\d{3}\)[ .\-]?\d{3}[ .\-]?\d{4}|\b\d{3}[ .\-]\d{3}[ .\-]\d{4})\b`), "[PHONE]"},
}

// RedactPII replaces emails, SSNs, card-like digit runs and phone numbers.
func RedactPII(s string) string {
	for _, p := range piiPatterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}
