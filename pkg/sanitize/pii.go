package sanitize

import "regexp"

// RedactionMarker replaces every redacted match.
const RedactionMarker = "[REDACTED]"

// piiPatterns are heuristic matchers for common PII and secret shapes.
var piiPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"email", regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
	{"ipv4", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{"ssn_like", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"generic_secret", regexp.MustCompile(`(?i)(api|secret|token|key)[=: ]+[A-Za-z0-9-_]{8,}`)},
}

// Redactor replaces PII-looking spans with a fixed marker. A disabled
// redactor passes text through untouched.
type Redactor struct {
	Enabled bool
}

// NewRedactor returns an enabled redactor.
func NewRedactor() *Redactor {
	return &Redactor{Enabled: true}
}

// Redact scans text for PII/secret patterns and replaces each match with the
// redaction marker. It returns the redacted text and a count per kind.
func (r *Redactor) Redact(text string) (string, map[string]int) {
	if r == nil || !r.Enabled || text == "" {
		return text, map[string]int{}
	}

	stats := map[string]int{}
	redacted := text
	for _, p := range piiPatterns {
		matches := p.re.FindAllString(redacted, -1)
		if len(matches) == 0 {
			continue
		}
		stats[p.kind] = len(matches)
		redacted = p.re.ReplaceAllString(redacted, RedactionMarker)
	}
	return redacted, stats
}
