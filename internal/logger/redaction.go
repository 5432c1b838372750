package logger

import (
	"io"
	"regexp"
)

// Redactor masks credential-looking values in log output before they reach
// any sink. Patterns cover the secrets this process actually handles: model
// API keys, bearer headers, and generic key/value secrets in config dumps.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor returns a Redactor with the built-in secret patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// OpenAI-style API keys.
			regexp.MustCompile(`sk-[a-zA-Z0-9_-]{16,}`),
			// Authorization headers.
			regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),
			// AWS access key IDs.
			regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
			// key=value or key: value pairs that look secret.
			regexp.MustCompile(`(?i)(api_key|apikey|password|secret|token)["\s:=]+[^\s",}]{8,}`),
		},
	}
}

// AddPattern registers an extra redaction pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.patterns = append(r.patterns, re)
	return nil
}

// Redact replaces every secret match in s with a fixed marker.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// Wrap returns a writer that redacts each write before passing it on.
// Writes are assumed to be whole log lines, which zerolog guarantees.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{redactor: r, next: w}
}

type redactingWriter struct {
	redactor *Redactor
	next     io.Writer
}

func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := w.next.Write([]byte(w.redactor.Redact(string(p)))); err != nil {
		return 0, err
	}
	// Report the original length so zerolog never sees a short write.
	return len(p), nil
}
