// Package sanitize filters prompt-injection attempts and PII out of text
// entering the retrieval pipeline.
//
// Invariants:
// - Sanitize is pure and total: it never fails and never drops content,
//   only quotes matched lines and strips control characters.
// - The injection pattern list is fixed and matched per line, first hit wins.
// - Redaction is a separate, independently toggled transform.
package sanitize
