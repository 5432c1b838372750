package chunk

import (
	"strings"
)

// Options bounds chunk size and the sliding-window overlap carried between
// adjacent chunks.
type Options struct {
	MaxChars     int
	OverlapChars int
}

// DefaultOptions mirrors the ingestion defaults for knowledge documents.
func DefaultOptions() Options {
	return Options{MaxChars: 1200, OverlapChars: 200}
}

func (o Options) normalized() Options {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultOptions().MaxChars
	}
	if o.OverlapChars < 0 {
		o.OverlapChars = 0
	}
	return o
}

// Split breaks text into ordered, bounded chunks. Markdown-style heading
// markers select the heading-aware strategy so each chunk stays
// self-describing out of context; otherwise paragraphs are accumulated
// plainly. Non-empty input always yields at least one chunk, and every chunk
// stays within MaxChars except when a single paragraph exceeds it, in which
// case the paragraph is hard-sliced with an OverlapChars stride.
func Split(text string, opts Options) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	opts = opts.normalized()
	if strings.Contains(text, "#") {
		return headingChunks(text, opts)
	}
	return plainChunks(text, opts)
}

// plainChunks accumulates whitespace-trimmed paragraphs until the next one
// would exceed MaxChars, then flushes.
func plainChunks(text string, opts Options) []string {
	var paras []string
	for _, p := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paras = append(paras, trimmed)
		}
	}

	var chunks []string
	var buf []string
	currentLen := 0

	for _, p := range paras {
		if currentLen+len(p)+1 <= opts.MaxChars {
			buf = append(buf, p)
			currentLen += len(p) + 1
			continue
		}
		if len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, "\n"))
		}
		if len(p) > opts.MaxChars {
			chunks = append(chunks, hardSlice(p, opts)...)
			buf = nil
			currentLen = 0
		} else {
			buf = []string{p}
			currentLen = len(p)
		}
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, "\n"))
	}
	return chunks
}

// hardSlice cuts an oversize paragraph into fixed windows. The stride leaves
// OverlapChars of context repeated at each boundary.
func hardSlice(p string, opts Options) []string {
	stride := opts.MaxChars
	if opts.OverlapChars < opts.MaxChars {
		stride = opts.MaxChars - opts.OverlapChars
	}

	var segs []string
	for start := 0; start < len(p); start += stride {
		end := start + opts.MaxChars
		if end > len(p) {
			end = len(p)
		}
		segs = append(segs, p[start:end])
	}
	return segs
}

type heading struct {
	level int
	title string
}

// headingChunks tracks a markdown heading stack and prefixes every emitted
// chunk with the current heading path. Flushing mid-section retains the
// trailing OverlapChars of the previous buffer as a sliding window.
func headingChunks(text string, opts Options) []string {
	var headings []heading
	var buf []string
	currentLen := 0
	var chunks []string

	prefix := func() string {
		if len(headings) == 0 {
			return ""
		}
		parts := make([]string, 0, len(headings))
		for _, h := range headings {
			parts = append(parts, strings.Repeat("#", h.level)+" "+h.title)
		}
		return strings.Join(parts, "\n") + "\n\n"
	}

	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, prefix()+strings.Join(buf, "\n"))
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			flush()
			buf = nil
			currentLen = 0

			hashes := 0
			for _, ch := range line {
				if ch != '#' {
					break
				}
				hashes++
			}
			level := hashes
			if level > 6 {
				level = 6
			}
			title := strings.TrimSpace(line[hashes:])
			if title == "" {
				title = "Untitled"
			}
			// Trim the stack so only ancestors of this level remain.
			kept := headings[:0]
			for _, h := range headings {
				if h.level < level {
					kept = append(kept, h)
				}
			}
			headings = append(kept, heading{level: level, title: title})
			continue
		}

		if currentLen+len(line)+1 > opts.MaxChars && len(buf) > 0 {
			flush()
			if opts.OverlapChars > 0 {
				joined := strings.Join(buf, "\n")
				tail := joined
				if len(joined) > opts.OverlapChars {
					tail = joined[len(joined)-opts.OverlapChars:]
				}
				buf = []string{tail}
				currentLen = len(tail)
			} else {
				buf = nil
				currentLen = 0
			}
		}
		buf = append(buf, line)
		currentLen += len(line) + 1
	}
	flush()

	if len(chunks) == 0 {
		return plainChunks(text, opts)
	}

	// Heading prefixes can push a chunk past the limit; reduce those with the
	// plain strategy.
	final := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch) <= opts.MaxChars {
			final = append(final, ch)
			continue
		}
		final = append(final, plainChunks(ch, opts)...)
	}
	return final
}
