package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyInput(t *testing.T) {
	assert.Nil(t, Split("", DefaultOptions()))
	assert.Nil(t, Split("   \n\t  ", DefaultOptions()))
}

func TestSplit_SingleParagraph(t *testing.T) {
	chunks := Split("a short paragraph", DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph", chunks[0])
}

func TestSplit_RespectsMaxChars(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("some ordinary paragraph text that fills the buffer\n")
	}

	opts := Options{MaxChars: 200, OverlapChars: 20}
	chunks := Split(sb.String(), opts)

	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch), opts.MaxChars, "chunk %d exceeds limit", i)
	}
}

func TestSplit_OversizeParagraphHardSliced(t *testing.T) {
	para := strings.Repeat("x", 1000)
	opts := Options{MaxChars: 300, OverlapChars: 50}

	chunks := Split(para, opts)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), opts.MaxChars)
	}
	// Adjacent slices repeat the overlap window.
	assert.Equal(t, chunks[0][len(chunks[0])-50:], chunks[1][:50])
}

func TestSplit_NoParagraphLost(t *testing.T) {
	paras := []string{
		"Alpha paragraph about storage engines.",
		"Beta paragraph about vector ranking.",
		"Gamma paragraph about sanitization.",
		"Delta paragraph about summarization.",
	}
	text := strings.Join(paras, "\n")

	chunks := Split(text, Options{MaxChars: 80, OverlapChars: 0})

	joined := strings.Join(chunks, "\n")
	for _, p := range paras {
		assert.Contains(t, joined, p)
	}
}

func TestSplit_HeadingAware(t *testing.T) {
	text := "# Guide\n" +
		"intro paragraph\n" +
		"## Setup\n" +
		"setup details line one\n" +
		"setup details line two\n" +
		"## Usage\n" +
		"usage details\n"

	chunks := Split(text, DefaultOptions())

	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[0], "# Guide\n\n"))
	assert.True(t, strings.HasPrefix(chunks[1], "# Guide\n## Setup\n\n"))
	assert.True(t, strings.HasPrefix(chunks[2], "# Guide\n## Usage\n\n"))
	assert.Contains(t, chunks[1], "setup details line one")
}

func TestSplit_HeadingStackTrimsSiblings(t *testing.T) {
	text := "# Top\n" +
		"## First\n" +
		"first content\n" +
		"## Second\n" +
		"second content\n"

	chunks := Split(text, DefaultOptions())

	require.Len(t, chunks, 2)
	assert.NotContains(t, chunks[1], "## First")
	assert.Contains(t, chunks[1], "## Second")
}

func TestSplit_HeadingOverlapWindow(t *testing.T) {
	var body strings.Builder
	body.WriteString("# Section\n")
	for i := 0; i < 30; i++ {
		body.WriteString("line of body text that keeps accumulating until a flush happens\n")
	}

	opts := Options{MaxChars: 400, OverlapChars: 60}
	chunks := Split(body.String(), opts)

	require.Greater(t, len(chunks), 1)
	// The second chunk starts with the tail of the first buffer.
	withoutPrefix := strings.TrimPrefix(chunks[1], "# Section\n\n")
	assert.Contains(t, chunks[0], strings.Split(withoutPrefix, "\n")[0])
}

func TestSplit_HeadingUntitled(t *testing.T) {
	chunks := Split("##\ncontent under an empty heading\n", DefaultOptions())

	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0], "## Untitled"))
}

func TestSplit_LevelCappedAtSix(t *testing.T) {
	chunks := Split("######### Deep\ncontent\n", DefaultOptions())

	require.Len(t, chunks, 1)
	assert.True(t, strings.HasPrefix(chunks[0], "###### Deep"))
}
