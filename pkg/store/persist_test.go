package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, path, content string) error {
	t.Helper()
	return os.WriteFile(path, []byte(content), 0o600)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	require.NoError(t, writeFileAtomic(path, map[string]int{"n": 1}))

	var got map[string]int
	require.NoError(t, readFileJSON(path, &got))
	assert.Equal(t, 1, got["n"])

	// No temp file left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, writeFileAtomic(path, map[string]int{"n": 1}))
	require.NoError(t, writeFileAtomic(path, map[string]int{"n": 2}))

	var got map[string]int
	require.NoError(t, readFileJSON(path, &got))
	assert.Equal(t, 2, got["n"])
}

func TestReadFileJSONMissingFile(t *testing.T) {
	var got map[string]int
	err := readFileJSON(filepath.Join(t.TempDir(), "absent.json"), &got)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadFileJSONCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, writeRaw(t, path, "{oops"))

	var got map[string]int
	assert.Error(t, readFileJSON(path, &got))
}
