package logger

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates file and parent directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "ragna.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("appends to existing file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "ragna.log")
		require.NoError(t, os.WriteFile(logFile, []byte("first\n"), 0o644))

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		_, err = rw.Write([]byte("second\n"))
		require.NoError(t, err)
		require.NoError(t, rw.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", string(data))
	})
}

func TestRotatingWriterRotation(t *testing.T) {
	t.Run("rotates past size limit", func(t *testing.T) {
		dir := t.TempDir()
		logFile := filepath.Join(dir, "ragna.log")

		rw, err := NewRotatingWriter(logFile, 1, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		// Two writes that together exceed 1 MB force one rotation.
		chunk := bytes.Repeat([]byte("x"), 600*1024)
		_, err = rw.Write(chunk)
		require.NoError(t, err)
		_, err = rw.Write(chunk)
		require.NoError(t, err)

		rotated, err := filepath.Glob(logFile + ".*")
		require.NoError(t, err)
		require.Len(t, rotated, 1)

		info, err := os.Stat(logFile)
		require.NoError(t, err)
		assert.Equal(t, int64(len(chunk)), info.Size())
	})

	t.Run("compresses rotated file", func(t *testing.T) {
		dir := t.TempDir()
		logFile := filepath.Join(dir, "ragna.log")

		rw, err := NewRotatingWriter(logFile, 1, 7, true)
		require.NoError(t, err)
		defer rw.Close()

		chunk := bytes.Repeat([]byte("rotate me "), 70*1024)
		_, err = rw.Write(chunk)
		require.NoError(t, err)
		_, err = rw.Write(chunk)
		require.NoError(t, err)

		rotated, err := filepath.Glob(logFile + ".*.gz")
		require.NoError(t, err)
		require.Len(t, rotated, 1)

		f, err := os.Open(rotated[0])
		require.NoError(t, err)
		defer f.Close()
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		content, err := io.ReadAll(gz)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(content), "rotate me "))
	})
}

func TestRotatingWriterCleanup(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "ragna.log")

	stale := logFile + ".20240101-000000"
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := logFile + ".recent"
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestRotatingWriterCloseTwice(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "ragna.log")

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)

	require.NoError(t, rw.Close())
	assert.NoError(t, rw.Close())
}
