package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizunoki/ragna/pkg/embedding"
	"github.com/mizunoki/ragna/pkg/llm"
	"github.com/mizunoki/ragna/pkg/store"
)

func chatBackend(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":100,"completion_tokens":20,"total_tokens":120}}`, reply)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestSetup(t *testing.T, backendURL string) (*store.EntryStore, *Summarizer) {
	t.Helper()
	memory, err := store.NewEntryStore(store.EntryStoreConfig{
		Path:     filepath.Join(t.TempDir(), "memory.json"),
		Embedder: embedding.NewMock(16),
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	cfg := llm.DefaultConfig()
	cfg.BaseURL = backendURL + "/v1"
	cfg.Logger = zerolog.Nop()
	client := llm.New(cfg, nil)

	s, err := New(memory, client, Config{Logger: zerolog.Nop()})
	require.NoError(t, err)
	return memory, s
}

func fillMemory(t *testing.T, memory *store.EntryStore, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := memory.Add(context.Background(), fmt.Sprintf("memory entry number %d", i), nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestMaybeSummarizeUnderThreshold(t *testing.T) {
	backend := chatBackend(t, "should not be called")
	memory, s := newTestSetup(t, backend.URL)
	fillMemory(t, memory, 50)

	id, err := s.MaybeSummarize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Len(t, memory.List(), 50)
}

func TestMaybeSummarizeCompressesOldestBatch(t *testing.T) {
	backend := chatBackend(t, "- user prefers concise answers\n- project is written in Go")
	memory, s := newTestSetup(t, backend.URL)
	ids := fillMemory(t, memory, 51)

	summaryID, err := s.MaybeSummarize(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, summaryID)

	// 51 entries become 51 - 15 + 1 = 37.
	entries := memory.List()
	assert.Len(t, entries, 37)

	var summary *store.Entry
	remaining := map[string]bool{}
	for i := range entries {
		if entries[i].ID == summaryID {
			summary = &entries[i]
		}
		remaining[entries[i].ID] = true
	}
	require.NotNil(t, summary)
	assert.Equal(t, true, summary.Metadata["summary"])
	assert.Len(t, summary.Metadata["source_ids"], 15)

	// The 15 oldest originals are gone, the rest kept.
	for i, id := range ids {
		if i < 15 {
			assert.False(t, remaining[id], "entry %d should be compressed away", i)
		} else {
			assert.True(t, remaining[id], "entry %d should remain", i)
		}
	}
}

func TestMaybeSummarizeIgnoresExistingSummaries(t *testing.T) {
	backend := chatBackend(t, "summary text")
	memory, s := newTestSetup(t, backend.URL)

	// 50 base entries plus summaries stays under the trigger.
	fillMemory(t, memory, 50)
	for i := 0; i < 5; i++ {
		_, err := memory.Add(context.Background(), fmt.Sprintf("old summary %d", i), map[string]interface{}{"summary": true})
		require.NoError(t, err)
	}

	id, err := s.MaybeSummarize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Len(t, memory.List(), 55)
}

func TestMaybeSummarizeFailureKeepsEntries(t *testing.T) {
	memory, s := newTestSetup(t, "http://127.0.0.1:1")
	fillMemory(t, memory, 51)

	_, err := s.MaybeSummarize(context.Background())
	require.Error(t, err)
	assert.Len(t, memory.List(), 51)
}

func TestMaybeSummarizeEmptyReplyKeepsEntries(t *testing.T) {
	backend := chatBackend(t, "")
	memory, s := newTestSetup(t, backend.URL)
	fillMemory(t, memory, 51)

	_, err := s.MaybeSummarize(context.Background())
	require.Error(t, err)
	assert.Len(t, memory.List(), 51)
}

func TestStartPeriodicRejectsBadSpec(t *testing.T) {
	backend := chatBackend(t, "x")
	_, s := newTestSetup(t, backend.URL)

	assert.Error(t, s.StartPeriodic("not a cron spec"))

	require.NoError(t, s.StartPeriodic("@hourly"))
	assert.Error(t, s.StartPeriodic("@hourly"))
	s.StopPeriodic()
}
