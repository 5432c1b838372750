package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForMigration(t *testing.T, s *DocumentStore) MigrationState {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state := s.RebuildStatus()
		if !state.Running {
			return state
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("migration did not finish in time")
	return MigrationState{}
}

func TestRebuildEmbeddingsNoTargets(t *testing.T) {
	s, _ := newTestDocumentStore(t, true)

	_, err := s.IngestText(context.Background(), "already current", "a", IngestOptions{})
	require.NoError(t, err)

	s.RebuildEmbeddings(false)
	state := waitForMigration(t, s)
	assert.Equal(t, 0, state.TotalTargets)
	assert.Equal(t, 0, state.Completed)
	assert.Empty(t, state.Errors)
}

func TestRebuildEmbeddingsMigratesStaleDocuments(t *testing.T) {
	s, mock := newTestDocumentStore(t, true)
	ctx := context.Background()

	old, err := s.IngestText(ctx, "written under the old model", "a", IngestOptions{})
	require.NoError(t, err)

	mock.SetModelName("mock-embedder-v2")
	fresh, err := s.IngestText(ctx, "written under the new model", "b", IngestOptions{})
	require.NoError(t, err)

	s.RebuildEmbeddings(false)
	state := waitForMigration(t, s)
	assert.Equal(t, 1, state.TotalTargets)
	assert.Equal(t, 1, state.Completed)
	assert.Empty(t, state.Errors)
	assert.Equal(t, "mock-embedder-v2", state.TargetModel)

	for _, id := range []string{old.DocID, fresh.DocID} {
		doc, ok := s.GetDocument(id)
		require.True(t, ok)
		assert.Equal(t, "mock-embedder-v2", doc.EmbeddingModel)
	}
}

func TestRebuildEmbeddingsForceMigratesAll(t *testing.T) {
	s, _ := newTestDocumentStore(t, true)
	ctx := context.Background()

	_, err := s.IngestText(ctx, "doc one", "a", IngestOptions{})
	require.NoError(t, err)
	_, err = s.IngestText(ctx, "doc two", "b", IngestOptions{})
	require.NoError(t, err)

	s.RebuildEmbeddings(true)
	state := waitForMigration(t, s)
	assert.Equal(t, 2, state.TotalTargets)
	assert.Equal(t, 2, state.Completed)
	assert.True(t, state.Force)
}

func TestRebuildEmbeddingsIsolatesFailures(t *testing.T) {
	s, mock := newTestDocumentStore(t, true)
	ctx := context.Background()

	ok1, err := s.IngestText(ctx, "healthy document", "a", IngestOptions{})
	require.NoError(t, err)
	bad, err := s.IngestText(ctx, "poisoned document", "b", IngestOptions{})
	require.NoError(t, err)

	mock.SetModelName("mock-embedder-v2")
	mock.FailOn("poisoned document")

	s.RebuildEmbeddings(false)
	state := waitForMigration(t, s)
	assert.Equal(t, 2, state.TotalTargets)
	assert.Equal(t, 1, state.Completed)
	require.Len(t, state.Errors, 1)
	assert.Contains(t, state.Errors[0], bad.DocID)

	healthy, found := s.GetDocument(ok1.DocID)
	require.True(t, found)
	assert.Equal(t, "mock-embedder-v2", healthy.EmbeddingModel)

	// The failed document keeps its previous embeddings and model tag.
	poisoned, found := s.GetDocument(bad.DocID)
	require.True(t, found)
	assert.Equal(t, "mock-embedder", poisoned.EmbeddingModel)
}

func TestRebuildEmbeddingsSingleFlight(t *testing.T) {
	s, mock := newTestDocumentStore(t, true)
	ctx := context.Background()

	_, err := s.IngestText(ctx, "some document", "a", IngestOptions{})
	require.NoError(t, err)

	// Park the worker inside its embed call so the first run is still in
	// flight when the second request arrives.
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	mock.SetModelName("mock-embedder-v2")
	mock.SetEmbedHook(func() {
		entered <- struct{}{}
		<-release
	})

	first := s.RebuildEmbeddings(false)
	assert.True(t, first.Running)
	<-entered

	second := s.RebuildEmbeddings(false)
	assert.True(t, second.Running)
	assert.Equal(t, first.StartedAt, second.StartedAt)

	mock.SetEmbedHook(nil)
	close(release)
	waitForMigration(t, s)
}

func TestStaleModelTriggersBackgroundMigration(t *testing.T) {
	s, mock := newTestDocumentStore(t, true)
	ctx := context.Background()

	stale, err := s.IngestText(ctx, "old content", "a", IngestOptions{})
	require.NoError(t, err)

	mock.SetModelName("mock-embedder-v2")
	_, err = s.IngestText(ctx, "new content", "b", IngestOptions{})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, ok := s.GetDocument(stale.DocID)
		require.True(t, ok)
		if doc.EmbeddingModel == "mock-embedder-v2" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("stale document was not migrated")
}
