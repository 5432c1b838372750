package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mizunoki/ragna/internal/observability"
)

// RebuildEmbeddings re-embeds every document whose recorded model differs
// from the active provider, or every document when force is set. At most
// one migration runs per store; a request while one is in flight returns
// the current status instead of starting another. Per-document failures
// are collected in the status and never abort the run.
func (s *DocumentStore) RebuildEmbeddings(force bool) MigrationState {
	s.migrationMu.Lock()
	if s.migration.Running {
		state := s.migration
		s.migrationMu.Unlock()
		return state
	}

	targets := s.migrationTargets(force)
	s.migration = MigrationState{
		Running:      true,
		StartedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
		TotalTargets: len(targets),
		TargetModel:  s.embedder.ModelName(),
		Force:        force,
	}
	state := s.migration
	s.migrationMu.Unlock()

	if len(targets) == 0 {
		s.finishMigration()
		return s.RebuildStatus()
	}

	observability.SetMigrationRunning("knowledge", true)
	s.logger.Info().
		Int("targets", len(targets)).
		Str("model", state.TargetModel).
		Bool("force", force).
		Msg("Embedding migration started")

	go s.runMigration(targets)
	return state
}

// RebuildStatus reports the current migration state.
func (s *DocumentStore) RebuildStatus() MigrationState {
	s.migrationMu.Lock()
	defer s.migrationMu.Unlock()
	return s.migration
}

func (s *DocumentStore) migrationTargets(force bool) []string {
	active := s.embedder.ModelName()

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, d := range s.docs {
		if force || d.EmbeddingModel != active {
			ids = append(ids, d.DocID)
		}
	}
	return ids
}

func (s *DocumentStore) runMigration(targets []string) {
	ctx := context.Background()
	for _, docID := range targets {
		err := s.migrateDocument(ctx, docID)
		observability.RecordMigrationDoc(err == nil)

		s.migrationMu.Lock()
		s.migration.UpdatedAt = time.Now().UTC()
		if err != nil {
			s.migration.Errors = append(s.migration.Errors,
				fmt.Sprintf("%s: %v", docID, err))
			s.logger.Error().Err(err).Str("doc_id", docID).Msg("Migration failed for document")
		} else {
			s.migration.Completed++
		}
		s.migrationMu.Unlock()
	}
	s.finishMigration()
}

// migrateDocument re-embeds all chunks of one document and swaps the
// document in atomically: either every chunk carries the new embedding and
// model tag, or the document is left untouched.
func (s *DocumentStore) migrateDocument(ctx context.Context, docID string) error {
	doc, ok := s.GetDocument(docID)
	if !ok {
		return fmt.Errorf("document disappeared during migration")
	}

	texts := make([]string, len(doc.Chunks))
	for i, c := range doc.Chunks {
		texts[i] = c.Text
	}

	embeds, err := s.embedder.EmbedBatch(ctx, texts)
	s.noteAvailability(err)
	if err != nil {
		return err
	}

	// The chunk slice aliases the stored document, so write a fresh copy
	// rather than mutating embeddings in place under a concurrent search.
	chunks := make([]Chunk, len(doc.Chunks))
	copy(chunks, doc.Chunks)
	for i := range chunks {
		chunks[i].Embedding = embeds[i]
	}
	doc.Chunks = chunks
	doc.EmbeddingModel = s.embedder.ModelName()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].DocID == docID {
			s.docs[i] = doc
			s.persistLocked()
			return nil
		}
	}
	return fmt.Errorf("document disappeared during migration")
}

func (s *DocumentStore) finishMigration() {
	s.migrationMu.Lock()
	s.migration.Running = false
	s.migration.UpdatedAt = time.Now().UTC()
	completed := s.migration.Completed
	failed := len(s.migration.Errors)
	s.migrationMu.Unlock()

	observability.SetMigrationRunning("knowledge", false)
	s.logger.Info().
		Int("completed", completed).
		Int("failed", failed).
		Msg("Embedding migration finished")
}
