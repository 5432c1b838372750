package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mizunoki/ragna/internal/observability"
	"github.com/mizunoki/ragna/pkg/embedding"
)

// EntryStore is the short-term memory side of the engine: a flat,
// JSON-file-persisted collection of embedded entries.
type EntryStore struct {
	path     string
	embedder embedding.Provider
	logger   zerolog.Logger

	mu       sync.Mutex
	entries  []Entry
	disabled bool // last embed call reported ErrUnavailable
}

// EntryStoreConfig configures an EntryStore.
type EntryStoreConfig struct {
	Path     string
	Embedder embedding.Provider
	Logger   zerolog.Logger
}

// NewEntryStore loads (or initializes) the store at cfg.Path. A missing or
// corrupt file starts the store empty rather than failing.
func NewEntryStore(cfg EntryStoreConfig) (*EntryStore, error) {
	observability.EnsureRegistered()

	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedding provider is required")
	}

	s := &EntryStore{
		path:     cfg.Path,
		embedder: cfg.Embedder,
		logger:   cfg.Logger,
	}

	var file struct {
		Entries []Entry `json:"entries"`
	}
	if err := readFileJSON(cfg.Path, &file); err != nil {
		s.logger.Warn().Err(err).Str("path", cfg.Path).Msg("Store file unreadable, starting empty")
	}
	s.entries = file.Entries

	s.logger.Info().Int("entries", len(s.entries)).Str("path", cfg.Path).Msg("Entry store loaded")
	return s, nil
}

// Add embeds text and appends a new entry, persisting atomically. Empty or
// whitespace-only text is rejected with ErrEmptyText; an unavailable
// embedding provider surfaces embedding.ErrUnavailable.
func (s *EntryStore) Add(ctx context.Context, text string, metadata map[string]interface{}) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	// Embedding happens outside the lock so slow providers never block reads.
	vec, err := s.embedder.Embed(ctx, text)
	s.noteAvailability(err)
	if err != nil {
		return "", err
	}

	entry := Entry{
		ID:        uuid.NewString(),
		Text:      text,
		Metadata:  metadata,
		Embedding: vec,
		CreatedAt: time.Now().UTC(),
	}

	start := time.Now()
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.persistLocked()
	total := len(s.entries)
	s.mu.Unlock()
	observability.RecordStoreWrite("memory", time.Since(start))
	observability.SetStoreEntries("memory", total)

	return entry.ID, nil
}

// Search ranks all entries by cosine similarity to the query and returns the
// top k. An empty query or an unavailable embedding provider yields an empty
// result, not an error.
func (s *EntryStore) Search(ctx context.Context, query string, topK int) ([]EntryResult, error) {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { observability.RecordStoreSearch("memory", time.Since(start)) }()

	qvec, err := s.embedder.Embed(ctx, query)
	s.noteAvailability(err)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			return nil, nil
		}
		return nil, err
	}

	s.mu.Lock()
	snapshot := make([]Entry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	if len(snapshot) == 0 {
		return nil, nil
	}

	// Vector math runs outside the lock.
	qnorm := embedding.Normalize(qvec)
	results := make([]EntryResult, len(snapshot))
	for i, e := range snapshot {
		results[i] = EntryResult{
			ID:       e.ID,
			Text:     e.Text,
			Metadata: e.Metadata,
			Score:    embedding.Dot(embedding.Normalize(e.Embedding), qnorm),
		}
	}

	// Stable sort keeps insertion order on score ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes the given ids and reports how many were removed. The file
// is rewritten only when something actually changed.
func (s *EntryStore) Delete(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if _, drop := idSet[e.ID]; !drop {
			kept = append(kept, e)
		}
	}
	removed := len(s.entries) - len(kept)
	if removed > 0 {
		s.entries = kept
		s.persistLocked()
		observability.SetStoreEntries("memory", len(s.entries))
	}
	return removed
}

// UpdateMetadata merges new keys into an entry's metadata.
func (s *EntryStore) UpdateMetadata(id string, meta map[string]interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != id {
			continue
		}
		if s.entries[i].Metadata == nil {
			s.entries[i].Metadata = make(map[string]interface{}, len(meta))
		}
		for k, v := range meta {
			s.entries[i].Metadata[k] = v
		}
		s.persistLocked()
		return true
	}
	return false
}

// List returns a snapshot of all entries in insertion order.
func (s *EntryStore) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Stats returns a read-only snapshot of store state.
func (s *EntryStore) Stats() EntryStats {
	s.mu.Lock()
	count := len(s.entries)
	s.mu.Unlock()

	s.mu.Lock()
	disabled := s.disabled
	s.mu.Unlock()

	return EntryStats{
		Count:            count,
		Path:             s.path,
		EmbeddingEnabled: !disabled,
	}
}

// noteAvailability tracks whether the provider reported the unavailable
// sentinel, so Stats can answer without probing the network.
func (s *EntryStore) noteAvailability(err error) {
	disabled := errors.Is(err, embedding.ErrUnavailable)
	s.mu.Lock()
	s.disabled = disabled
	s.mu.Unlock()
}

// persistLocked writes the store file. Persistence is best effort: on
// failure the in-memory state stays authoritative and the write is retried
// on the next mutation.
func (s *EntryStore) persistLocked() {
	file := struct {
		Entries []Entry `json:"entries"`
	}{Entries: s.entries}

	if err := writeFileAtomic(s.path, file); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to persist entry store")
	}
}
