package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mizunoki/ragna/internal/observability"
	"github.com/mizunoki/ragna/pkg/chunk"
	"github.com/mizunoki/ragna/pkg/embedding"
	"github.com/mizunoki/ragna/pkg/sanitize"
)

// DocumentStore is the long-term knowledge side of the engine: chunked,
// sanitized documents with per-chunk embeddings, persisted to a single JSON
// file with a quarantine side ledger.
type DocumentStore struct {
	path              string
	quarantinePath    string
	embedder          embedding.Provider
	chunkOpts         chunk.Options
	quarantineEnabled bool
	logger            zerolog.Logger

	mu       sync.Mutex
	docs     []Document
	disabled bool

	quarMu sync.Mutex

	migrationMu sync.Mutex
	migration   MigrationState
}

// DocumentStoreConfig configures a DocumentStore.
type DocumentStoreConfig struct {
	Path              string
	Embedder          embedding.Provider
	ChunkOptions      chunk.Options
	QuarantineEnabled bool
	Logger            zerolog.Logger
}

// NewDocumentStore loads (or initializes) the store at cfg.Path. The
// quarantine ledger lives next to it at "<path>.quarantine".
func NewDocumentStore(cfg DocumentStoreConfig) (*DocumentStore, error) {
	observability.EnsureRegistered()

	if cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("embedding provider is required")
	}
	opts := cfg.ChunkOptions
	if opts.MaxChars <= 0 {
		opts = chunk.DefaultOptions()
	}

	s := &DocumentStore{
		path:              cfg.Path,
		quarantinePath:    cfg.Path + ".quarantine",
		embedder:          cfg.Embedder,
		chunkOpts:         opts,
		quarantineEnabled: cfg.QuarantineEnabled,
		logger:            cfg.Logger,
	}

	var file struct {
		Documents []Document `json:"documents"`
	}
	if err := readFileJSON(cfg.Path, &file); err != nil {
		s.logger.Warn().Err(err).Str("path", cfg.Path).Msg("Store file unreadable, starting empty")
	}
	s.docs = file.Documents
	s.migration.TargetModel = cfg.Embedder.ModelName()

	s.logger.Info().Int("documents", len(s.docs)).Str("path", cfg.Path).Msg("Document store loaded")
	return s, nil
}

// IngestOptions tunes a single ingestion call.
type IngestOptions struct {
	Meta    map[string]interface{}
	DocID   string // fixed id for idempotent re-ingestion; empty generates one
	Replace bool   // delete any existing document with DocID first

	bypassQuarantine bool
}

// IngestText chunks, sanitizes, embeds and stores text under source. A
// document whose sanitization flags any chunk is routed to the quarantine
// ledger instead of the index when quarantine is enabled; otherwise it is
// indexed with meta.suspicious set for operator visibility. A document whose
// checksum already exists is reported as a duplicate and not re-ingested
// unless Replace is set.
func (s *DocumentStore) IngestText(ctx context.Context, text, source string, opts IngestOptions) (IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return IngestResult{}, ErrEmptyText
	}

	sum := sha256.Sum256([]byte(text))
	checksum := hex.EncodeToString(sum[:])

	docID := opts.DocID
	if docID == "" {
		docID = uuid.NewString()
	}

	if !opts.Replace {
		if existing := s.findByChecksum(checksum); existing != "" {
			s.logger.Debug().Str("doc_id", existing).Msg("Duplicate checksum, skipping ingestion")
			observability.RecordIngest("duplicate")
			return IngestResult{DocID: existing, Checksum: checksum, Duplicate: true}, nil
		}
	}

	// A stale recorded model means the active embedder changed since some
	// documents were written; kick off a background migration without making
	// this caller wait.
	if s.hasStaleModel() {
		go s.RebuildEmbeddings(false)
	}

	chunks := chunk.Split(text, s.chunkOpts)
	if len(chunks) == 0 {
		return IngestResult{}, ErrEmptyText
	}

	sanitized := make([]string, len(chunks))
	suspicious := map[int]struct{}{}
	for i, c := range chunks {
		clean, report := sanitize.Sanitize(c)
		sanitized[i] = clean
		if report.Suspicious {
			suspicious[i] = struct{}{}
		}
	}

	if len(suspicious) > 0 && s.quarantineEnabled && !opts.bypassQuarantine {
		record := QuarantineRecord{
			DocID:            docID,
			Source:           source,
			CreatedAt:        time.Now().UTC(),
			Checksum:         checksum,
			SuspiciousChunks: sortedKeys(suspicious),
			ChunkCount:       len(sanitized),
		}
		if err := s.appendQuarantine(record); err != nil {
			s.logger.Error().Err(err).Str("doc_id", docID).Msg("Failed to write quarantine ledger")
		}
		s.logger.Warn().
			Str("doc_id", docID).
			Str("source", source).
			Ints("chunks", record.SuspiciousChunks).
			Msg("Document quarantined")
		observability.RecordIngest("quarantined")
		return IngestResult{
			DocID:       docID,
			Chunks:      len(sanitized),
			Checksum:    checksum,
			Quarantined: true,
			Suspicious:  true,
		}, nil
	}

	embeds, err := s.embedder.EmbedBatch(ctx, sanitized)
	s.noteAvailability(err)
	if err != nil {
		return IngestResult{}, err
	}

	doc := Document{
		DocID:          docID,
		Source:         source,
		CreatedAt:      time.Now().UTC(),
		EmbeddingModel: s.embedder.ModelName(),
		Checksum:       checksum,
		Meta:           opts.Meta,
		Chunks:         make([]Chunk, 0, len(sanitized)),
	}
	for i, c := range sanitized {
		ck := Chunk{
			ID:        uuid.NewString(),
			Index:     i,
			Text:      c,
			Embedding: embeds[i],
			Length:    len(c),
		}
		if _, ok := suspicious[i]; ok {
			ck.Suspicious = true
		}
		doc.Chunks = append(doc.Chunks, ck)
	}
	if len(suspicious) > 0 {
		if doc.Meta == nil {
			doc.Meta = map[string]interface{}{}
		}
		doc.Meta["suspicious"] = true
	}

	start := time.Now()
	s.mu.Lock()
	replaced := false
	if opts.Replace {
		kept := s.docs[:0]
		for _, d := range s.docs {
			if d.DocID == docID {
				replaced = true
				continue
			}
			kept = append(kept, d)
		}
		s.docs = kept
	}
	s.docs = append(s.docs, doc)
	s.persistLocked()
	total := len(s.docs)
	s.mu.Unlock()
	observability.RecordStoreWrite("knowledge", time.Since(start))
	observability.SetStoreEntries("knowledge", total)
	observability.RecordIngest("indexed")

	return IngestResult{
		DocID:      docID,
		Chunks:     len(doc.Chunks),
		Checksum:   checksum,
		Replaced:   replaced,
		Suspicious: len(suspicious) > 0,
	}, nil
}

// Search ranks all chunks across all documents by cosine similarity to the
// query. Empty query or unavailable provider degrades to an empty result.
func (s *DocumentStore) Search(ctx context.Context, query string, topK int) ([]ChunkResult, error) {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return nil, nil
	}

	start := time.Now()
	defer func() { observability.RecordStoreSearch("knowledge", time.Since(start)) }()

	qvec, err := s.embedder.Embed(ctx, query)
	s.noteAvailability(err)
	if err != nil {
		if errors.Is(err, embedding.ErrUnavailable) {
			return nil, nil
		}
		return nil, err
	}

	s.mu.Lock()
	snapshot := make([]Document, len(s.docs))
	copy(snapshot, s.docs)
	s.mu.Unlock()

	qnorm := embedding.Normalize(qvec)
	var results []ChunkResult
	for _, d := range snapshot {
		for _, c := range d.Chunks {
			results = append(results, ChunkResult{
				ChunkID: c.ID,
				DocID:   d.DocID,
				Source:  d.Source,
				Index:   c.Index,
				Text:    c.Text,
				Score:   embedding.Dot(embedding.Normalize(c.Embedding), qnorm),
			})
		}
	}
	if len(results) == 0 {
		return nil, nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// ListDocuments returns the list view of all documents in insertion order.
func (s *DocumentStore) ListDocuments() []DocumentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DocumentInfo, 0, len(s.docs))
	for _, d := range s.docs {
		suspicious, _ := d.Meta["suspicious"].(bool)
		out = append(out, DocumentInfo{
			DocID:          d.DocID,
			Source:         d.Source,
			CreatedAt:      d.CreatedAt,
			Chunks:         len(d.Chunks),
			EmbeddingModel: d.EmbeddingModel,
			Checksum:       d.Checksum,
			Suspicious:     suspicious,
		})
	}
	return out
}

// GetDocument returns a copy of the document with the given id.
func (s *DocumentStore) GetDocument(docID string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.docs {
		if d.DocID == docID {
			return d, true
		}
	}
	return Document{}, false
}

// DeleteDocuments removes the given ids, persisting only when something
// changed, and reports how many documents were removed.
func (s *DocumentStore) DeleteDocuments(docIDs []string) int {
	if len(docIDs) == 0 {
		return 0
	}
	idSet := make(map[string]struct{}, len(docIDs))
	for _, id := range docIDs {
		idSet[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.docs[:0]
	for _, d := range s.docs {
		if _, drop := idSet[d.DocID]; !drop {
			kept = append(kept, d)
		}
	}
	removed := len(s.docs) - len(kept)
	if removed > 0 {
		s.docs = kept
		s.persistLocked()
		observability.SetStoreEntries("knowledge", len(s.docs))
	}
	return removed
}

// Stats returns a read-only snapshot of store state.
func (s *DocumentStore) Stats() DocumentStats {
	s.mu.Lock()
	docs := len(s.docs)
	chunks := 0
	for _, d := range s.docs {
		chunks += len(d.Chunks)
	}
	disabled := s.disabled
	s.mu.Unlock()

	return DocumentStats{
		Documents:        docs,
		Chunks:           chunks,
		Quarantined:      len(s.QuarantineRecords()),
		Path:             s.path,
		EmbeddingEnabled: !disabled,
	}
}

func (s *DocumentStore) findByChecksum(checksum string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.Checksum == checksum {
			return d.DocID
		}
	}
	return ""
}

func (s *DocumentStore) hasStaleModel() bool {
	active := s.embedder.ModelName()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.EmbeddingModel != active {
			return true
		}
	}
	return false
}

func (s *DocumentStore) noteAvailability(err error) {
	disabled := errors.Is(err, embedding.ErrUnavailable)
	s.mu.Lock()
	s.disabled = disabled
	s.mu.Unlock()
}

// persistLocked writes the store file, best effort.
func (s *DocumentStore) persistLocked() {
	file := struct {
		Documents []Document `json:"documents"`
	}{Documents: s.docs}

	if err := writeFileAtomic(s.path, file); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to persist document store")
	}
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
