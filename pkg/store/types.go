package store

import (
	"errors"
	"time"
)

// ErrEmptyText rejects empty or whitespace-only content at ingestion.
var ErrEmptyText = errors.New("text is empty")

// Entry is one memory record. It is owned by its EntryStore and mutated only
// through store methods.
type Entry struct {
	ID        string                 `json:"id"`
	Text      string                 `json:"text"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Embedding []float32              `json:"embedding"`
	CreatedAt time.Time              `json:"created_at"`
}

// Chunk is the unit of embedding and retrieval inside a document. Index is
// 0-based and order-significant within the document.
type Chunk struct {
	ID         string    `json:"id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	Length     int       `json:"len"`
	Suspicious bool      `json:"suspicious,omitempty"`
}

// Document is one knowledge record. All chunk embeddings belong to the
// recorded EmbeddingModel; migration rewrites the whole document atomically,
// never a subset of its chunks.
type Document struct {
	DocID          string                 `json:"doc_id"`
	Source         string                 `json:"source"`
	CreatedAt      time.Time              `json:"created_at"`
	EmbeddingModel string                 `json:"embedding_model"`
	Checksum       string                 `json:"checksum"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
	Chunks         []Chunk                `json:"chunks"`
}

// QuarantineRecord is written to the side ledger instead of a Document when
// ingestion is flagged suspicious and quarantine is enabled. The original
// content never reaches the searchable index until approved and re-ingested.
type QuarantineRecord struct {
	DocID            string    `json:"doc_id"`
	Source           string    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
	Checksum         string    `json:"checksum"`
	SuspiciousChunks []int     `json:"suspicious_chunks"`
	ChunkCount       int       `json:"chunk_count"`
}

// MigrationState is the queryable status of the embedding migration worker.
// It lives in memory only; a restart during migration loses progress.
type MigrationState struct {
	Running      bool      `json:"running"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
	TotalTargets int       `json:"total_targets"`
	Completed    int       `json:"completed"`
	Errors       []string  `json:"errors"`
	TargetModel  string    `json:"target_model"`
	Force        bool      `json:"force"`
}

// EntryResult is one ranked memory search hit.
type EntryResult struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float64                `json:"score"`
}

// ChunkResult is one ranked knowledge search hit, carrying enough context to
// cite the source document.
type ChunkResult struct {
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Source  string  `json:"source"`
	Index   int     `json:"index"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// IngestResult reports what ingestion did with a piece of text.
type IngestResult struct {
	DocID       string `json:"doc_id"`
	Chunks      int    `json:"chunks"`
	Checksum    string `json:"checksum"`
	Quarantined bool   `json:"quarantined,omitempty"`
	Duplicate   bool   `json:"duplicate,omitempty"`
	Replaced    bool   `json:"replaced,omitempty"`
	Suspicious  bool   `json:"suspicious,omitempty"`
}

// EntryStats is a read-only snapshot of an EntryStore.
type EntryStats struct {
	Count            int    `json:"count"`
	Path             string `json:"path"`
	EmbeddingEnabled bool   `json:"embedding_enabled"`
}

// DocumentStats is a read-only snapshot of a DocumentStore.
type DocumentStats struct {
	Documents        int    `json:"documents"`
	Chunks           int    `json:"chunks"`
	Quarantined      int    `json:"quarantined"`
	Path             string `json:"path"`
	EmbeddingEnabled bool   `json:"embedding_enabled"`
}

// DocumentInfo is the list view of a document, without chunk payloads.
type DocumentInfo struct {
	DocID          string    `json:"doc_id"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
	Chunks         int       `json:"chunks"`
	EmbeddingModel string    `json:"embedding_model"`
	Checksum       string    `json:"checksum"`
	Suspicious     bool      `json:"suspicious,omitempty"`
}
