package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mizunoki/ragna/internal/observability"
	"github.com/mizunoki/ragna/pkg/llm"
	"github.com/mizunoki/ragna/pkg/store"
)

// Compression defaults. Trigger counts non-summary entries only, so old
// summaries never re-trigger their own compression.
const (
	DefaultTrigger    = 50
	DefaultBatchSize  = 15
	DefaultSnippetMax = 300
)

// Config configures a Summarizer.
type Config struct {
	Trigger    int
	BatchSize  int
	SnippetMax int
	Logger     zerolog.Logger
}

// Summarizer compresses old memory entries into a single summary entry once
// the store grows past a threshold.
type Summarizer struct {
	memory *store.EntryStore
	client *llm.Client
	cfg    Config
	cron   *cron.Cron
}

// New creates a Summarizer over the given memory store and generation client.
func New(memory *store.EntryStore, client *llm.Client, cfg Config) (*Summarizer, error) {
	observability.EnsureRegistered()

	if memory == nil {
		return nil, errors.New("memory store is required")
	}
	if client == nil {
		return nil, errors.New("generation client is required")
	}
	if cfg.Trigger <= 0 {
		cfg.Trigger = DefaultTrigger
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.SnippetMax <= 0 {
		cfg.SnippetMax = DefaultSnippetMax
	}
	return &Summarizer{memory: memory, client: client, cfg: cfg}, nil
}

// MaybeSummarize compresses the oldest batch of non-summary entries when the
// store holds more of them than the trigger. It returns the new summary entry
// id, or "" when nothing was done. The summary entry is added before the
// originals are deleted, so a failure never loses entries.
func (s *Summarizer) MaybeSummarize(ctx context.Context) (string, error) {
	entries := s.memory.List()

	var base []store.Entry
	for _, e := range entries {
		if isSummary(e.Metadata) {
			continue
		}
		base = append(base, e)
	}
	if len(base) <= s.cfg.Trigger {
		return "", nil
	}

	// Entries are kept in insertion order, so the head is the oldest.
	batch := base
	if len(batch) > s.cfg.BatchSize {
		batch = batch[:s.cfg.BatchSize]
	}

	snippets := make([]string, 0, len(batch))
	sourceIDs := make([]interface{}, 0, len(batch))
	deleteIDs := make([]string, 0, len(batch))
	for _, e := range batch {
		text := e.Text
		if len(text) > s.cfg.SnippetMax {
			text = text[:s.cfg.SnippetMax] + "..."
		}
		snippets = append(snippets, fmt.Sprintf("ID %s:: %s", shortID(e.ID), text))
		sourceIDs = append(sourceIDs, e.ID)
		deleteIDs = append(deleteIDs, e.ID)
	}

	prompt := "You are a memory compression module. Summarize the following prior conversation or context snippets into a concise, information-dense memory. " +
		"Capture stable facts, user preferences, key objectives, unresolved questions, and important constraints. Avoid duplicating ephemeral chit-chat. " +
		"Return bullet points (max ~20) grouped logically. Remove PII unless essential.\n\n" +
		strings.Join(snippets, "\n")

	result := s.client.Generate(ctx, llm.GenerateRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if result.Failed || strings.TrimSpace(result.Text) == "" {
		observability.RecordSummarize("failed")
		s.cfg.Logger.Warn().
			Bool("failed", result.Failed).
			Str("error", result.ErrorMessage).
			Msg("Summarization aborted, entries kept")
		return "", fmt.Errorf("summarization produced no text: %s", result.ErrorMessage)
	}

	summaryID, err := s.memory.Add(ctx, result.Text, map[string]interface{}{
		"summary":    true,
		"source_ids": sourceIDs,
	})
	if err != nil {
		observability.RecordSummarize("failed")
		return "", fmt.Errorf("store summary entry: %w", err)
	}

	removed := s.memory.Delete(deleteIDs)
	observability.RecordSummarize("success")
	s.cfg.Logger.Info().
		Str("summary_id", summaryID).
		Int("compressed", removed).
		Msg("Summarization replaced old entries")
	return summaryID, nil
}

// StartPeriodic schedules MaybeSummarize on the given cron spec, so
// compression also happens without write traffic. Stop with StopPeriodic.
func (s *Summarizer) StartPeriodic(spec string) error {
	if s.cron != nil {
		return errors.New("periodic summarization already running")
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.MaybeSummarize(context.Background()); err != nil {
			s.cfg.Logger.Debug().Err(err).Msg("Periodic summarization pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// StopPeriodic stops the periodic sweep, waiting for an in-flight run.
func (s *Summarizer) StopPeriodic() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

func isSummary(meta map[string]interface{}) bool {
	v, _ := meta["summary"].(bool)
	return v
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
