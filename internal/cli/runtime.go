package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/mizunoki/ragna/internal/config"
	"github.com/mizunoki/ragna/internal/logger"
	"github.com/mizunoki/ragna/pkg/chunk"
	"github.com/mizunoki/ragna/pkg/embedding"
	"github.com/mizunoki/ragna/pkg/engine"
	"github.com/mizunoki/ragna/pkg/llm"
	"github.com/mizunoki/ragna/pkg/sanitize"
	"github.com/mizunoki/ragna/pkg/store"
	"github.com/mizunoki/ragna/pkg/summarizer"
)

// runtime wires the full stack from configuration. Every subcommand that
// touches the stores or the backend builds one and closes it on exit.
type runtime struct {
	cfg       *config.Config
	log       zerolog.Logger
	logCloser io.Closer
	memory    *store.EntryStore
	knowledge *store.DocumentStore
	client    *llm.Client
	summ      *summarizer.Summarizer
	engine    *engine.Engine
}

func newRuntime() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	// Logs go to the file sink only; stdout belongs to command output.
	log, logCloser, err := logger.New(logger.Config{
		Level:     level,
		File:      cfg.Logging.File,
		Redaction: true,
		MaxSizeMB: 50,
		MaxAgeDay: 7,
		Compress:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	embedder := embedding.NewHTTPProvider(embedding.HTTPConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
		Timeout: time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})

	memory, err := store.NewEntryStore(store.EntryStoreConfig{
		Path:     cfg.Stores.MemoryPath,
		Embedder: embedder,
		Logger:   log.With().Str("component", "memory").Logger(),
	})
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	knowledge, err := store.NewDocumentStore(store.DocumentStoreConfig{
		Path:     cfg.Stores.KnowledgePath,
		Embedder: embedder,
		ChunkOptions: chunk.Options{
			MaxChars:     cfg.Chunking.MaxChars,
			OverlapChars: cfg.Chunking.OverlapChars,
		},
		QuarantineEnabled: cfg.Stores.QuarantineEnabled,
		Logger:            log.With().Str("component", "knowledge").Logger(),
	})
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open knowledge store: %w", err)
	}

	client := llm.New(llm.Config{
		BaseURL:      cfg.Generation.BaseURL,
		APIKey:       cfg.Generation.APIKey,
		Model:        cfg.Generation.Model,
		Temperature:  cfg.Generation.Temperature,
		TopP:         cfg.Generation.TopP,
		MaxTokens:    cfg.Generation.MaxTokens,
		AutoContinue: cfg.Generation.AutoContinue,
		MaxRounds:    cfg.Generation.ContinueRounds,
		Logger:       log.With().Str("component", "llm").Logger(),
	}, nil)

	summ, err := summarizer.New(memory, client, summarizer.Config{
		Trigger:    cfg.Summarize.Trigger,
		BatchSize:  cfg.Summarize.BatchSize,
		SnippetMax: cfg.Summarize.SnippetMax,
		Logger:     log.With().Str("component", "summarizer").Logger(),
	})
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("init summarizer: %w", err)
	}

	redactor := &sanitize.Redactor{}
	if cfg.Sanitize.PIIRedaction {
		redactor = sanitize.NewRedactor()
	}

	eng, err := engine.New(engine.Config{
		Memory:     memory,
		Knowledge:  knowledge,
		Client:     client,
		Summarizer: summ,
		Redactor:   redactor,
		Logger:     log.With().Str("component", "engine").Logger(),
	})
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	return &runtime{
		cfg:       cfg,
		log:       log,
		logCloser: logCloser,
		memory:    memory,
		knowledge: knowledge,
		client:    client,
		summ:      summ,
		engine:    eng,
	}, nil
}

func (r *runtime) Close() {
	if r.logCloser != nil {
		r.logCloser.Close()
	}
}
