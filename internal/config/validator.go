package config

import "fmt"

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true,
}

// Validate checks value ranges and cross-field constraints. It returns the
// first violation found.
func (c *Config) Validate() error {
	if c.Stores.MemoryPath == "" {
		return fmt.Errorf("stores.memory_path cannot be empty")
	}
	if c.Stores.KnowledgePath == "" {
		return fmt.Errorf("stores.knowledge_path cannot be empty")
	}
	if c.Stores.MemoryPath == c.Stores.KnowledgePath {
		return fmt.Errorf("memory and knowledge stores cannot share a file")
	}

	if c.Chunking.MaxChars <= 0 {
		return fmt.Errorf("chunking.max_chars must be positive, got %d", c.Chunking.MaxChars)
	}
	if c.Chunking.OverlapChars < 0 || c.Chunking.OverlapChars >= c.Chunking.MaxChars {
		return fmt.Errorf("chunking.overlap_chars must be in [0, max_chars), got %d", c.Chunking.OverlapChars)
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be in [0, 2], got %g", c.Generation.Temperature)
	}
	if c.Generation.TopP <= 0 || c.Generation.TopP > 1 {
		return fmt.Errorf("generation.top_p must be in (0, 1], got %g", c.Generation.TopP)
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.ContinueRounds < 0 {
		return fmt.Errorf("generation.continue_rounds cannot be negative, got %d", c.Generation.ContinueRounds)
	}

	if c.Summarize.Trigger <= 0 {
		return fmt.Errorf("summarize.trigger must be positive, got %d", c.Summarize.Trigger)
	}
	if c.Summarize.BatchSize <= 0 || c.Summarize.BatchSize > c.Summarize.Trigger {
		return fmt.Errorf("summarize.batch_size must be in (0, trigger], got %d", c.Summarize.BatchSize)
	}
	if c.Summarize.SnippetMax <= 0 {
		return fmt.Errorf("summarize.snippet_max must be positive, got %d", c.Summarize.SnippetMax)
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of trace/debug/info/warn/error, got %q", c.Logging.Level)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr cannot be empty when metrics are enabled")
	}
	if c.Watch.Enabled && c.Watch.Dir == "" {
		return fmt.Errorf("watch.dir cannot be empty when the watcher is enabled")
	}
	return nil
}
