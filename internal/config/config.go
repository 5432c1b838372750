package config

// Config is the full ragna configuration.
type Config struct {
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	Stores     StoresConfig     `json:"stores" mapstructure:"stores"`
	Chunking   ChunkingConfig   `json:"chunking" mapstructure:"chunking"`
	Embedding  EmbeddingConfig  `json:"embedding" mapstructure:"embedding"`
	Generation GenerationConfig `json:"generation" mapstructure:"generation"`
	Sanitize   SanitizeConfig   `json:"sanitize" mapstructure:"sanitize"`
	Summarize  SummarizeConfig  `json:"summarize" mapstructure:"summarize"`
	Watch      WatchConfig      `json:"watch" mapstructure:"watch"`
	Metrics    MetricsConfig    `json:"metrics" mapstructure:"metrics"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// StoresConfig holds the persistent store locations.
type StoresConfig struct {
	MemoryPath        string `json:"memory_path" mapstructure:"memory_path"`
	KnowledgePath     string `json:"knowledge_path" mapstructure:"knowledge_path"`
	QuarantineEnabled bool   `json:"quarantine_enabled" mapstructure:"quarantine_enabled"`
}

// ChunkingConfig holds document splitting bounds.
type ChunkingConfig struct {
	MaxChars     int `json:"max_chars" mapstructure:"max_chars"`
	OverlapChars int `json:"overlap_chars" mapstructure:"overlap_chars"`
}

// EmbeddingConfig points to an OpenAI-compatible embeddings endpoint. An
// empty BaseURL disables embedding, which degrades search instead of
// failing startup.
type EmbeddingConfig struct {
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	Model          string `json:"model" mapstructure:"model"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// GenerationConfig holds chat completion settings.
type GenerationConfig struct {
	BaseURL        string  `json:"base_url" mapstructure:"base_url"`
	APIKey         string  `json:"api_key" mapstructure:"api_key"`
	Model          string  `json:"model" mapstructure:"model"`
	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	TopP           float64 `json:"top_p" mapstructure:"top_p"`
	MaxTokens      int     `json:"max_tokens" mapstructure:"max_tokens"`
	AutoContinue   bool    `json:"auto_continue" mapstructure:"auto_continue"`
	ContinueRounds int     `json:"continue_rounds" mapstructure:"continue_rounds"`
}

// SanitizeConfig toggles the PII redactor on the memory write path.
type SanitizeConfig struct {
	PIIRedaction bool `json:"pii_redaction" mapstructure:"pii_redaction"`
}

// SummarizeConfig holds memory compression thresholds.
type SummarizeConfig struct {
	Trigger    int    `json:"trigger" mapstructure:"trigger"`
	BatchSize  int    `json:"batch_size" mapstructure:"batch_size"`
	SnippetMax int    `json:"snippet_max" mapstructure:"snippet_max"`
	CronSpec   string `json:"cron_spec" mapstructure:"cron_spec"`
}

// WatchConfig holds the drop-folder watcher settings.
type WatchConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// LoggingConfig holds logger construction settings.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Stores: StoresConfig{
			QuarantineEnabled: true,
		},
		Chunking: ChunkingConfig{
			MaxChars:     1200,
			OverlapChars: 200,
		},
		Embedding: EmbeddingConfig{
			Model:          "all-MiniLM-L6-v2",
			TimeoutSeconds: 30,
		},
		Generation: GenerationConfig{
			BaseURL:        "http://127.0.0.1:1234/v1",
			Model:          "gpt-3.5-turbo",
			Temperature:    0.7,
			TopP:           0.95,
			MaxTokens:      2048,
			AutoContinue:   true,
			ContinueRounds: 2,
		},
		Sanitize: SanitizeConfig{
			PIIRedaction: true,
		},
		Summarize: SummarizeConfig{
			Trigger:    50,
			BatchSize:  15,
			SnippetMax: 300,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9091",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
