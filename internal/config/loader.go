package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads and writes the ragna config file.
type Loader struct {
	configPath string
}

// NewLoader creates a loader. An empty path means ~/.ragna/ragna.json.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load reads the configuration, layering file values and RAGNA_* environment
// variables over the defaults. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("cannot determine config path")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("RAGNA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	l.applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills paths that derive from the data directory.
func (l *Loader) applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DataDir = filepath.Join(home, ".ragna")
		}
	}
	if cfg.Stores.MemoryPath == "" {
		cfg.Stores.MemoryPath = filepath.Join(cfg.DataDir, "memory.json")
	}
	if cfg.Stores.KnowledgePath == "" {
		cfg.Stores.KnowledgePath = filepath.Join(cfg.DataDir, "knowledge.json")
	}
	if cfg.Watch.Dir == "" {
		cfg.Watch.Dir = filepath.Join(cfg.DataDir, "drop")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "ragna.log")
	}
}

// Save writes the configuration back to the config file.
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("cannot determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("data_dir", cfg.DataDir)
	v.Set("stores", cfg.Stores)
	v.Set("chunking", cfg.Chunking)
	v.Set("embedding", cfg.Embedding)
	v.Set("generation", cfg.Generation)
	v.Set("sanitize", cfg.Sanitize)
	v.Set("summarize", cfg.Summarize)
	v.Set("watch", cfg.Watch)
	v.Set("metrics", cfg.Metrics)
	v.Set("logging", cfg.Logging)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			return nil
		}
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the resolved config file path.
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ragna", "ragna.json")
}

// Load is a convenience wrapper over a one-shot loader.
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
