package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger construction settings.
type Config struct {
	Level     string // trace, debug, info, warn, error
	File      string // log file path, empty for console only
	Console   bool
	Pretty    bool // human-readable console format
	Redaction bool // mask credential-looking values
	MaxSizeMB int  // rotate the file past this size
	MaxAgeDay int  // delete rotated files older than this
	Compress  bool // gzip rotated files
}

// DefaultConfig returns console logging at info level with redaction on.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
		MaxSizeMB: 50,
		MaxAgeDay: 7,
		Compress:  true,
	}
}

// New builds a zerolog.Logger from cfg. The returned closer owns the log
// file, when one is configured.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if cfg.Console {
		var console io.Writer = os.Stdout
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		writers = append(writers, console)
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotating, err := NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxAgeDay, cfg.Compress)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	if cfg.Redaction {
		writer = NewRedactor().Wrap(writer)
	}

	log := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
