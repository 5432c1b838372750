package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/mizunoki/ragna/pkg/store"
)

// DropWatcher ingests .md and .txt files that appear in a watched directory.
// Events are debounced per file so editors that write in bursts trigger one
// ingestion. The doc id derives from the filename, and re-drops replace the
// previous version.
type DropWatcher struct {
	engine   *Engine
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewDropWatcher starts watching dir. Files already present are not ingested;
// only new arrivals and rewrites are.
func NewDropWatcher(engine *Engine, dir string, logger zerolog.Logger) (*DropWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &DropWatcher{
		engine:   engine,
		watcher:  watcher,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}
	go w.run()

	logger.Info().Str("dir", dir).Msg("Drop folder watcher started")
	return w, nil
}

// Stop stops the watcher. Pending debounce timers are cancelled.
func (w *DropWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()

		w.mu.Lock()
		for _, t := range w.timers {
			t.Stop()
		}
		w.timers = map[string]*time.Timer{}
		w.mu.Unlock()
	})
	return err
}

func (w *DropWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ingestable(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Drop folder change detected")
				w.schedule(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Drop folder watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func (w *DropWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.ingestFile(path)
	})
}

func (w *DropWatcher) ingestFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Error().Err(err).Str("file", filepath.Base(path)).Msg("Drop folder read failed")
		return
	}

	name := filepath.Base(path)
	result, err := w.engine.IngestText(context.Background(), string(data), name, store.IngestOptions{
		DocID:   "drop:" + name,
		Replace: true,
		Meta:    map[string]interface{}{"origin": "drop_folder"},
	})
	if err != nil {
		w.logger.Error().Err(err).Str("file", name).Msg("Drop folder ingestion failed")
		return
	}
	w.logger.Info().
		Str("file", name).
		Str("doc_id", result.DocID).
		Int("chunks", result.Chunks).
		Bool("quarantined", result.Quarantined).
		Msg("Drop folder file ingested")
}

func ingestable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	}
	return false
}
