package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"faqbridge/internal/models"
)

// Embedder turns texts into vectors, index-aligned with the input.
// Satisfied by LLMService; tests plug in fakes.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// FAQService owns the catalog of question/answer pairs and, in online mode,
// one embedding vector per entry. The catalog is replaced wholesale under a
// write lock on every (re)load; readers only ever see a complete generation.
type FAQService struct {
	mu      sync.RWMutex
	entries []models.FaqEntry
	vectors [][]float64

	path     string
	embedder Embedder // nil in offline mode

	watcher *fsnotify.Watcher
	cron    *cron.Cron
}

// NewFAQService creates the catalog index. embedder may be nil (offline mode);
// when set, Reload computes one vector per entry.
func NewFAQService(path string, embedder Embedder) *FAQService {
	return &FAQService{path: path, embedder: embedder}
}

// Reload reads the catalog file and swaps the index atomically. On any
// failure the index is reset to empty rather than left half-built; the
// caller logs a warning and the service keeps running without a catalog.
func (s *FAQService) Reload(ctx context.Context) error {
	entries, vectors, err := s.build(ctx)
	if err != nil {
		s.mu.Lock()
		s.entries = nil
		s.vectors = nil
		s.mu.Unlock()
		faqCatalogSize.Set(0)
		return err
	}

	s.mu.Lock()
	s.entries = entries
	s.vectors = vectors
	s.mu.Unlock()

	faqCatalogSize.Set(float64(len(entries)))
	faqReloadsTotal.Inc()
	log.Printf("✅ [FAQ] Catalog loaded: %d entries from %s", len(entries), s.path)
	return nil
}

func (s *FAQService) build(ctx context.Context) ([]models.FaqEntry, [][]float64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var entries []models.FaqEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	// Drop incomplete records instead of failing the whole file
	valid := entries[:0]
	for _, e := range entries {
		if e.Question != "" && e.Answer != "" {
			valid = append(valid, e)
		}
	}
	entries = valid

	if s.embedder == nil || len(entries) == 0 {
		return entries, nil, nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Question + "\n" + e.Answer
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed catalog: %w", err)
	}
	if len(vectors) != len(entries) {
		return nil, nil, fmt.Errorf("embedding count mismatch: %d vectors for %d entries", len(vectors), len(entries))
	}

	return entries, vectors, nil
}

// Snapshot returns the current catalog generation. The returned slices are
// never mutated after publication, so holding them across a reload is safe.
func (s *FAQService) Snapshot() ([]models.FaqEntry, [][]float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries, s.vectors
}

// Count returns the number of loaded catalog entries
func (s *FAQService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Watch reloads the catalog when the file changes on disk. Editors often
// replace files via rename, so the parent directory is watched and events
// are debounced before triggering a reload.
func (s *FAQService) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = watcher

	go func() {
		var debounce *time.Timer
		target := filepath.Clean(s.path)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("🔄 [FAQ] Catalog file changed, reloading...")
					if err := s.Reload(ctx); err != nil {
						log.Printf("⚠️ [FAQ] Reload after file change failed: %v", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️ [FAQ] Watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("👀 [FAQ] Watching %s for changes", s.path)
	return nil
}

// ScheduleReload registers a cron-driven reload, refreshing embeddings in
// online mode. spec uses the standard 5-field cron format.
func (s *FAQService) ScheduleReload(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		log.Printf("⏰ [FAQ] Scheduled catalog reload")
		if err := s.Reload(ctx); err != nil {
			log.Printf("⚠️ [FAQ] Scheduled reload failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reload cron spec %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	log.Printf("⏰ [FAQ] Scheduled reload enabled: %s", spec)
	return nil
}

// Close stops the file watcher and the reload scheduler
func (s *FAQService) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.cron != nil {
		s.cron.Stop()
	}
}
