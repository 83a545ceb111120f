package gositemaptree

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// pageStore spills the page list of one page sitemap to a scratch file
// in the OS temporary directory and reloads it on every access, keeping
// resident memory bounded regardless of sitemap size.
//
// The store owns the file: Close removes it, and a GC cleanup removes
// it if the owner is collected without Close being called. A missing
// file at release time is logged, not raised.
type pageStore struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	cleanup runtime.Cleanup
}

func newPageStore(pages []Page, logger *slog.Logger) (*pageStore, error) {
	if pages == nil {
		pages = []Page{}
	}
	data, err := sonic.Marshal(pages)
	if err != nil {
		return nil, &ErrPageStore{Err: err}
	}
	path := filepath.Join(os.TempDir(), "sitemap-pages-"+uuid.NewString()+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, &ErrPageStore{Path: path, Err: err}
	}
	store := &pageStore{path: path, logger: logger}
	store.cleanup = runtime.AddCleanup(store, func(p string) {
		_ = os.Remove(p)
	}, path)
	return store, nil
}

// Pages reloads the page list from the scratch file.
func (s *pageStore) Pages() ([]Page, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &ErrPageStore{Path: s.path, Err: err}
	}
	var pages []Page
	if err := sonic.Unmarshal(data, &pages); err != nil {
		return nil, &ErrPageStore{Path: s.path, Err: err}
	}
	return pages, nil
}

// Close releases the scratch file. It is idempotent; a file that is
// already gone is logged at warning level and not treated as an error.
func (s *pageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("page store scratch file already removed", "path", s.path)
			return nil
		}
		return &ErrPageStore{Path: s.path, Err: err}
	}
	return nil
}
