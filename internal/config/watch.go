package config

import (
	"context"
	"os"
	"time"
)

// CatalogWatcher polls catalog.yaml and hands every successfully parsed
// revision to OnUpdate. A broken revision is reported through OnError and
// the previous one stays in force.
type CatalogWatcher struct {
	Path     string
	Interval time.Duration
	OnUpdate func(*Catalog)
	OnError  func(error)

	lastMod time.Time
}

// Start loads the catalog once, synchronously, and then polls in the
// background until ctx is done.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	if w.Path == "" {
		w.Path = "configs/catalog.yaml"
	}
	if w.Interval <= 0 {
		w.Interval = 30 * time.Second
	}

	if _, err := w.reload(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.Poll(); err != nil && w.OnError != nil {
					w.OnError(err)
				}
			}
		}
	}()
	return nil
}

// Poll reloads the catalog when the file changed since the last successful
// load. It reports whether a new revision was applied.
func (w *CatalogWatcher) Poll() (bool, error) {
	info, err := os.Stat(w.Path)
	if err != nil {
		return false, err
	}
	if !info.ModTime().After(w.lastMod) {
		return false, nil
	}
	return w.reload()
}

func (w *CatalogWatcher) reload() (bool, error) {
	info, err := os.Stat(w.Path)
	if err != nil {
		return false, err
	}
	cfg, err := LoadCatalog(w.Path)
	if err != nil {
		return false, err
	}
	w.lastMod = info.ModTime()
	if w.OnUpdate != nil {
		w.OnUpdate(cfg)
	}
	return true, nil
}
