package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before Watch
// processes it.
const DefaultDebounce = 500 * time.Millisecond

// Watch processes *.txt files in dir whenever they are created or
// rewritten, until ctx is done. Bursts of writes to one file are collapsed
// into a single run after debounce. Cached artifacts are ignored since a
// changed file means changed data. onResult, when non-nil, receives every
// outcome.
func (p *Processor) Watch(ctx context.Context, dir string, debounce time.Duration, onResult func(*Result, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	p.out.Info("Watching %s for %s files", dir, InputExt)
	p.logger.Info("watching directory", zap.String("dir", dir))

	pending := make(map[string]time.Time)
	tick := time.NewTicker(debounce / 5)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("watch stopped", zap.String("dir", dir))
			if err := p.metrics.Write(p.cfg.SaveDir); err != nil {
				p.logger.Warn("metrics not written", zap.Error(err))
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, InputExt) {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				pending[ev.Name] = time.Now()
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				delete(pending, ev.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("watcher error", zap.Error(err))

		case now := <-tick.C:
			var ready []string
			for path, last := range pending {
				if now.Sub(last) >= debounce {
					ready = append(ready, path)
				}
			}
			for _, path := range ready {
				delete(pending, path)
				res, err := p.processFile(ctx, path, true)
				if err != nil {
					p.metrics.Failed()
					p.out.Warning("Error processing %s: %v", filepath.Base(path), err)
					p.logger.Warn("file failed", zap.String("file", path), zap.Error(err))
				}
				if onResult != nil {
					onResult(res, err)
				}
			}
		}
	}
}
