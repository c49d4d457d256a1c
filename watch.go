package kiln

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const rebuildDebounce = 300 * time.Millisecond

// Watch builds once, then rebuilds whenever the source tree changes.
// Events are debounced so editor save bursts trigger a single rebuild; the
// manifest keeps those rebuilds incremental. Watch returns when ctx is
// done or on a fatal setup failure.
func (p *Pipeline) Watch(ctx context.Context) error {
	if _, err := p.Run(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := p.watchTree(watcher); err != nil {
		return err
	}
	p.log.Info("watching for changes", zap.String("source", p.srcRoot))

	var timer *time.Timer
	rebuild := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if p.ignoreEvent(ev) {
				continue
			}
			// New directories need their own watch before anything
			// inside them can be seen.
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = watcher.Add(ev.Name)
				}
			}
			if timer == nil {
				timer = time.AfterFunc(rebuildDebounce, func() {
					select {
					case rebuild <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(rebuildDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Warn("watch error", zap.Error(err))

		case <-rebuild:
			timer = nil
			if _, err := p.Run(ctx); err != nil {
				return err
			}
		}
	}
}

// watchTree registers every non-excluded directory under the source root.
func (p *Pipeline) watchTree(watcher *fsnotify.Watcher) error {
	root, err := filepath.Abs(p.cfg.SourceDir)
	if err != nil {
		return fmt.Errorf("resolve source root: %w", err)
	}
	out, err := filepath.Abs(p.cfg.OutDir)
	if err != nil {
		return fmt.Errorf("resolve output root: %w", err)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path == out || skipDirNames[d.Name()] {
			return fs.SkipDir
		}
		if path != root {
			rel, err := filepath.Rel(root, path)
			if err == nil && excluded(filepath.ToSlash(rel), p.cfg.Excludes) {
				return fs.SkipDir
			}
		}
		return watcher.Add(path)
	})
}

// ignoreEvent filters events that must not trigger rebuilds: output
// writes, chmods, and excluded paths.
func (p *Pipeline) ignoreEvent(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return true
	}
	if p.outRoot != "" && (abs == p.outRoot || strings.HasPrefix(abs, p.outRoot+string(filepath.Separator))) {
		return true
	}
	if rel, err := filepath.Rel(p.srcRoot, abs); err == nil {
		return excluded(filepath.ToSlash(rel), p.cfg.Excludes)
	}
	return false
}
