package kiln

import (
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestIgnoreEvent(t *testing.T) {
	p, src, out := newTestPipeline(t, Config{Excludes: []string{"drafts/**"}})

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{
			"source write triggers rebuild",
			fsnotify.Event{Name: filepath.Join(src, "index.html"), Op: fsnotify.Write},
			false,
		},
		{
			"chmod ignored",
			fsnotify.Event{Name: filepath.Join(src, "index.html"), Op: fsnotify.Chmod},
			true,
		},
		{
			"output write ignored",
			fsnotify.Event{Name: filepath.Join(out, "index.html"), Op: fsnotify.Write},
			true,
		},
		{
			"output root itself ignored",
			fsnotify.Event{Name: out, Op: fsnotify.Create},
			true,
		},
		{
			"excluded path ignored",
			fsnotify.Event{Name: filepath.Join(src, "drafts", "wip.html"), Op: fsnotify.Write},
			true,
		},
		{
			"nested source write triggers rebuild",
			fsnotify.Event{Name: filepath.Join(src, "css", "site.css"), Op: fsnotify.Create},
			false,
		},
	}
	for _, tt := range tests {
		if got := p.ignoreEvent(tt.ev); got != tt.want {
			t.Errorf("%s: ignoreEvent = %t, want %t", tt.name, got, tt.want)
		}
	}
}

func TestWatchTreeSkipsExcludedDirs(t *testing.T) {
	p, src, _ := newTestPipeline(t, Config{Excludes: []string{"drafts/**"}})
	writeFile(t, filepath.Join(src, "css", "site.css"), "x")
	writeFile(t, filepath.Join(src, "drafts", "wip.html"), "x")
	writeFile(t, filepath.Join(src, "node_modules", "dep.js"), "x")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer watcher.Close()

	p.cfg.SourceDir = src
	p.cfg.OutDir = p.outRoot
	if err := p.watchTree(watcher); err != nil {
		t.Fatalf("watchTree failed: %v", err)
	}

	watched := make(map[string]bool)
	for _, w := range watcher.WatchList() {
		watched[w] = true
	}
	if !watched[src] {
		t.Error("source root not watched")
	}
	if !watched[filepath.Join(src, "css")] {
		t.Error("css directory not watched")
	}
	if watched[filepath.Join(src, "drafts")] {
		t.Error("excluded directory watched")
	}
	if watched[filepath.Join(src, "node_modules")] {
		t.Error("node_modules watched")
	}
}
