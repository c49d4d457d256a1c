package kiln

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestManifest(t *testing.T) (*Manifest, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := OpenManifest(filepath.Join(dir, manifestName))
	if err != nil {
		t.Fatalf("OpenManifest failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, dir
}

func TestManifestUpToDate(t *testing.T) {
	m, dir := setupTestManifest(t)

	src := filepath.Join(dir, "photo.jpg")
	out1 := filepath.Join(dir, "photo.webp")
	out2 := filepath.Join(dir, "photo-640.webp")
	writeFile(t, out1, "webp bytes")
	writeFile(t, out2, "webp bytes")

	assets := []Asset{
		{Source: src, Path: out1, Kind: KindImage, Size: 10},
		{Source: src, Path: out2, Kind: KindImage, Size: 10},
	}
	if err := m.RecordAssets("run-1", src, "hash-a", assets); err != nil {
		t.Fatalf("RecordAssets failed: %v", err)
	}

	ok, err := m.UpToDate(src, "hash-a")
	if err != nil {
		t.Fatalf("UpToDate failed: %v", err)
	}
	if !ok {
		t.Error("recorded source with existing outputs should be up to date")
	}

	// A different hash invalidates the entry.
	ok, err = m.UpToDate(src, "hash-b")
	if err != nil {
		t.Fatalf("UpToDate failed: %v", err)
	}
	if ok {
		t.Error("changed hash should not be up to date")
	}

	// A deleted output invalidates the entry even with a matching hash.
	os.Remove(out2)
	ok, err = m.UpToDate(src, "hash-a")
	if err != nil {
		t.Fatalf("UpToDate failed: %v", err)
	}
	if ok {
		t.Error("missing output should not be up to date")
	}
}

func TestManifestUnknownSourceNeverUpToDate(t *testing.T) {
	m, dir := setupTestManifest(t)
	ok, err := m.UpToDate(filepath.Join(dir, "never-seen.css"), "hash")
	if err != nil {
		t.Fatalf("UpToDate failed: %v", err)
	}
	if ok {
		t.Error("unrecorded source reported as up to date")
	}
}

func TestManifestRecordAssetsReplaces(t *testing.T) {
	m, dir := setupTestManifest(t)
	src := filepath.Join(dir, "a.css")

	first := []Asset{
		{Source: src, Path: filepath.Join(dir, "a.css.out"), Kind: KindCSS, Size: 1},
		{Source: src, Path: filepath.Join(dir, "a.css.map"), Kind: KindCSS, Size: 2},
	}
	if err := m.RecordAssets("run-1", src, "h1", first); err != nil {
		t.Fatalf("RecordAssets failed: %v", err)
	}

	second := []Asset{
		{Source: src, Path: filepath.Join(dir, "a.css.out"), Kind: KindCSS, Size: 3},
	}
	if err := m.RecordAssets("run-2", src, "h2", second); err != nil {
		t.Fatalf("RecordAssets failed: %v", err)
	}

	all, err := m.ListAssets()
	if err != nil {
		t.Fatalf("ListAssets failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("assets = %d, want 1 after replacement: %+v", len(all), all)
	}
	if all[0].Size != 3 {
		t.Errorf("size = %d, want 3", all[0].Size)
	}
}

func TestManifestRunHistory(t *testing.T) {
	m, _ := setupTestManifest(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := m.RecordRun(RunRecord{
			ID:         string(rune('a' + i)),
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			DurationMs: int64(100 * (i + 1)),
			Files:      i,
			Errors:     0,
		})
		if err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}

	runs, err := m.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("run order = %s, %s; want c, b (newest first)", runs[0].ID, runs[1].ID)
	}
	if !runs[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("StartedAt = %v, want %v", runs[0].StartedAt, base.Add(2*time.Hour))
	}
}

func TestOpenManifestCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deep", "nested")
	m, err := OpenManifest(filepath.Join(dir, manifestName))
	if err != nil {
		t.Fatalf("OpenManifest failed: %v", err)
	}
	defer m.Close()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("manifest directory not created: %v", err)
	}
}
