package kiln

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

func TestPrecompressWritesSmallerSiblings(t *testing.T) {
	p, _, out := newTestPipeline(t, Config{})

	path := filepath.Join(out, "site.css")
	content := strings.Repeat("body{color:#333;margin:0}\n", 100)
	writeFile(t, path, content)

	if err := p.precompress(path); err != nil {
		t.Fatalf("precompress failed: %v", err)
	}

	for _, ext := range []string{".gz", ".br"} {
		fi, err := os.Stat(path + ext)
		if err != nil {
			t.Errorf("missing sibling %s: %v", ext, err)
			continue
		}
		if fi.Size() >= int64(len(content)) {
			t.Errorf("%s sibling not smaller: %d >= %d", ext, fi.Size(), len(content))
		}
	}

	// Both siblings must decompress back to the exact output bytes.
	gzData, err := os.ReadFile(path + ".gz")
	if err != nil {
		t.Fatalf("read gz sibling: %v", err)
	}
	gr, err := gzip.NewReader(bytes.NewReader(gzData))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	plain, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	if string(plain) != content {
		t.Error("gz sibling does not round-trip to original bytes")
	}

	brData, err := os.ReadFile(path + ".br")
	if err != nil {
		t.Fatalf("read br sibling: %v", err)
	}
	plain, err = io.ReadAll(brotli.NewReader(bytes.NewReader(brData)))
	if err != nil {
		t.Fatalf("brotli decode: %v", err)
	}
	if string(plain) != content {
		t.Error("br sibling does not round-trip to original bytes")
	}
}

func TestPrecompressSkipsSmallFiles(t *testing.T) {
	p, _, out := newTestPipeline(t, Config{})

	path := filepath.Join(out, "tiny.css")
	writeFile(t, path, "body{margin:0}")

	if err := p.precompress(path); err != nil {
		t.Fatalf("precompress failed: %v", err)
	}
	if _, err := os.Stat(path + ".gz"); !os.IsNotExist(err) {
		t.Error("gz sibling written for file below minimum size")
	}
	if _, err := os.Stat(path + ".br"); !os.IsNotExist(err) {
		t.Error("br sibling written for file below minimum size")
	}
}

func TestPrecompressSkipsBinaryFormats(t *testing.T) {
	p, _, out := newTestPipeline(t, Config{})

	path := filepath.Join(out, "photo.webp")
	writeFile(t, path, strings.Repeat("already entropy coded ", 50))

	if err := p.precompress(path); err != nil {
		t.Fatalf("precompress failed: %v", err)
	}
	if _, err := os.Stat(path + ".gz"); !os.IsNotExist(err) {
		t.Error("gz sibling written for non-compressible extension")
	}
}

func TestPrecompressMissingFile(t *testing.T) {
	p, _, out := newTestPipeline(t, Config{})
	if err := p.precompress(filepath.Join(out, "ghost.css")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
