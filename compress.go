package kiln

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Output extensions worth precompressing. Raster formats are already
// entropy-coded and excluded.
var compressibleExts = map[string]bool{
	".css": true, ".js": true, ".html": true, ".htm": true,
	".svg": true, ".map": true, ".xml": true, ".txt": true,
	".json": true, ".webmanifest": true,
}

// precompress writes .gz and .br siblings for one output file so a server
// can hand out precompressed bytes without doing the work per request. A
// sibling is only kept when it is actually smaller than the original.
func (p *Pipeline) precompress(path string) error {
	if !compressibleExts[strings.ToLower(filepath.Ext(path))] {
		return nil
	}
	in, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read for compression: %w", err)
	}
	if len(in) < p.cfg.PrecompressMinSize {
		return nil
	}

	var gz bytes.Buffer
	gw, err := gzip.NewWriterLevel(&gz, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := gw.Write(in); err != nil {
		return fmt.Errorf("gzip %s: %w", path, err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("gzip %s: %w", path, err)
	}
	if gz.Len() < len(in) {
		if err := os.WriteFile(path+".gz", gz.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s.gz: %w", path, err)
		}
	}

	var br bytes.Buffer
	bw := brotli.NewWriterLevel(&br, brotli.BestCompression)
	if _, err := bw.Write(in); err != nil {
		return fmt.Errorf("brotli %s: %w", path, err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("brotli %s: %w", path, err)
	}
	if br.Len() < len(in) {
		if err := os.WriteFile(path+".br", br.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s.br: %w", path, err)
		}
	}

	return nil
}
