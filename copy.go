package kiln

import (
	"fmt"
	"io"
	"os"
)

// Extensions carried through verbatim besides HTML.
var otherExts = []string{
	".woff", ".woff2", ".ttf", ".otf",
	".ico", ".txt", ".webmanifest", ".json", ".xml", ".pdf",
	".mp4", ".webm",
}

var htmlExts = []string{".html", ".htm"}

// copyFile copies one source file byte-for-byte to its mirrored output
// path, creating destination directories as needed.
func (p *Pipeline) copyFile(kind Kind) func(string) ([]Asset, error) {
	return func(src string) ([]Asset, error) {
		dst, err := p.outPath(src)
		if err != nil {
			return nil, err
		}
		if err := p.ensureDir(dst); err != nil {
			return nil, err
		}

		in, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", src, err)
		}
		defer in.Close()

		out, err := os.Create(dst)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", dst, err)
		}
		n, err := io.Copy(out, in)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("copy %s: %w", src, err)
		}
		if err := out.Close(); err != nil {
			return nil, fmt.Errorf("close %s: %w", dst, err)
		}

		return []Asset{{Source: src, Path: dst, Kind: kind, Size: n}}, nil
	}
}
