package kiln

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

// transformJS minifies one script: dead code and debugger statements go,
// console calls stay (unless configured away), identifiers are mangled for
// the configured browser targets, and an external source map is written as
// a sibling .map file.
func (p *Pipeline) transformJS(src string) ([]Asset, error) {
	in, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read js: %w", err)
	}

	drop := api.DropDebugger
	if p.cfg.JSDropConsole {
		drop |= api.DropConsole
	}

	res := api.Transform(string(in), api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: !p.cfg.JSKeepNames,
		Drop:              drop,
		LegalComments:     api.LegalCommentsNone,
		Sourcemap:         api.SourceMapExternal,
		Sourcefile:        filepath.Base(src),
		Engines:           esbuildEngines(p.cfg.Browsers),
	})
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("minify js: %s", res.Errors[0].Text)
	}
	// A script that minifies to nothing means the minifier swallowed the
	// file; surface it like any other transform failure.
	if len(bytes.TrimSpace(res.Code)) == 0 {
		return nil, fmt.Errorf("minify js: produced no output")
	}

	dst, err := p.outPath(src)
	if err != nil {
		return nil, err
	}
	a, err := p.writeAsset(dst, res.Code, KindJS, src)
	if err != nil {
		return nil, err
	}
	assets := []Asset{a}

	if len(res.Map) > 0 {
		m, err := p.writeAsset(dst+".map", res.Map, KindJS, src)
		if err != nil {
			return nil, err
		}
		assets = append(assets, m)
	}
	return assets, nil
}
