package kiln

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/eringen/kiln/prefix"
)

// transformCSS vendor-prefixes one stylesheet for the configured browser
// matrix, minifies it, and writes the result plus an external source map.
func (p *Pipeline) transformCSS(src string) ([]Asset, error) {
	in, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read css: %w", err)
	}

	prefixed := prefix.Apply(string(in))

	res := api.Transform(prefixed, api.TransformOptions{
		Loader:           api.LoaderCSS,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		Sourcemap:        api.SourceMapExternal,
		Sourcefile:       filepath.Base(src),
		Engines:          esbuildEngines(p.cfg.Browsers),
	})
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("minify css: %s", res.Errors[0].Text)
	}

	dst, err := p.outPath(src)
	if err != nil {
		return nil, err
	}
	a, err := p.writeAsset(dst, res.Code, KindCSS, src)
	if err != nil {
		return nil, err
	}
	assets := []Asset{a}

	if len(res.Map) > 0 {
		m, err := p.writeAsset(dst+".map", res.Map, KindCSS, src)
		if err != nil {
			return nil, err
		}
		assets = append(assets, m)
	}
	return assets, nil
}

// esbuildEngines translates the config browser matrix into esbuild
// targets. Unknown browser names are skipped rather than failing the run.
func esbuildEngines(browsers []Browser) []api.Engine {
	names := map[string]api.EngineName{
		"chrome":  api.EngineChrome,
		"edge":    api.EngineEdge,
		"firefox": api.EngineFirefox,
		"safari":  api.EngineSafari,
		"ios":     api.EngineIOS,
		"node":    api.EngineNode,
	}
	var engines []api.Engine
	for _, b := range browsers {
		name, ok := names[b.Name]
		if !ok {
			continue
		}
		engines = append(engines, api.Engine{Name: name, Version: b.Version})
	}
	return engines
}
