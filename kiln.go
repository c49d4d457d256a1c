// Package kiln is a build-time asset optimization pipeline for static
// sites. It walks a source tree, transforms images, stylesheets and
// scripts into optimized production artifacts, copies everything else
// through verbatim, and reports aggregate results with structured JSON
// logging. A failed file never aborts the run; it becomes one error
// record and the remaining files are still attempted.
package kiln

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const manifestName = ".kiln.db"

// Pipeline wires together discovery, the per-kind transformers, the
// incremental-build manifest and the reporter.
type Pipeline struct {
	cfg        Config
	log        *zap.Logger
	noManifest bool

	srcRoot  string
	outRoot  string
	manifest *Manifest

	dirMu    sync.Mutex
	madeDirs map[string]bool
}

// New creates a Pipeline with the given configuration.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.setDefaults()
	p := &Pipeline{
		cfg:      cfg,
		log:      NewLogger(),
		madeDirs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Close releases the manifest. Safe to call after any number of runs.
func (p *Pipeline) Close() error {
	if p.manifest != nil {
		return p.manifest.Close()
	}
	return nil
}

// kindPlan binds one transform category to its extension set and
// transformer.
type kindPlan struct {
	kind      Kind
	exts      []string
	transform func(string) ([]Asset, error)
}

func (p *Pipeline) plans() []kindPlan {
	return []kindPlan{
		{KindImage, imageExts, p.transformImage},
		{KindCSS, []string{".css"}, p.transformCSS},
		{KindJS, []string{".js", ".mjs"}, p.transformJS},
		{KindHTML, htmlExts, p.copyFile(KindHTML)},
		{KindOther, otherExts, p.copyFile(KindOther)},
	}
}

// Run executes one full build. The returned error is non-nil only for
// fatal setup failures (inaccessible source root, unusable output root or
// manifest); per-file failures are collected in the summary instead.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	srcRoot, err := filepath.Abs(p.cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}
	info, err := os.Stat(srcRoot)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", srcRoot)
	}
	outRoot, err := filepath.Abs(p.cfg.OutDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}
	if err := os.MkdirAll(outRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	p.srcRoot, p.outRoot = srcRoot, outRoot

	if !p.noManifest && p.manifest == nil {
		m, err := OpenManifest(filepath.Join(outRoot, manifestName))
		if err != nil {
			return nil, fmt.Errorf("open manifest: %w", err)
		}
		p.manifest = m
	}

	runID := uuid.NewString()
	log := p.log.With(zap.String("runId", runID))
	log.Info("build started",
		zap.String("source", srcRoot),
		zap.String("output", outRoot),
		zap.Int("concurrency", p.cfg.Concurrency),
	)

	t := newTally(runID)
	fingerprint := p.cfg.fingerprint()

	for _, plan := range p.plans() {
		files, err := discover(srcRoot, outRoot, plan.exts, p.cfg.Excludes)
		if err != nil {
			return nil, err
		}
		var g errgroup.Group
		g.SetLimit(p.cfg.Concurrency)
		for _, src := range files {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				p.processFile(log, t, plan, src, runID, fingerprint)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	if p.cfg.SiteURL != "" {
		if err := p.writeSitemap(t.htmlPages()); err != nil {
			t.addError(KindHTML, filepath.Join(outRoot, "sitemap.xml"), err)
			log.Error("sitemap failed", zap.Error(err))
		} else {
			log.Info("sitemap written", zap.Int("pages", len(t.htmlPages())))
		}
	}

	sum := t.finalize(time.Since(start))
	if p.manifest != nil {
		if err := p.manifest.RecordRun(RunRecord{
			ID:         runID,
			StartedAt:  start.UTC(),
			DurationMs: sum.Duration.Milliseconds(),
			Files:      sum.Files(),
			Errors:     len(sum.Errors),
		}); err != nil {
			log.Warn("record run", zap.Error(err))
		}
	}
	p.logSummary(log, sum)
	return sum, nil
}

// processFile runs one source file through its transformer and records the
// outcome. Errors stop here; they never propagate past the per-file
// boundary.
func (p *Pipeline) processFile(log *zap.Logger, t *tally, plan kindPlan, src, runID, fingerprint string) {
	start := time.Now()

	var hash string
	if p.manifest != nil {
		h, err := hashFile(src, fingerprint)
		if err == nil {
			hash = h
			if ok, err := p.manifest.UpToDate(src, h); err == nil && ok {
				t.cached()
				if plan.kind == KindHTML {
					t.addPage(src)
				}
				log.Info("cache hit",
					zap.String("path", src),
					zap.String("kind", string(plan.kind)),
				)
				return
			}
		}
	}

	assets, err := plan.transform(src)
	switch {
	case errors.Is(err, errUnsupportedFormat):
		t.warning()
		log.Warn("unsupported format, skipped",
			zap.String("path", src),
			zap.String("kind", string(plan.kind)),
		)
	case err != nil:
		wrapped := fmt.Errorf("optimize %s: %w", src, err)
		t.addError(plan.kind, src, wrapped)
		log.Error("transform failed",
			zap.String("path", src),
			zap.String("kind", string(plan.kind)),
			zap.Error(wrapped),
		)
	default:
		// A failed supplement (precompression, manifest write) demotes the
		// file to an error record; it is not counted as transformed.
		if !p.cfg.SkipPrecompress {
			for _, a := range assets {
				if err := p.precompress(a.Path); err != nil {
					t.addError(plan.kind, src, err)
					log.Error("precompress failed",
						zap.String("path", a.Path),
						zap.Error(err),
					)
					return
				}
			}
		}
		if p.manifest != nil && hash != "" {
			if err := p.manifest.RecordAssets(runID, src, hash, assets); err != nil {
				t.addError(plan.kind, src, err)
				log.Error("record assets", zap.String("path", src), zap.Error(err))
				return
			}
		}

		var outBytes int64
		for _, a := range assets {
			outBytes += a.Size
		}
		var origSize int64
		if fi, err := os.Stat(src); err == nil {
			origSize = fi.Size()
		}
		t.success(plan.kind, outBytes)
		if plan.kind == KindHTML {
			t.addPage(src)
		}
		log.Info("optimized",
			zap.String("path", src),
			zap.String("kind", string(plan.kind)),
			zap.Int("outputs", len(assets)),
			zap.Int64("originalSize", origSize),
			zap.Int64("optimizedSize", outBytes),
			zap.Float64("savings", savings(origSize, outBytes)),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// outPath mirrors a source file's relative path under the output root.
func (p *Pipeline) outPath(src string) (string, error) {
	rel, err := filepath.Rel(p.srcRoot, src)
	if err != nil {
		return "", fmt.Errorf("relative path for %s: %w", src, err)
	}
	return filepath.Join(p.outRoot, rel), nil
}

// ensureDir creates the parent directory of path on demand. Creation is
// idempotent and logged once per directory.
func (p *Pipeline) ensureDir(path string) error {
	dir := filepath.Dir(path)
	p.dirMu.Lock()
	defer p.dirMu.Unlock()
	if p.madeDirs[dir] {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
		p.log.Info("created output directory", zap.String("path", dir))
	}
	p.madeDirs[dir] = true
	return nil
}

// writeAsset writes one output file and returns its asset record.
func (p *Pipeline) writeAsset(path string, data []byte, kind Kind, src string) (Asset, error) {
	if err := p.ensureDir(path); err != nil {
		return Asset{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Asset{}, fmt.Errorf("write %s: %w", path, err)
	}
	return Asset{Source: src, Path: path, Kind: kind, Size: int64(len(data))}, nil
}
