package kiln

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Browser names a minimum supported browser engine version. The set of
// browsers drives minification targets for CSS and JS.
type Browser struct {
	Name    string // chrome, edge, firefox, safari, ios
	Version string
}

// Config holds all tunables for a pipeline run. It is constructed once,
// completed by setDefaults, and never mutated afterwards.
type Config struct {
	SourceDir string // site source root (default ".")
	OutDir    string // output root (default "dist")
	SiteURL   string // canonical site URL; enables sitemap.xml when set

	// Exclusion globs, matched against slash-separated paths relative to
	// SourceDir. Exclusions always win over extension matches.
	Excludes []string

	// Image settings.
	MaxWidth         int   // clamped target width upper bound (default 1920)
	WebPQuality      int   // 0-100 (default 80)
	JPEGQuality      int   // 0-100 (default 80)
	PNGQuantQuality  [2]int // lossy PNG quantization quality range (default 65-90)
	PNGQuantSpeed    int   // recorded for parity with pngquant-style tools (default 3)
	ResponsiveWidths []int // extra webp renditions below the clamped width

	// Script/stylesheet settings. The zero value of each flag is the
	// reference behavior: identifiers are mangled, console calls survive.
	Browsers      []Browser // support matrix for CSS/JS targets
	JSKeepNames   bool      // disable identifier mangling
	JSDropConsole bool      // drop console.* calls

	// Precompression settings.
	SkipPrecompress    bool // disable .gz/.br siblings for text outputs
	PrecompressMinSize int  // skip outputs smaller than this (default 256 bytes)

	// Preview server settings.
	CacheMaxAge int // Cache-Control max-age in seconds for optimized assets

	// Concurrency bounds the per-kind worker pool. 1 processes files
	// sequentially in discovery order.
	Concurrency int
}

func (c *Config) setDefaults() {
	if c.SourceDir == "" {
		c.SourceDir = "."
	}
	if c.OutDir == "" {
		c.OutDir = "dist"
	}
	if c.Excludes == nil {
		c.Excludes = []string{"build/**", "data/**"}
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = 1920
	}
	if c.WebPQuality == 0 {
		c.WebPQuality = 80
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = 80
	}
	if c.PNGQuantQuality == [2]int{} {
		c.PNGQuantQuality = [2]int{65, 90}
	}
	if c.PNGQuantSpeed == 0 {
		c.PNGQuantSpeed = 3
	}
	if c.ResponsiveWidths == nil {
		c.ResponsiveWidths = []int{640, 1280}
	}
	if c.Browsers == nil {
		c.Browsers = []Browser{
			{Name: "chrome", Version: "58"},
			{Name: "edge", Version: "16"},
			{Name: "firefox", Version: "57"},
			{Name: "safari", Version: "9"},
		}
	}
	if c.PrecompressMinSize == 0 {
		c.PrecompressMinSize = 256
	}
	if c.CacheMaxAge == 0 {
		c.CacheMaxAge = 31536000
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
}

// fingerprint returns a stable hash of every setting that affects output
// bytes. It is folded into manifest source hashes so a config change
// invalidates cached entries.
func (c Config) fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "w=%d;wq=%d;jq=%d;pq=%v;ps=%d;rw=%v;keep=%t;drop=%t;",
		c.MaxWidth, c.WebPQuality, c.JPEGQuality, c.PNGQuantQuality,
		c.PNGQuantSpeed, c.ResponsiveWidths, c.JSKeepNames, c.JSDropConsole)
	for _, br := range c.Browsers {
		fmt.Fprintf(&b, "%s%s;", br.Name, br.Version)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Option configures additional Pipeline behavior.
type Option func(*Pipeline)

// WithLogger replaces the default structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		p.log = log
	}
}

// WithoutManifest disables the incremental-build manifest; every run then
// transforms every discovered file.
func WithoutManifest() Option {
	return func(p *Pipeline) {
		p.noManifest = true
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt returns the integer value of the environment variable key, or
// fallback if unset or unparsable.
func EnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
