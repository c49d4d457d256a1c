package kiln

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/eringen/kiln/views"
)

// Server previews an optimized output tree locally with roughly the cache
// and compression behavior a production host would apply, plus a build
// report page at /_kiln/ backed by the manifest.
type Server struct {
	cfg   Config
	log   *zap.Logger
	dir   string
	echo  *echo.Echo
	cache *reportCache
}

// NewServer creates a preview server for the output tree rooted at dir.
func NewServer(cfg Config, dir string, log *zap.Logger) (*Server, error) {
	cfg.setDefaults()
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve serve root: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("serve root: %w", err)
	}

	manifest, err := OpenManifest(filepath.Join(abs, manifestName))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	s := &Server{
		cfg:   cfg,
		log:   log,
		dir:   abs,
		echo:  echo.New(),
		cache: newReportCache(manifest, time.Minute),
	}
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{Level: 5}))
	e.Use(s.cacheControl)

	// The manifest is build metadata, not a servable asset.
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.Contains(c.Request().URL.Path, manifestName) {
				return echo.NewHTTPError(http.StatusNotFound)
			}
			return next(c)
		}
	})

	e.GET("/_kiln/", s.handleReport)
	e.Static("/", s.dir)
}

// Start serves until the listener fails or the server is shut down.
func (s *Server) Start(addr string) error {
	s.log.Info("preview server started",
		zap.String("addr", addr),
		zap.String("dir", s.dir),
	)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts the server down and releases the manifest.
func (s *Server) Close() error {
	s.cache.manifest.Close()
	return s.echo.Close()
}

// cacheControl mirrors production cache headers: optimized assets are
// immutable for Config.CacheMaxAge, pages revalidate hourly, the report
// page is never cached.
func (s *Server) cacheControl(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/_kiln"):
			c.Response().Header().Set("Cache-Control", "no-store")
		case isAssetPath(path):
			c.Response().Header().Set("Cache-Control",
				fmt.Sprintf("public, max-age=%d, immutable", s.cfg.CacheMaxAge))
		case path == "/sitemap.xml" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=86400")
		default:
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		}
		return next(c)
	}
}

var assetPathExts = map[string]bool{
	".webp": true, ".jpg": true, ".jpeg": true, ".png": true, ".svg": true,
	".css": true, ".js": true, ".map": true, ".woff": true, ".woff2": true,
	".ttf": true, ".otf": true, ".ico": true,
}

func isAssetPath(path string) bool {
	return assetPathExts[strings.ToLower(filepath.Ext(path))]
}

func (s *Server) handleReport(c echo.Context) error {
	runs, assets, err := s.cache.load()
	if err != nil {
		return err
	}

	runViews := make([]views.RunView, 0, len(runs))
	for _, r := range runs {
		runViews = append(runViews, views.RunView{
			ID:       r.ID,
			Started:  r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			Duration: (time.Duration(r.DurationMs) * time.Millisecond).String(),
			Files:    r.Files,
			Errors:   r.Errors,
		})
	}
	assetViews := make([]views.AssetView, 0, len(assets))
	for _, a := range assets {
		rel, err := filepath.Rel(s.dir, a.Path)
		if err != nil {
			rel = a.Path
		}
		assetViews = append(assetViews, views.AssetView{
			Path: filepath.ToSlash(rel),
			Kind: string(a.Kind),
			Size: humanSize(a.Size),
		})
	}

	site := views.SiteInfo{URL: s.cfg.SiteURL}
	return render(c, http.StatusOK, views.Report(site, runViews, assetViews))
}

// render writes a templ component as an HTML response.
func render(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f kB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// reportCache keeps manifest reads off the request path for a minute at a
// time. Same shape as a TTL read-through cache: read lock fast path, write
// lock reload.
type reportCache struct {
	mu       sync.RWMutex
	runs     []RunRecord
	assets   []Asset
	fetched  time.Time
	ttl      time.Duration
	manifest *Manifest
}

func newReportCache(m *Manifest, ttl time.Duration) *reportCache {
	return &reportCache{manifest: m, ttl: ttl}
}

func (c *reportCache) valid() bool {
	return !c.fetched.IsZero() && time.Since(c.fetched) < c.ttl
}

func (c *reportCache) load() ([]RunRecord, []Asset, error) {
	c.mu.RLock()
	if c.valid() {
		runs, assets := c.runs, c.assets
		c.mu.RUnlock()
		return runs, assets, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.runs, c.assets, nil
	}
	runs, err := c.manifest.RecentRuns(20)
	if err != nil {
		return nil, nil, err
	}
	assets, err := c.manifest.ListAssets()
	if err != nil {
		return nil, nil, err
	}
	c.runs = runs
	c.assets = assets
	c.fetched = time.Now()
	return runs, assets, nil
}
