package kiln

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "index.html"), "<html><body>home</body></html>")
	writeFile(t, filepath.Join(dir, "css", "site.css"), "body{margin:0}")

	s, err := NewServer(Config{}, dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func (s *Server) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestServerServesStaticFiles(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := s.get(t, "/index.html")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "home") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServerCacheHeaders(t *testing.T) {
	s, _ := setupTestServer(t)

	tests := []struct {
		path string
		want string
	}{
		{"/css/site.css", "public, max-age=31536000, immutable"},
		{"/index.html", "public, max-age=3600"},
		{"/_kiln/", "no-store"},
	}
	for _, tt := range tests {
		rec := s.get(t, tt.path)
		if got := rec.Header().Get("Cache-Control"); got != tt.want {
			t.Errorf("Cache-Control for %s = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestServerHidesManifest(t *testing.T) {
	s, _ := setupTestServer(t)

	rec := s.get(t, "/"+manifestName)
	if rec.Code != http.StatusNotFound {
		t.Errorf("manifest request status = %d, want 404", rec.Code)
	}
}

func TestServerReportPage(t *testing.T) {
	s, _ := setupTestServer(t)

	if err := s.cache.manifest.RecordRun(RunRecord{
		ID:         "abcdef1234567890",
		StartedAt:  time.Now().UTC(),
		DurationMs: 1200,
		Files:      7,
		Errors:     0,
	}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	rec := s.get(t, "/_kiln/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Build report") {
		t.Errorf("report page missing title: %q", body)
	}
	if !strings.Contains(body, "abcdef12") {
		t.Errorf("report page missing run id: %q", body)
	}
}

func TestServerMissingRoot(t *testing.T) {
	if _, err := NewServer(Config{}, filepath.Join(t.TempDir(), "nope"), zap.NewNop()); err == nil {
		t.Fatal("expected error for missing serve root")
	}
}

func TestReportCacheTTL(t *testing.T) {
	m, _ := setupTestManifest(t)
	c := newReportCache(m, time.Hour)

	runs, _, err := c.load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("runs = %d, want 0", len(runs))
	}

	// A run recorded after the first load stays invisible until the TTL
	// expires.
	if err := m.RecordRun(RunRecord{ID: "r1", StartedAt: time.Now()}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	runs, _, err = c.load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("cached load returned fresh data before TTL expiry")
	}

	c.fetched = time.Now().Add(-2 * time.Hour)
	runs, _, err = c.load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expired cache not reloaded: runs = %d, want 1", len(runs))
	}
}

func TestIsAssetPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/img/hero.webp", true},
		{"/css/site.css", true},
		{"/js/app.js.map", true},
		{"/fonts/a.WOFF2", true},
		{"/index.html", false},
		{"/about/", false},
		{"/sitemap.xml", false},
	}
	for _, tt := range tests {
		if got := isAssetPath(tt.path); got != tt.want {
			t.Errorf("isAssetPath(%q) = %t, want %t", tt.path, got, tt.want)
		}
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 kB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.n); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
