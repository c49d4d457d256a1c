package kiln

import (
	"path/filepath"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello-world"},
		{"Go 1.22 Release Notes", "go-1-22-release-notes"},
		{"  spaced  ", "spaced"},
		{"already-slugged", "already-slugged"},
		{"UPPER", "upper"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		want     string
	}{
		{"https://example.com", nil, "https://example.com"},
		{"https://example.com", []string{"blog"}, "https://example.com/blog/"},
		{"https://example.com/sub", []string{"a", "b"}, "https://example.com/sub/a/b/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segments...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segments, got, tt.want)
		}
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "content")

	h1, err := hashFile(path, "fp-1")
	if err != nil {
		t.Fatalf("hashFile failed: %v", err)
	}
	h2, err := hashFile(path, "fp-1")
	if err != nil {
		t.Fatalf("hashFile failed: %v", err)
	}
	if h1 != h2 {
		t.Error("hash not stable for identical input")
	}

	// Config fingerprint participates in the hash, so a settings change
	// invalidates cached entries.
	h3, err := hashFile(path, "fp-2")
	if err != nil {
		t.Fatalf("hashFile failed: %v", err)
	}
	if h1 == h3 {
		t.Error("hash unchanged for different fingerprint")
	}

	writeFile(t, path, "different content")
	h4, err := hashFile(path, "fp-1")
	if err != nil {
		t.Fatalf("hashFile failed: %v", err)
	}
	if h1 == h4 {
		t.Error("hash unchanged for different content")
	}
}

func TestSavings(t *testing.T) {
	tests := []struct {
		original, optimized int64
		want                float64
	}{
		{100, 50, 0.5},
		{100, 100, 0},
		{100, 150, -0.5},
		{0, 10, 0},
		{-5, 10, 0},
	}
	for _, tt := range tests {
		if got := savings(tt.original, tt.optimized); got != tt.want {
			t.Errorf("savings(%d, %d) = %v, want %v", tt.original, tt.optimized, got, tt.want)
		}
	}
}
