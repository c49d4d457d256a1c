package kiln

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// writeSitemap emits sitemap.xml into the output root listing every
// processed HTML page, with lastmod taken from the source file's mtime.
func (p *Pipeline) writeSitemap(pages []string) error {
	urls := make([]sitemapURL, 0, len(pages))
	for _, src := range pages {
		rel, err := filepath.Rel(p.srcRoot, src)
		if err != nil {
			return fmt.Errorf("sitemap: %w", err)
		}
		var lastMod string
		if fi, err := os.Stat(src); err == nil {
			lastMod = fi.ModTime().UTC().Format(time.DateOnly)
		}
		urls = append(urls, sitemapURL{
			Loc:     pageURL(p.cfg.SiteURL, filepath.ToSlash(rel)),
			LastMod: lastMod,
		})
	}

	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	out, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return fmt.Errorf("sitemap: %w", err)
	}
	path := filepath.Join(p.outRoot, "sitemap.xml")
	data := append([]byte(xml.Header), out...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sitemap: %w", err)
	}
	return nil
}

// pageURL maps an HTML page's relative path to its canonical URL:
// index.html files collapse to their directory, everything else keeps its
// filename.
func pageURL(base, rel string) string {
	if rel == "index.html" || rel == "index.htm" {
		return BuildURL(base)
	}
	if dir, file := filepath.Split(rel); file == "index.html" || file == "index.htm" {
		return BuildURL(base, strings.TrimSuffix(dir, "/"))
	}
	u := BuildURL(base, rel)
	return strings.TrimSuffix(u, "/")
}
