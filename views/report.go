// Package views renders the preview server's build-report page as templ
// components built with ComponentFunc, so no template codegen step is
// needed for a page this small.
package views

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

// Report returns a templ.Component rendering the build history and the
// assets of the most recent build.
func Report(site SiteInfo, runs []RunView, assets []AssetView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		renderReport(&buf, site, runs, assets)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func renderReport(buf *bytes.Buffer, site SiteInfo, runs []RunView, assets []AssetView) {
	title := "Build report"
	if site.Name != "" {
		title = html.EscapeString(site.Name) + " build report"
	}

	buf.WriteString("<!doctype html><html lang=\"en\"><head><meta charset=\"utf-8\">")
	fmt.Fprintf(buf, "<title>%s</title>", title)
	buf.WriteString("<style>" + reportCSS + "</style></head><body>")
	fmt.Fprintf(buf, "<h1>%s</h1>", title)
	if site.URL != "" {
		fmt.Fprintf(buf, `<p><a href="%s">%s</a></p>`,
			html.EscapeString(site.URL), html.EscapeString(site.URL))
	}

	buf.WriteString("<h2>Builds</h2>")
	if len(runs) == 0 {
		buf.WriteString("<p>No builds recorded yet.</p>")
	} else {
		buf.WriteString("<table><tr><th>Started</th><th>Duration</th><th>Files</th><th>Errors</th><th>Run</th></tr>")
		for _, r := range runs {
			cls := ""
			if r.Errors > 0 {
				cls = ` class="err"`
			}
			fmt.Fprintf(buf, "<tr%s><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td><code>%s</code></td></tr>",
				cls,
				html.EscapeString(r.Started),
				html.EscapeString(r.Duration),
				r.Files, r.Errors,
				html.EscapeString(shortID(r.ID)),
			)
		}
		buf.WriteString("</table>")
	}

	buf.WriteString("<h2>Assets</h2>")
	if len(assets) == 0 {
		buf.WriteString("<p>No assets recorded.</p>")
	} else {
		buf.WriteString("<table><tr><th>Output</th><th>Kind</th><th>Size</th></tr>")
		for _, a := range assets {
			fmt.Fprintf(buf, `<tr><td><a href="/%s">%s</a></td><td>%s</td><td>%s</td></tr>`,
				html.EscapeString(a.Path),
				html.EscapeString(a.Path),
				html.EscapeString(a.Kind),
				html.EscapeString(a.Size),
			)
		}
		buf.WriteString("</table>")
	}

	buf.WriteString("</body></html>")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

const reportCSS = `body{font:15px/1.5 system-ui,sans-serif;margin:2rem auto;max-width:56rem;padding:0 1rem;color:#222}
table{border-collapse:collapse;width:100%;margin:1rem 0}
th,td{text-align:left;padding:.35rem .6rem;border-bottom:1px solid #ddd}
tr.err td{color:#b00020}
code{font-size:.85em}`
