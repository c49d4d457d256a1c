package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/eringen/kiln"
	"github.com/eringen/kiln/scaffold"
)

// scaffoldData holds the template variables passed to every scaffold file.
type scaffoldData struct {
	SiteName string
	Slug     string
}

// runNew renders the embedded site skeleton into a new directory.
func runNew(name string) error {
	dirName := kiln.Slugify(name)
	if dirName == "" {
		return fmt.Errorf("invalid site name %q", name)
	}
	if _, err := os.Stat(dirName); err == nil {
		return fmt.Errorf("directory %q already exists", dirName)
	}

	data := scaffoldData{
		SiteName: toTitle(dirName),
		Slug:     dirName,
	}

	fmt.Printf("Creating new site: %s\n\n", dirName)

	root := "templates"
	err := fs.WalkDir(scaffold.Templates, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		outPath := filepath.Join(dirName, relPath)
		outPath = strings.TrimSuffix(outPath, ".tmpl")

		if d.IsDir() {
			return os.MkdirAll(outPath, 0o755)
		}

		content, err := scaffold.Templates.ReadFile(path)
		if err != nil {
			return err
		}
		tmpl, err := template.New(relPath).Parse(string(content))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", relPath, err)
		}
		out, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := tmpl.Execute(out, data); err != nil {
			return fmt.Errorf("render %s: %w", relPath, err)
		}
		fmt.Printf("  created %s\n", outPath)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nDone. Next steps:\n  cd %s\n  kiln build\n  kiln serve\n", dirName)
	return nil
}

// toTitle converts a slug like "acme-consulting" to "Acme Consulting".
func toTitle(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
