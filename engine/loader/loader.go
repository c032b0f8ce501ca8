// Package loader reads source documents from a directory tree. It is the
// first stage of the ingestion pipeline.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/askdocs/askdocs/engine/domain"
	"github.com/bmatcuk/doublestar/v4"
)

// Loader enumerates files under Root matching Pattern and reads them into
// Documents. Patterns use doublestar syntax, so "**/*.md" matches Markdown
// files at any depth.
type Loader struct {
	Root    string
	Pattern string
}

// New creates a Loader for the given root directory and glob pattern.
func New(root, pattern string) *Loader {
	if pattern == "" {
		pattern = "**/*.md"
	}
	return &Loader{Root: root, Pattern: pattern}
}

// Load reads all matching files. Results are ordered by path so repeated
// loads over the same tree are deterministic. Any unreadable matching file
// fails the whole load; partial corpora are never returned.
func (l *Loader) Load() ([]domain.Document, error) {
	if !doublestar.ValidatePattern(l.Pattern) {
		return nil, fmt.Errorf("loader: invalid glob pattern %q", l.Pattern)
	}

	var paths []string
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.Root, path)
		if err != nil {
			return err
		}
		ok, err := doublestar.Match(l.Pattern, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loader: walk %s: %w", l.Root, err)
	}
	sort.Strings(paths)

	docs := make([]domain.Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loader: read %s: %w", path, err)
		}
		rel, _ := filepath.Rel(l.Root, path)
		docs = append(docs, domain.Document{
			Text:       string(data),
			SourcePath: filepath.ToSlash(rel),
			Metadata: map[string]string{
				"source": filepath.ToSlash(rel),
			},
		})
	}
	return docs, nil
}
