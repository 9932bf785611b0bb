package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Document is a parsed YAML content file.
type Document map[string]any

// Section returns a named top-level mapping, or an empty one when absent so
// templates can index it safely.
func (d Document) Section(name string) map[string]any {
	if section, ok := d[name].(map[string]any); ok {
		return section
	}
	return map[string]any{}
}

type cachedDocument struct {
	doc     Document
	modTime time.Time
}

// Loader reads site content (navbar, about page) from YAML files under one
// directory. Parsed documents are cached and re-read when the file changes
// on disk, so content edits do not need a restart.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]cachedDocument
}

// NewLoader constructs a Loader rooted at the given content directory.
func NewLoader(dir string) (*Loader, error) {
	if dir == "" {
		return nil, errors.New("content: directory is required")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("content: stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content: %s is not a directory", dir)
	}

	return &Loader{
		dir:   dir,
		cache: make(map[string]cachedDocument),
	}, nil
}

// Load parses the named YAML file (without extension) from the content
// directory. A missing file is an error.
func (l *Loader) Load(name string) (Document, error) {
	path := filepath.Join(l.dir, name+".yaml")

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("content: %s: %w", name, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cached, ok := l.cache[path]; ok && cached.modTime.Equal(info.ModTime()) {
		return cached.doc, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: read %s: %w", name, err)
	}

	doc := Document{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("content: parse %s: %w", name, err)
	}

	l.cache[path] = cachedDocument{doc: doc, modTime: info.ModTime()}
	return doc, nil
}

// Navbar returns the navigation configuration. The navbar file is required;
// the site cannot render without it.
func (l *Loader) Navbar() (Document, error) {
	return l.Load("navbar")
}

// About returns the about-page configuration. A missing file yields an empty
// document rather than an error.
func (l *Loader) About() (Document, error) {
	doc, err := l.Load("about")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, nil
		}
		return nil, err
	}
	return doc, nil
}
