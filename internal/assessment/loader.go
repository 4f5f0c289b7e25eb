package assessment

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/talentflow/internal/apperr"
	"github.com/garnizeh/talentflow/pkg/models"
)

// CurrentVersion is the document schema version new assessments are checked
// against.
const CurrentVersion = "v1"

//go:embed schema/*.json
var schemaFS embed.FS

// Loader loads and caches compiled JSON schemas for assessment documents.
// Files are named assessment.<version>.json.
type Loader struct {
	fsys  fs.FS
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewLoader compiles the embedded schemas.
func NewLoader() (*Loader, error) {
	return NewLoaderFS(schemaFS)
}

// NewLoaderFS compiles the schemas found under schema/ in fsys.
func NewLoaderFS(fsys fs.FS) (*Loader, error) {
	l := &Loader{
		fsys:  fsys,
		cache: make(map[string]*jsonschema.Schema),
	}
	// initial load
	if err := l.Reload(); err != nil {
		return nil, err
	}

	return l, nil
}

// GetSchema returns a compiled schema for a version.
func (l *Loader) GetSchema(version string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.cache[version]
	l.mu.RUnlock()

	return s, ok
}

// Versions lists the loaded schema versions.
func (l *Loader) Versions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, 0, len(l.cache))
	for v := range l.cache {
		out = append(out, v)
	}
	return out
}

// Reload reads every schema file and compiles it.
func (l *Loader) Reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := fs.ReadDir(l.fsys, "schema")
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	newCache := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "assessment.") || path.Ext(name) != ".json" {
			continue
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "assessment."), ".json")

		b, err := fs.ReadFile(l.fsys, path.Join("schema", name))
		if err != nil {
			return fmt.Errorf("read schema %s: %w", version, err)
		}
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(b, rs); err != nil {
			return fmt.Errorf("compile schema %s: %w", version, err)
		}

		newCache[version] = rs
	}

	l.cache = newCache
	return nil
}

// Document is the client-editable part of an assessment.
type Document struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Sections    []models.Section `json:"sections"`
}

// Decode checks body against the schema of the given version and decodes it.
// Schema violations are InvalidInput listing every offending path.
func (l *Loader) Decode(ctx context.Context, version string, body []byte) (*Document, error) {
	schema, ok := l.GetSchema(version)
	if !ok || schema == nil {
		return nil, fmt.Errorf("no schema found for version %s", version)
	}

	verrs, err := schema.ValidateBytes(ctx, body)
	if err != nil {
		return nil, apperr.InvalidInput("assessment is not valid JSON: %v", err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, v := range verrs {
			p := v.PropertyPath
			if p == "" {
				p = "/"
			}
			msgs = append(msgs, p+": "+v.Message)
		}
		return nil, apperr.InvalidInput("assessment does not match schema %s: %s", version, strings.Join(msgs, "; "))
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperr.InvalidInput("decode assessment: %v", err)
	}

	return &doc, nil
}
