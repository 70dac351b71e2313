package missionset

import (
	"context"
	"log/slog"
	"sync"
)

// Metadata describes the dataset as a whole.
type Metadata struct {
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
	License     string `json:"license,omitempty" yaml:"license,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedDate string `json:"created_date,omitempty" yaml:"created_date,omitempty"`

	// Extra holds any further top-level fields.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

var metadataFields = []string{"name", "version", "author", "license", "description", "created_date"}

type metadataLoader struct {
	layout Layout
	docs   *documentReader
	logger *slog.Logger

	mu   sync.Mutex
	meta *Metadata
}

func newMetadataLoader(layout Layout, docs *documentReader, logger *slog.Logger) *metadataLoader {
	return &metadataLoader{layout: layout, docs: docs, logger: logger}
}

func (l *metadataLoader) get(ctx context.Context) (*Metadata, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.meta != nil {
		return l.meta, nil
	}
	doc, source, err := l.docs.read(ctx, l.layout.MetadataKey())
	if err != nil {
		return nil, err
	}
	meta, err := parseMetadata(source, doc)
	if err != nil {
		return nil, err
	}
	l.meta = meta
	l.logger.Debug("loaded metadata", "name", meta.Name, "version", meta.Version)
	return meta, nil
}

// parseMetadata requires name and version; the other known fields are
// optional strings.
func parseMetadata(path string, doc any) (*Metadata, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &SchemaError{Path: path, Index: -1, Message: "must be an object, got " + jsonKind(doc)}
	}

	values := make(map[string]string, len(metadataFields))
	for _, field := range metadataFields {
		raw, ok := m[field]
		if !ok || raw == nil {
			if field == "name" || field == "version" {
				return nil, missingField(field).at(path, -1)
			}
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return nil, wrongType(field, "a string", raw).at(path, -1)
		}
		values[field] = str
	}

	meta := &Metadata{
		Name:        values["name"],
		Version:     values["version"],
		Author:      values["author"],
		License:     values["license"],
		Description: values["description"],
		CreatedDate: values["created_date"],
	}
	known := make(map[string]bool, len(metadataFields))
	for _, f := range metadataFields {
		known[f] = true
	}
	for _, key := range sortedKeys(m) {
		if known[key] {
			continue
		}
		if meta.Extra == nil {
			meta.Extra = make(map[string]any)
		}
		meta.Extra[key] = m[key]
	}
	return meta, nil
}
