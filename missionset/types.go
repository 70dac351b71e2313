package missionset

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
)

// Warning records a partition or type directory skipped during type
// discovery, either because it could not be read or because its name is
// not a valid type name.
type Warning struct {
	// Category is the partition being scanned.
	Category Category
	// Type is the skipped type, or empty when the whole partition was
	// unreadable.
	Type string
	// Path is the store key that could not be read.
	Path string
	Err  error
}

func (w Warning) String() string {
	if w.Type == "" {
		return fmt.Sprintf("%s: skipped partition %s: %v", w.Category, w.Path, w.Err)
	}
	return fmt.Sprintf("%s: skipped type %q at %s: %v", w.Category, w.Type, w.Path, w.Err)
}

// typeIndex discovers types as the union of subdirectory names across the
// goals, scenarios, and tasks partitions.
type typeIndex struct {
	store  Store
	layout Layout
	logger *slog.Logger

	mu       sync.Mutex
	loaded   bool
	types    []string
	warnings []Warning
}

func newTypeIndex(store Store, layout Layout, logger *slog.Logger) *typeIndex {
	return &typeIndex{store: store, layout: layout, logger: logger}
}

// list returns the sorted, deduplicated types. The scan runs once; later
// calls return copies of the first result.
func (x *typeIndex) list(ctx context.Context) ([]string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ensure(ctx); err != nil {
		return nil, err
	}
	return append([]string(nil), x.types...), nil
}

// skipped returns the warnings recorded by the scan.
func (x *typeIndex) skipped(ctx context.Context) ([]Warning, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.ensure(ctx); err != nil {
		return nil, err
	}
	return append([]Warning(nil), x.warnings...), nil
}

func (x *typeIndex) ensure(ctx context.Context) error {
	if x.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var warnings []Warning
	for _, c := range categories {
		dir := x.layout.CategoryDir(c)
		entries, err := x.store.ReadDir(ctx, dir)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			warnings = append(warnings, Warning{Category: c, Path: dir, Err: err})
			continue
		}
		for _, e := range entries {
			if !e.IsDir {
				continue
			}
			typeDir, err := x.layout.TypeDir(c, e.Name)
			if err != nil {
				warnings = append(warnings, Warning{Category: c, Type: e.Name, Path: path.Join(dir, e.Name), Err: err})
				continue
			}
			if _, err := x.store.ReadDir(ctx, typeDir); err != nil {
				warnings = append(warnings, Warning{Category: c, Type: e.Name, Path: typeDir, Err: err})
				continue
			}
			seen[e.Name] = true
		}
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, w := range warnings {
		x.logger.Warn("skipped during type discovery", "category", string(w.Category), "type", w.Type, "path", w.Path, "error", w.Err)
	}
	x.logger.Debug("discovered types", "count", len(types))

	x.types = types
	x.warnings = warnings
	x.loaded = true
	return nil
}
