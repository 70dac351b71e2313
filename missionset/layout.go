package missionset

import (
	"context"
	"path"
	"strings"
)

// Category names one of the three dataset partitions.
type Category string

// Partition directories under the dataset root.
const (
	CategoryGoals     Category = "goals"
	CategoryScenarios Category = "scenarios"
	CategoryTasks     Category = "tasks"
)

// categories is the discovery order for the type index.
var categories = []Category{CategoryGoals, CategoryScenarios, CategoryTasks}

// Fixed file names within the layout.
const (
	MetadataFile          = "metadata.json"
	GoalsFile             = "goals.json"
	EnvironmentCountsFile = "environment_counts.json"
	MapServerConfigFile   = "map_server_config.json"
	DashboardImageFile    = "scenario_dashboard.png"

	taskExt = ".json"
)

// -----------------------------------------------------------------------------
// Layout
// -----------------------------------------------------------------------------

// Layout maps (category, type, id) tuples to store keys:
//
//	metadata.json
//	goals/<type>/goals.json
//	scenarios/<type>/<scenario_id>/environment_counts.json
//	scenarios/<type>/<scenario_id>/map_server_config.json
//	scenarios/<type>/<scenario_id>/scenario_dashboard.png
//	tasks/<type>/<task_id>.json
//
// Key construction is pure; only RequireDir touches the store, and it never
// opens files. The zero value is ready to use.
type Layout struct{}

// MetadataKey returns the key of the dataset metadata document.
func (Layout) MetadataKey() string { return MetadataFile }

// CategoryDir returns the partition directory for c.
func (Layout) CategoryDir(c Category) string { return string(c) }

// TypeDir returns the directory holding one type's content in a partition.
// Hidden names (leading "." or "_") are not types.
func (l Layout) TypeDir(c Category, typ string) (string, error) {
	parent := l.CategoryDir(c)
	if err := validateSegment(parent, typ); err != nil {
		return "", err
	}
	if isHidden(typ) {
		return "", &PathError{Path: parent + "/" + typ, Err: ErrHiddenType}
	}
	return path.Join(parent, typ), nil
}

// GoalsKey returns the key of the goals document for typ.
func (l Layout) GoalsKey(typ string) (string, error) {
	dir, err := l.TypeDir(CategoryGoals, typ)
	if err != nil {
		return "", err
	}
	return path.Join(dir, GoalsFile), nil
}

// ScenarioDir returns the directory of one scenario.
func (l Layout) ScenarioDir(typ, id string) (string, error) {
	dir, err := l.TypeDir(CategoryScenarios, typ)
	if err != nil {
		return "", err
	}
	if err := validateSegment(dir, id); err != nil {
		return "", err
	}
	return path.Join(dir, id), nil
}

// ScenarioFileKey returns the key of a file inside a scenario directory.
func (l Layout) ScenarioFileKey(typ, id, name string) (string, error) {
	dir, err := l.ScenarioDir(typ, id)
	if err != nil {
		return "", err
	}
	return path.Join(dir, name), nil
}

// TaskKey returns the key of an uncompressed task document.
func (l Layout) TaskKey(typ, id string) (string, error) {
	dir, err := l.TypeDir(CategoryTasks, typ)
	if err != nil {
		return "", err
	}
	if err := validateSegment(dir, id); err != nil {
		return "", err
	}
	return path.Join(dir, id+taskExt), nil
}

// RequireDir fails with *PathError when dir does not exist in store.
func (Layout) RequireDir(ctx context.Context, store Store, dir string) error {
	exists, err := store.Exists(ctx, dir)
	if err != nil {
		return &PathError{Path: dir, Err: err}
	}
	if !exists {
		return &PathError{Path: dir, Err: ErrNotFound}
	}
	return nil
}

// validateSegment rejects names that are not a single path segment below
// parent. The error names the attempted path, unjoined.
func validateSegment(parent, name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return &PathError{Path: parent + "/" + name, Err: ErrInvalidPath}
	}
	return nil
}

// taskIDFromName strips a task file's extension, including any compression
// suffix from decompressors. It reports false for files that are not task
// documents.
func taskIDFromName(name string, decompressors []Decompressor) (id string, compressed bool, ok bool) {
	if strings.HasSuffix(name, taskExt) {
		id = strings.TrimSuffix(name, taskExt)
		return id, false, id != ""
	}
	for _, d := range decompressors {
		suffix := taskExt + d.Extension()
		if strings.HasSuffix(name, suffix) {
			id = strings.TrimSuffix(name, suffix)
			return id, true, id != ""
		}
	}
	return "", false, false
}

// isHidden reports names that discovery never treats as types.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
