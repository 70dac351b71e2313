// Package missionset provides read-only access to a partitioned multi-robot
// mission benchmark dataset.
//
// A dataset root holds metadata.json and three partitions (goals, scenarios,
// tasks), each split into named types such as "urban". Missionset discovers the
// types, parses and validates documents on first access, and caches the
// resulting records for the lifetime of a Dataset. It never writes to the
// dataset and never evaluates goal logic; planning belongs to consumers.
package missionset

import (
	"context"
	"io"
)

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// Store abstracts the storage holding a dataset.
//
// Paths are slash-separated keys relative to the dataset root
// (for example "goals/urban/goals.json"). Implementations may target a
// filesystem, memory, or an object store. Stores are read-only.
type Store interface {
	// Get retrieves data from the given path.
	// Returns ErrNotFound if the path does not exist.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists reports whether a file or directory exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// ReadDir returns the immediate children of dir, sorted by name.
	// An empty dir names the store root.
	// Returns ErrNotFound if dir does not exist.
	ReadDir(ctx context.Context, dir string) ([]Entry, error)
}

// Entry is one immediate child of a directory.
type Entry struct {
	Name  string
	IsDir bool
}

// Locator is implemented by stores that can turn a key into a location a
// human (or another tool) can open, such as an absolute file path or an
// s3:// URI.
type Locator interface {
	Locate(path string) string
}

// StoreFactory creates the Store backing a Dataset.
type StoreFactory func() (Store, error)

// locate returns the human-facing location of path in store.
func locate(store Store, path string) string {
	if l, ok := store.(Locator); ok {
		return l.Locate(path)
	}
	return path
}
