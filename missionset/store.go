package missionset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Filesystem Store
// -----------------------------------------------------------------------------

// fsStore implements Store using the local filesystem.
type fsStore struct {
	root string
}

// NewFS creates a filesystem-backed Store rooted at the given directory.
//
// The directory is not checked here: a missing root surfaces as ErrNotFound
// from the first operation that needs it.
func NewFS(root string) (Store, error) {
	if root == "" {
		return nil, errors.New("missionset: filesystem root is required")
	}
	return &fsStore{root: root}, nil
}

// NewFSFactory returns a StoreFactory for a filesystem store at root.
func NewFSFactory(root string) StoreFactory {
	return func() (Store, error) {
		return NewFS(root)
	}
}

func (f *fsStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := f.safePathForFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

func (f *fsStore) Exists(_ context.Context, path string) (bool, error) {
	fullPath, err := f.safePathForFile(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (f *fsStore) ReadDir(_ context.Context, dir string) ([]Entry, error) {
	fullPath, err := f.safePathForPrefix(dir)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		isDir := de.IsDir()
		if de.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(fullPath, de.Name())); err == nil {
				isDir = info.IsDir()
			}
		}
		entries = append(entries, Entry{Name: de.Name(), IsDir: isDir})
	}
	return entries, nil
}

// Locate returns the filesystem path for a key.
func (f *fsStore) Locate(path string) string {
	if path == "" {
		return f.root
	}
	return filepath.Join(f.root, filepath.FromSlash(path))
}

func (f *fsStore) safePathForFile(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == "." || path == "" {
		return "", ErrInvalidPath
	}
	if filepath.IsAbs(cleaned) {
		return "", ErrInvalidPath
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}

	fullPath := filepath.Join(f.root, cleaned)

	absRoot, err := filepath.Abs(f.root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}

	return fullPath, nil
}

func (f *fsStore) safePathForPrefix(path string) (string, error) {
	if path == "" {
		return f.root, nil
	}

	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == "." {
		return f.root, nil
	}
	if filepath.IsAbs(cleaned) {
		return "", ErrInvalidPath
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}

	return filepath.Join(f.root, cleaned), nil
}

// -----------------------------------------------------------------------------
// Memory Store
// -----------------------------------------------------------------------------

// memoryStore implements Store over an in-memory map of keys to contents.
// Directories are implied by key prefixes.
type memoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Store.
//
// Memory is safe for concurrent use.
func NewMemory() Store {
	return &memoryStore{data: make(map[string][]byte)}
}

// NewMemoryFrom creates an in-memory Store holding a copy of files, keyed by
// slash-separated path. Keys that would escape the root are dropped.
func NewMemoryFrom(files map[string][]byte) Store {
	m := &memoryStore{data: make(map[string][]byte, len(files))}
	for k, v := range files {
		normalized, valid := normalizePathForFile(k)
		if !valid {
			continue
		}
		m.data[normalized] = bytes.Clone(v)
	}
	return m
}

// NewMemoryFactoryFrom creates a StoreFactory that returns an existing store.
func NewMemoryFactoryFrom(store Store) StoreFactory {
	return func() (Store, error) {
		return store, nil
	}
}

func (m *memoryStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	normalized, valid := normalizePathForFile(path)
	if !valid {
		return nil, ErrInvalidPath
	}

	m.mu.RLock()
	data, exists := m.data[normalized]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

func (m *memoryStore) Exists(_ context.Context, path string) (bool, error) {
	normalized, valid := normalizePathForFile(path)
	if !valid {
		return false, ErrInvalidPath
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.data[normalized]; exists {
		return true, nil
	}
	dirPrefix := normalized + "/"
	for key := range m.data {
		if strings.HasPrefix(key, dirPrefix) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ReadDir(_ context.Context, dir string) ([]Entry, error) {
	normalized, valid := normalizePathForPrefix(dir)
	if !valid {
		return nil, ErrInvalidPath
	}
	if normalized != "" {
		normalized += "/"
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	children := make(map[string]bool)
	for key := range m.data {
		if !strings.HasPrefix(key, normalized) {
			continue
		}
		rest := key[len(normalized):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			children[rest[:i]] = true
		} else if _, seen := children[rest]; !seen {
			children[rest] = false
		}
	}
	if len(children) == 0 && normalized != "" {
		return nil, ErrNotFound
	}

	entries := make([]Entry, 0, len(children))
	for name, isDir := range children {
		entries = append(entries, Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func normalizePathForFile(path string) (string, bool) {
	if path == "" {
		return "", false
	}

	cleaned := filepath.Clean(path)
	cleaned = filepath.ToSlash(cleaned)
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || cleaned == "." {
		return "", false
	}

	return cleaned, true
}

func normalizePathForPrefix(path string) (string, bool) {
	if path == "" {
		return "", true
	}

	cleaned := filepath.Clean(path)
	cleaned = filepath.ToSlash(cleaned)
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == "." {
		return "", true
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}

	return cleaned, true
}
