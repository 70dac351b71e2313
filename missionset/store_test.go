package missionset

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// storeCases builds the same tree in each backend:
//
//	a/b.json
//	a/c/d.json
//	e.json
func storeCases(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"a/b.json":   `{"b":1}`,
		"a/c/d.json": `{"d":1}`,
		"e.json":     `{"e":1}`,
	}
	for key, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"fs":     fs,
		"memory": memoryDataset(files),
	}
}

// -----------------------------------------------------------------------------
// Get
// -----------------------------------------------------------------------------

func TestStore_Get(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			rc, err := store.Get(t.Context(), "a/b.json")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != `{"b":1}` {
				t.Errorf("Get returned %q", data)
			}
		})
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"missing.json", "a", "a/c"} {
				_, err := store.Get(t.Context(), key)
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("Get(%q): expected ErrNotFound, got %v", key, err)
				}
			}
		})
	}
}

func TestStore_Get_PathEscape(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"../outside.json", "a/../../outside.json", ""} {
				_, err := store.Get(t.Context(), key)
				if !errors.Is(err, ErrInvalidPath) {
					t.Errorf("Get(%q): expected ErrInvalidPath, got %v", key, err)
				}
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Exists
// -----------------------------------------------------------------------------

func TestStore_Exists_FilesAndDirectories(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			for key, want := range map[string]bool{
				"a":            true,
				"a/c":          true,
				"a/b.json":     true,
				"a/c/d.json":   true,
				"a/x.json":     false,
				"missing":      false,
				"a/b.json/sub": false,
			} {
				got, err := store.Exists(t.Context(), key)
				if err != nil && want {
					t.Fatalf("Exists(%q) failed: %v", key, err)
				}
				if got != want {
					t.Errorf("Exists(%q) = %v, want %v", key, got, want)
				}
			}
		})
	}
}

// -----------------------------------------------------------------------------
// ReadDir
// -----------------------------------------------------------------------------

func TestStore_ReadDir(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			root, err := store.ReadDir(t.Context(), "")
			if err != nil {
				t.Fatal(err)
			}
			wantRoot := []Entry{{Name: "a", IsDir: true}, {Name: "e.json"}}
			if diff := cmp.Diff(wantRoot, root); diff != "" {
				t.Errorf("ReadDir(root) mismatch (-want +got):\n%s", diff)
			}

			sub, err := store.ReadDir(t.Context(), "a")
			if err != nil {
				t.Fatal(err)
			}
			wantSub := []Entry{{Name: "b.json"}, {Name: "c", IsDir: true}}
			if diff := cmp.Diff(wantSub, sub); diff != "" {
				t.Errorf("ReadDir(a) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_ReadDir_NotFound(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.ReadDir(t.Context(), "nope")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_ReadDir_PathEscape(t *testing.T) {
	for name, store := range storeCases(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.ReadDir(t.Context(), "../")
			if !errors.Is(err, ErrInvalidPath) {
				t.Errorf("expected ErrInvalidPath, got %v", err)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Construction / Locate
// -----------------------------------------------------------------------------

func TestNewFS_EmptyRoot(t *testing.T) {
	if _, err := NewFS(""); err == nil {
		t.Error("expected error for empty root")
	}
}

func TestNewFS_MissingRootIsLazy(t *testing.T) {
	store, err := NewFS(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("NewFS should not touch the filesystem: %v", err)
	}
	if _, err := store.ReadDir(t.Context(), ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStore_Locate(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	loc, ok := store.(Locator)
	if !ok {
		t.Fatal("fs store should implement Locator")
	}
	want := filepath.Join(dir, "scenarios", "urban", "1", DashboardImageFile)
	if got := loc.Locate("scenarios/urban/1/" + DashboardImageFile); got != want {
		t.Errorf("Locate = %q, want %q", got, want)
	}
	if got := loc.Locate(""); got != dir {
		t.Errorf("Locate(\"\") = %q, want %q", got, dir)
	}
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	src := map[string][]byte{"k.json": []byte("abc")}
	store := NewMemoryFrom(src)
	src["k.json"][0] = 'z'

	rc, err := store.Get(t.Context(), "k.json")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "abc" {
		t.Errorf("memory store shares caller bytes: got %q", data)
	}
}
