package testutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteTree writes a dataset tree under root. Keys are slash-separated
// paths relative to root; parent directories are created as needed.
//
// Usage:
//
//	err := testutil.WriteTree(dir, map[string]string{
//		"goals/urban/goals.json": `[]`,
//	})
func WriteTree(root string, files map[string]string) error {
	for key, content := range files {
		path := filepath.Join(root, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("testutil: mkdir %s: %w", key, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("testutil: write %s: %w", key, err)
		}
	}
	return nil
}
