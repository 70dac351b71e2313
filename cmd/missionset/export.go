package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justapithecus/missionset/missionset/export"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		format   string
		out      string
		compress string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a flattened task index",
		Long: `Write a flattened index of the dataset outside of it.

Formats:
  jsonl    one task row per line (optionally --compress gzip|zstd)
  parquet  snappy-compressed Parquet task rows
  sqlite   SQLite database with types, goals, scenarios, tasks, task_goals

The export fails on the first loader error.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				return usagef("--out is required")
			}
			comp, err := export.CompressorByName(compress)
			if err != nil {
				return &usageError{err: err}
			}
			var codec export.Codec
			switch format {
			case "sqlite":
				if comp.Extension() != "" {
					return usagef("--compress is not supported for sqlite")
				}
			case "parquet":
				if comp.Extension() != "" {
					return usagef("--compress is not supported for parquet")
				}
				codec = export.NewParquet()
			default:
				codec, err = export.CodecByName(format)
				if err != nil {
					return &usageError{err: err}
				}
			}

			ds, err := a.dataset(cmd.Context())
			if err != nil {
				return err
			}
			if root := ds.Root(); root != "" && !strings.HasPrefix(root, s3URIScheme) {
				inside, err := withinDir(root, out)
				if err != nil {
					return err
				}
				if inside {
					return usagef("--out %q is inside the dataset root %q", out, root)
				}
			}
			if codec == nil {
				err = export.WriteSQLite(cmd.Context(), out, ds)
			} else {
				err = export.WriteFile(cmd.Context(), ds, out, codec, comp)
			}
			if err != nil {
				return err
			}
			a.logger.Info("export written", "format", format, "path", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "jsonl", "export format (jsonl, parquet, sqlite)")
	cmd.Flags().StringVar(&out, "out", "", "output path")
	cmd.Flags().StringVar(&compress, "compress", "none", "stream compression for jsonl (none, gzip, zstd)")
	return cmd
}

// withinDir reports whether path is dir itself or lies beneath it. Symlinks
// in dir and in path's parent are resolved when they exist.
func withinDir(dir, path string) (bool, error) {
	absDir, err := resolvePath(dir)
	if err != nil {
		return false, err
	}
	absParent, err := resolvePath(filepath.Dir(path))
	if err != nil {
		return false, err
	}
	target := filepath.Join(absParent, filepath.Base(path))
	rel, err := filepath.Rel(absDir, target)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
