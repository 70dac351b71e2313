package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justapithecus/missionset/missionset"
)

// WriteFile exports the task index of ds to path with the given codec and
// compressor. A nil compressor writes uncompressed output.
//
// The file is written to a temporary sibling and renamed into place, so a
// failed export never leaves a partial index at path.
func WriteFile(ctx context.Context, ds *missionset.Dataset, path string, codec Codec, comp Compressor) (err error) {
	if codec == nil {
		return errors.New("export: nil codec")
	}
	if comp == nil {
		comp = NewNoop()
	}
	rows, err := Rows(ctx, ds)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	cw, err := comp.Compress(tmp)
	if err != nil {
		return fmt.Errorf("export: %s: %w", comp.Name(), err)
	}
	if err := codec.Encode(cw, rows); err != nil {
		_ = cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("export: %s: close: %w", comp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename: %w", err)
	}
	return nil
}
