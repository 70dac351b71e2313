package export

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Compressor wraps an index file with stream compression. It applies on top
// of the codec, so a JSONL index written with Zstd ends in ".jsonl.zst".
type Compressor interface {
	// Name returns the compressor identifier (for example, "gzip" or "none").
	Name() string

	// Extension returns the suffix appended after the codec extension.
	Extension() string

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)
}

// CompressorByName returns the compressor registered under name. The empty
// string selects Noop.
func CompressorByName(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return NewNoop(), nil
	case "gzip":
		return NewGzip(), nil
	case "zstd":
		return NewZstd(), nil
	default:
		return nil, fmt.Errorf("export: unknown compressor %q", name)
	}
}

// Gzip compresses with gzip.
type Gzip struct{}

// NewGzip creates a gzip compressor.
func NewGzip() *Gzip {
	return &Gzip{}
}

func (g *Gzip) Name() string      { return "gzip" }
func (g *Gzip) Extension() string { return ".gz" }

func (g *Gzip) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

// Zstd compresses with Zstandard.
type Zstd struct{}

// NewZstd creates a zstd compressor.
func NewZstd() *Zstd {
	return &Zstd{}
}

func (z *Zstd) Name() string      { return "zstd" }
func (z *Zstd) Extension() string { return ".zst" }

func (z *Zstd) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

// Noop writes through unchanged.
type Noop struct{}

// NewNoop creates a noop compressor.
func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Name() string      { return "none" }
func (n *Noop) Extension() string { return "" }

func (n *Noop) Compress(w io.Writer) (io.WriteCloser, error) {
	return &noopWriteCloser{w}, nil
}

type noopWriteCloser struct {
	io.Writer
}

func (n *noopWriteCloser) Close() error {
	return nil
}

var (
	_ Compressor = (*Gzip)(nil)
	_ Compressor = (*Zstd)(nil)
	_ Compressor = (*Noop)(nil)
)
