package missionset

import (
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Decompressor reads a compressed variant of a dataset document.
//
// A document stored as "goals.json.zst" is found when "goals.json" is
// requested and no uncompressed copy exists.
type Decompressor interface {
	// Name returns the decompressor identifier (for example, "gzip" or "zstd").
	Name() string

	// Extension returns the file suffix (for example, ".gz" or ".zst").
	Extension() string

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// DefaultDecompressors returns the decompressors a Dataset uses unless
// WithDecompressors overrides them, in lookup order.
func DefaultDecompressors() []Decompressor {
	return []Decompressor{NewZstdDecompressor(), NewGzipDecompressor()}
}

// -----------------------------------------------------------------------------
// Zstd
// -----------------------------------------------------------------------------

type zstdDecompressor struct{}

// NewZstdDecompressor reads Zstandard documents with the .zst extension.
func NewZstdDecompressor() Decompressor {
	return &zstdDecompressor{}
}

func (z *zstdDecompressor) Name() string {
	return "zstd"
}

func (z *zstdDecompressor) Extension() string {
	return ".zst"
}

func (z *zstdDecompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// -----------------------------------------------------------------------------
// Gzip
// -----------------------------------------------------------------------------

type gzipDecompressor struct{}

// NewGzipDecompressor reads gzip documents with the .gz extension.
func NewGzipDecompressor() Decompressor {
	return &gzipDecompressor{}
}

func (g *gzipDecompressor) Name() string {
	return "gzip"
}

func (g *gzipDecompressor) Extension() string {
	return ".gz"
}

func (g *gzipDecompressor) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}
