package missionset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// -----------------------------------------------------------------------------
// Document reader
// -----------------------------------------------------------------------------

// documentReader opens JSON documents from a store, falling back to
// compressed variants of a key when the plain key is absent.
type documentReader struct {
	store         Store
	decompressors []Decompressor
}

// read returns the decoded JSON value stored at key along with the key that
// actually held it. A missing document is a *PathError naming key; bytes that
// cannot be decompressed or decoded are a *ParseError naming the source.
func (r *documentReader) read(ctx context.Context, key string) (any, string, error) {
	data, source, err := r.readBytes(ctx, key)
	if err != nil {
		return nil, source, err
	}
	var doc any
	if err := jsonCodec.Unmarshal(data, &doc); err != nil {
		return nil, source, &ParseError{Path: source, Err: err}
	}
	return doc, source, nil
}

func (r *documentReader) readBytes(ctx context.Context, key string) ([]byte, string, error) {
	if d := r.decompressorFor(key); d != nil {
		rc, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, key, &PathError{Path: key, Err: err}
		}
		return readAll(key, rc, d)
	}

	rc, err := r.store.Get(ctx, key)
	if err == nil {
		return readAll(key, rc, nil)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, key, &PathError{Path: key, Err: err}
	}

	for _, d := range r.decompressors {
		candidate := key + d.Extension()
		rc, err := r.store.Get(ctx, candidate)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, candidate, &PathError{Path: candidate, Err: err}
		}
		return readAll(candidate, rc, d)
	}

	return nil, key, &PathError{Path: key, Err: ErrNotFound}
}

// decompressorFor returns the decompressor whose extension key carries.
func (r *documentReader) decompressorFor(key string) Decompressor {
	for _, d := range r.decompressors {
		if ext := d.Extension(); ext != "" && strings.HasSuffix(key, ext) {
			return d
		}
	}
	return nil
}

func readAll(source string, rc io.ReadCloser, d Decompressor) ([]byte, string, error) {
	defer func() { _ = rc.Close() }()

	var src io.Reader = rc
	if d != nil {
		dr, err := d.Decompress(rc)
		if err != nil {
			return nil, source, &ParseError{Path: source, Err: fmt.Errorf("%s: %w", d.Name(), err)}
		}
		defer func() { _ = dr.Close() }()
		src = dr
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, source, &ParseError{Path: source, Err: err}
	}
	return data, source, nil
}
