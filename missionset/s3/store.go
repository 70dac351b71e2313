// Package s3 provides a read-only S3-compatible Store for missionset, so a
// dataset can be served straight from AWS S3, MinIO, LocalStack, Cloudflare
// R2, or other S3-compatible object stores.
//
// Dataset keys map onto object keys under an optional prefix. Directories are
// virtual: ReadDir lists with the "/" delimiter, and a directory exists when
// at least one object lives beneath it.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/justapithecus/missionset/missionset"
)

// API defines the subset of the S3 client interface used by the store.
// This enables testing with mock implementations.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name. Required.
	Bucket string

	// Prefix is an optional key prefix locating the dataset root inside the
	// bucket. A trailing slash is added if missing.
	Prefix string
}

// Store implements missionset.Store using an S3-compatible backend.
type Store struct {
	client API
	bucket string
	prefix string
}

// New creates a new S3 store with the given client and configuration.
//
// The client must be pre-configured with credentials, region, and endpoint;
// see NewClient.
func New(client API, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	prefix := strings.TrimPrefix(cfg.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// NewFactory returns a missionset.StoreFactory for an S3 store.
func NewFactory(client API, cfg Config) missionset.StoreFactory {
	return func() (missionset.Store, error) {
		return New(client, cfg)
	}
}

// ParseURI splits an s3://bucket/prefix URI into a Config. It reports false
// when uri is not an s3:// URI.
func ParseURI(uri string) (Config, bool) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return Config{}, false
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	return Config{Bucket: bucket, Prefix: strings.TrimSuffix(prefix, "/")}, bucket != ""
}

// Get retrieves the object at key.
// Returns missionset.ErrNotFound if the object does not exist.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, missionset.ErrNotFound
		}
		return nil, fmt.Errorf("s3: get object: %w", err)
	}

	return out.Body, nil
}

// Exists reports whether an object exists at key, or whether key is a
// directory holding at least one object.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	fullKey, err := s.validateKey(key)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fullKey),
	})
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, fmt.Errorf("s3: head object: %w", err)
	}

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(fullKey + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("s3: list objects: %w", err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// ReadDir lists the immediate children of dir using the "/" delimiter.
// Returns missionset.ErrNotFound when nothing lives under a non-root dir.
func (s *Store) ReadDir(ctx context.Context, dir string) ([]missionset.Entry, error) {
	fullPrefix, err := s.validatePrefix(dir)
	if err != nil {
		return nil, err
	}
	if fullPrefix != "" && !strings.HasSuffix(fullPrefix, "/") {
		fullPrefix += "/"
	}

	children := make(map[string]bool)
	var continuationToken *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(fullPrefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, fmt.Errorf("s3: list objects: %w", err)
		}

		for _, cp := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), fullPrefix), "/")
			if name != "" {
				children[name] = true
			}
		}
		for _, obj := range out.Contents {
			// Zero-byte "folder" markers share the listed prefix.
			name := strings.TrimPrefix(aws.ToString(obj.Key), fullPrefix)
			if name == "" {
				continue
			}
			if _, isDir := children[name]; !isDir {
				children[name] = false
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	if len(children) == 0 && fullPrefix != s.prefix {
		return nil, missionset.ErrNotFound
	}

	entries := make([]missionset.Entry, 0, len(children))
	for name, isDir := range children {
		entries = append(entries, missionset.Entry{Name: name, IsDir: isDir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Locate returns the s3:// URI of key.
func (s *Store) Locate(key string) string {
	return "s3://" + s.bucket + "/" + s.prefix + strings.TrimPrefix(key, "/")
}

// validateKey validates and returns the full key for file operations.
func (s *Store) validateKey(key string) (string, error) {
	if key == "" {
		return "", missionset.ErrInvalidPath
	}

	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", missionset.ErrInvalidPath
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" {
		return "", missionset.ErrInvalidPath
	}

	return s.prefix + cleaned, nil
}

// validatePrefix validates and returns the full prefix for list operations.
func (s *Store) validatePrefix(prefix string) (string, error) {
	if prefix == "" {
		return s.prefix, nil
	}

	cleaned := path.Clean(prefix)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", missionset.ErrInvalidPath
	}
	if cleaned == "." {
		return s.prefix, nil
	}
	cleaned = strings.TrimPrefix(cleaned, "/")

	return s.prefix + cleaned, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
