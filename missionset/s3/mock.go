package s3

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// MockS3Client is an in-memory test double for API. It honors Prefix,
// Delimiter, and MaxKeys on ListObjectsV2 and pages results PageSize keys
// at a time when PageSize is set.
type MockS3Client struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// PageSize limits each ListObjectsV2 page. Zero means unlimited.
	PageSize int

	// FailCode, when set, makes every call fail with that API error code.
	FailCode string

	// Call counters for test assertions
	GetObjectCalls     int
	HeadObjectCalls    int
	ListObjectsV2Calls int
}

// NewMockS3Client creates a new mock S3 client for testing.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{objects: make(map[string][]byte)}
}

// Put stores an object directly, bypassing the API.
func (m *MockS3Client) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(data)
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	m.GetObjectCalls++
	data, exists := m.objects[aws.ToString(params.Key)]
	fail := m.FailCode
	m.mu.Unlock()

	if fail != "" {
		return nil, &smithyAPIError{code: fail, message: "simulated failure"}
	}
	if !exists {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

// HeadObject implements API.HeadObject for testing.
func (m *MockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	m.HeadObjectCalls++
	_, exists := m.objects[aws.ToString(params.Key)]
	fail := m.FailCode
	m.mu.Unlock()

	if fail != "" {
		return nil, &smithyAPIError{code: fail, message: "simulated failure"}
	}
	if !exists {
		return nil, &smithyAPIError{code: "NotFound", message: "not found"}
	}
	return &s3.HeadObjectOutput{}, nil
}

// ListObjectsV2 implements API.ListObjectsV2 for testing.
func (m *MockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)
	after := aws.ToString(params.ContinuationToken)

	m.mu.Lock()
	m.ListObjectsV2Calls++
	fail := m.FailCode
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	m.mu.Unlock()

	if fail != "" {
		return nil, &smithyAPIError{code: fail, message: "simulated failure"}
	}
	sort.Strings(keys)

	// Collapse keys into common prefixes, then page over the merged,
	// ordered result the way S3 does.
	type item struct {
		name     string
		isPrefix bool
	}
	var items []item
	seen := make(map[string]bool)
	for _, key := range keys {
		if delimiter != "" {
			rest := key[len(prefix):]
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					items = append(items, item{name: cp, isPrefix: true})
				}
				continue
			}
		}
		items = append(items, item{name: key})
	}

	limit := len(items)
	if m.PageSize > 0 && m.PageSize < limit {
		limit = m.PageSize
	}
	if params.MaxKeys != nil && int(*params.MaxKeys) < limit {
		limit = int(*params.MaxKeys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	n := 0
	for i, it := range items {
		if it.name <= after {
			continue
		}
		if n == limit {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(items[i-1].name)
			break
		}
		name := it.name
		if it.isPrefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: &name})
		} else {
			out.Contents = append(out.Contents, types.Object{Key: &name})
		}
		n++
	}
	return out, nil
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}
