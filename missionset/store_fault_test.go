package missionset

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
)

// -----------------------------------------------------------------------------
// Fault-Injection Store Wrapper (test-only)
// -----------------------------------------------------------------------------
//
// faultStore wraps a Store to inject errors on chosen operations and to
// record which keys each operation was called with. Tests use the recorded
// calls to prove cache hits perform no store I/O.

type faultStore struct {
	inner Store

	mu sync.Mutex

	getErr          error
	getErrMatch     string
	readDirErr      error
	readDirErrMatch string
	existsErr       error

	getCalls     []string
	existsCalls  []string
	readDirCalls []string
}

func newFaultStore(inner Store) *faultStore {
	return &faultStore{inner: inner}
}

// --- Fault injection setters ---

// SetGetError makes Get fail with err for keys containing match (all keys
// when match is empty).
func (f *faultStore) SetGetError(err error, match string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
	f.getErrMatch = match
}

// SetReadDirError makes ReadDir fail with err for dirs equal to match (all
// dirs when match is empty).
func (f *faultStore) SetReadDirError(err error, match string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readDirErr = err
	f.readDirErrMatch = match
}

func (f *faultStore) SetExistsError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsErr = err
}

// --- Observation ---

func (f *faultStore) GetCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.getCalls...)
}

func (f *faultStore) ReadDirCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.readDirCalls...)
}

func (f *faultStore) ExistsCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.existsCalls...)
}

// Calls returns the total number of recorded operations.
func (f *faultStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.getCalls) + len(f.existsCalls) + len(f.readDirCalls)
}

// --- Store ---

func (f *faultStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.getCalls = append(f.getCalls, path)
	err := f.getErr
	match := f.getErrMatch
	f.mu.Unlock()

	if err != nil && (match == "" || strings.Contains(path, match)) {
		return nil, err
	}
	return f.inner.Get(ctx, path)
}

func (f *faultStore) Exists(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	f.existsCalls = append(f.existsCalls, path)
	err := f.existsErr
	f.mu.Unlock()

	if err != nil {
		return false, err
	}
	return f.inner.Exists(ctx, path)
}

func (f *faultStore) ReadDir(ctx context.Context, dir string) ([]Entry, error) {
	f.mu.Lock()
	f.readDirCalls = append(f.readDirCalls, dir)
	err := f.readDirErr
	match := f.readDirErrMatch
	f.mu.Unlock()

	if err != nil && (match == "" || dir == match) {
		return nil, err
	}
	return f.inner.ReadDir(ctx, dir)
}

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

// memoryDataset builds an in-memory store from string contents.
func memoryDataset(files map[string]string) Store {
	data := make(map[string][]byte, len(files))
	for k, v := range files {
		data[k] = []byte(v)
	}
	return NewMemoryFrom(data)
}

// newTestDataset opens a Dataset over store, failing the test on error.
func newTestDataset(t testing.TB, store Store, opts ...Option) *Dataset {
	t.Helper()
	ds, err := New(NewMemoryFactoryFrom(store), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

const fixtureRoot = "testdata/dataset"
