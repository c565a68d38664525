package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory implementation of ObjectStore for testing.
type MockStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	calls   MockCalls

	// Injected failures, keyed by object key.
	GetErrors    map[string]error
	PutErrors    map[string]error
	DeleteErrors map[string]error
	ListError    error
}

// MockCalls tracks method invocations for test verification.
type MockCalls struct {
	Put         int
	Get         int
	List        int
	DeleteBatch int
	Deleted     []string
	// Ops lists every call in order as "<op> <key>", e.g. "put site/a.html".
	// A batch delete is one entry with its keys joined by ",".
	Ops         []string
}

// NewMockStore creates a new in-memory object store.
func NewMockStore() *MockStore {
	return &MockStore{
		objects:      make(map[string]*Object),
		GetErrors:    make(map[string]error),
		PutErrors:    make(map[string]error),
		DeleteErrors: make(map[string]error),
	}
}

// Put stores a copy of the object.
func (m *MockStore) Put(ctx context.Context, obj *Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++
	m.record("put", obj.Key)

	if err := m.PutErrors[obj.Key]; err != nil {
		return err
	}
	stored := &Object{
		Key:         obj.Key,
		Data:        append([]byte(nil), obj.Data...),
		Size:        int64(len(obj.Data)),
		ContentType: obj.ContentType,
	}
	m.objects[obj.Key] = stored
	return nil
}

// Get returns a copy of the object at key.
func (m *MockStore) Get(ctx context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++
	m.record("get", key)

	if err := m.GetErrors[key]; err != nil {
		return nil, err
	}
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound{Key: key}
	}
	return &Object{
		Key:         obj.Key,
		Data:        append([]byte(nil), obj.Data...),
		Size:        obj.Size,
		ContentType: obj.ContentType,
	}, nil
}

// List returns objects under prefix in key order.
func (m *MockStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++
	m.record("list", prefix)

	if m.ListError != nil {
		return nil, m.ListError
	}
	var out []ObjectInfo
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: obj.Size, LastModified: time.Time{}})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeleteBatch removes keys, honoring injected failures.
func (m *MockStore) DeleteBatch(ctx context.Context, keys []string) []KeyError {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.DeleteBatch++
	m.record("delete", strings.Join(keys, ","))

	var failures []KeyError
	for _, k := range keys {
		if err := m.DeleteErrors[k]; err != nil {
			failures = append(failures, KeyError{Key: k, Err: err})
			continue
		}
		delete(m.objects, k)
		m.calls.Deleted = append(m.calls.Deleted, k)
	}
	return failures
}

// Close releases resources.
func (m *MockStore) Close() error {
	return nil
}

// Calls returns a snapshot of the recorded invocations.
func (m *MockStore) Calls() MockCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.calls
	c.Deleted = append([]string(nil), m.calls.Deleted...)
	c.Ops = append([]string(nil), m.calls.Ops...)
	return c
}

func (m *MockStore) record(op, key string) {
	m.calls.Ops = append(m.calls.Ops, op+" "+key)
}

// Keys returns every stored key in order.
func (m *MockStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Seed stores data at key without counting a Put call.
func (m *MockStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &Object{Key: key, Data: append([]byte(nil), data...), Size: int64(len(data))}
}
