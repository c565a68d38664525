// Package storage provides the key-addressed object stores that modules
// publish into. All modules share one bucket namespace; keys are slash
// separated and already include the bucket root prefix.
package storage

import (
	"context"
	"mime"
	"path"
	"time"
)

// ObjectStore is the remote store contract: get, list by prefix, put, and
// batch delete. Put overwrites in place and never deletes anything else.
type ObjectStore interface {
	// Get retrieves the object at key.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, key string) (*Object, error)

	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Put stores obj at obj.Key, replacing any existing object.
	Put(ctx context.Context, obj *Object) error

	// DeleteBatch removes the objects at keys. Deleting a missing key is not
	// an error. The returned slice lists per-key failures; an empty result
	// means every key is gone.
	DeleteBatch(ctx context.Context, keys []string) []KeyError

	// Close releases any resources held by the store.
	Close() error
}

// Object represents a stored object with its metadata.
type Object struct {
	Key         string
	Data        []byte
	Size        int64
	ContentType string
}

// ObjectInfo describes a listed object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// KeyError is a failure scoped to a single key.
type KeyError struct {
	Key string
	Err error
}

func (e KeyError) Error() string {
	return e.Key + ": " + e.Err.Error()
}

func (e KeyError) Unwrap() error { return e.Err }

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Key
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}

// ContentTypeFor guesses a content type from the key's extension.
func ContentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
