package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FSStore is a filesystem-based implementation of ObjectStore. Each key maps
// to a file under basePath, so a bucket can be mirrored to (or served from) a
// plain directory:
//
//	<basePath>/
//	  docs/
//	    manifest/
//	      api.json
//	    api/
//	      client.html
type FSStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFSStore creates a new filesystem-based object store.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", basePath, err)
	}
	return &FSStore{basePath: basePath}, nil
}

// Get retrieves an object by key.
func (s *FSStore) Get(ctx context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.objectPath(key)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - path is confined to basePath by objectPath
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound{Key: key}
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return &Object{
		Key:         key,
		Data:        data,
		Size:        int64(len(data)),
		ContentType: ContentTypeFor(key),
	}, nil
}

// List returns all objects whose key starts with prefix, in key order.
func (s *FSStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ObjectInfo
	err := filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk objects: %w", err)
	}
	return out, nil
}

// Put writes the object, replacing an existing file atomically.
func (s *FSStore) Put(ctx context.Context, obj *Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.objectPath(obj.Key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	if _, err := tmp.Write(obj.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename object: %w", err)
	}
	return nil
}

// DeleteBatch removes each key; missing keys count as deleted.
func (s *FSStore) DeleteBatch(ctx context.Context, keys []string) []KeyError {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failures []KeyError
	for _, key := range keys {
		p, err := s.objectPath(key)
		if err != nil {
			failures = append(failures, KeyError{Key: key, Err: err})
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			failures = append(failures, KeyError{Key: key, Err: err})
			continue
		}
		s.pruneEmptyDirs(filepath.Dir(p))
	}
	return failures
}

// Close releases resources.
func (s *FSStore) Close() error {
	return nil
}

// pruneEmptyDirs removes now-empty parents up to basePath. Best effort.
func (s *FSStore) pruneEmptyDirs(dir string) {
	base := filepath.Clean(s.basePath)
	for dir != base && strings.HasPrefix(dir, base) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// objectPath maps a key to a path under basePath, rejecting keys that escape it.
func (s *FSStore) objectPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	p := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("object key %q escapes store root", key)
	}
	return p, nil
}
