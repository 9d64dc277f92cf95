package bsonjs

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ReferenceTag prefixes the path of a decoded ObjectID reference.
const ReferenceTag = "¤TR"

// PathResolver maps a stored document identifier to the path of the document
// it names. ok is false when the index has no string path for id.
type PathResolver interface {
	ResolvePath(ctx context.Context, id bson.ObjectID) (path string, ok bool, err error)
}

// PathResolverFunc adapts a function to PathResolver.
type PathResolverFunc func(ctx context.Context, id bson.ObjectID) (string, bool, error)

// ResolvePath implements PathResolver.
func (f PathResolverFunc) ResolvePath(ctx context.Context, id bson.ObjectID) (string, bool, error) {
	if f == nil {
		return "", false, nil
	}
	return f(ctx, id)
}

// MemoryIndex is an in-memory PathResolver, mostly for tests and examples.
type MemoryIndex struct {
	mu    sync.RWMutex
	paths map[bson.ObjectID]string
}

// NewMemoryIndex constructs an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{paths: map[bson.ObjectID]string{}}
}

// Put records path for id.
func (m *MemoryIndex) Put(id bson.ObjectID, path string) {
	m.mu.Lock()
	m.paths[id] = path
	m.mu.Unlock()
}

// ResolvePath implements PathResolver.
func (m *MemoryIndex) ResolvePath(_ context.Context, id bson.ObjectID) (string, bool, error) {
	m.mu.RLock()
	path, ok := m.paths[id]
	m.mu.RUnlock()
	return path, ok, nil
}

// PassCache memoizes successful lookups of an underlying resolver for the
// duration of one translation pass. Build a new one per pass; it must not
// outlive changes to the underlying index.
type PassCache struct {
	next  PathResolver
	paths map[bson.ObjectID]string
}

// NewPassCache wraps next.
func NewPassCache(next PathResolver) *PassCache {
	return &PassCache{next: next, paths: map[bson.ObjectID]string{}}
}

// ResolvePath implements PathResolver. Misses are not remembered.
func (c *PassCache) ResolvePath(ctx context.Context, id bson.ObjectID) (string, bool, error) {
	if path, ok := c.paths[id]; ok {
		return path, true, nil
	}
	if c.next == nil {
		return "", false, nil
	}
	path, ok, err := c.next.ResolvePath(ctx, id)
	if err != nil || !ok {
		return "", ok, err
	}
	c.paths[id] = path
	return path, true, nil
}

// Len returns the number of cached paths.
func (c *PassCache) Len() int {
	return len(c.paths)
}
