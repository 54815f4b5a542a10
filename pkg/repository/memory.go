package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/toriidata/filermap/pkg/errors"
)

// Memory is an in-memory Repository used by tests and dry runs. Writes are
// revision-checked the same way a remote store would be, so concurrency
// bugs surface in tests rather than production.
type Memory struct {
	mu       sync.RWMutex
	objects  map[string]memObject
	revision uint64
}

type memObject struct {
	data    []byte
	modTime time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

// Get reads one object.
func (m *Memory) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[path]
	if !ok {
		return nil, errors.NewNotFoundError("blob", path)
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, nil
}

// List returns metadata for every object under prefix, sorted by path.
func (m *Memory) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var infos []ObjectInfo
	for path, obj := range m.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, ObjectInfo{Path: path, Size: int64(len(obj.data)), ModTime: obj.modTime})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// PutBatch atomically writes all puts under the revision check.
func (m *Memory) PutBatch(_ context.Context, puts []Put, expected Revision) (Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := Revision(strconv.FormatUint(m.revision, 10))
	if expected != AnyRevision && expected != current {
		return "", errors.NewConflictError("", string(expected), string(current))
	}

	now := time.Now().UTC()
	for _, p := range puts {
		data := make([]byte, len(p.Data))
		copy(data, p.Data)
		m.objects[p.Path] = memObject{data: data, modTime: now}
	}
	m.revision++
	return Revision(strconv.FormatUint(m.revision, 10)), nil
}

// Delete removes objects. Missing paths are not an error.
func (m *Memory) Delete(_ context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range paths {
		delete(m.objects, p)
	}
	return nil
}

// Revision returns the current revision.
func (m *Memory) Revision(_ context.Context) (Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Revision(strconv.FormatUint(m.revision, 10)), nil
}

// Touch backdates an object's modification time. Test helper for
// age-based sweeps.
func (m *Memory) Touch(path string, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if obj, ok := m.objects[path]; ok {
		obj.modTime = modTime
		m.objects[path] = obj
	}
}
