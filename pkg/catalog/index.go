// Package catalog owns the commit protocol for a merge run: every master
// and meta blob lands in one revision-checked batch together with the
// catalog index, so readers following the index never observe a partially
// merged state. The index blob is canonical JSON and advances last in the
// batch; two identical commits therefore produce byte-identical indexes.
package catalog

import (
	"encoding/json"
	"sort"

	"github.com/agentstation/utc"
	"github.com/gowebpki/jcs"

	"github.com/toriidata/filermap/pkg/errors"
)

// Index is the catalog's entry point blob: the authoritative listing of
// the committed dataset generation.
type Index struct {
	Version     int    `json:"version"`
	LastRunID   string `json:"last_run_id"`
	UpdatedAt   string `json:"updated_at"`
	EntityCount int    `json:"entity_count"`
	EventCount  int    `json:"event_count"`

	// Shards lists every committed master shard path with its byte size.
	Shards map[string]ShardEntry `json:"shards"`
}

// ShardEntry describes one committed shard blob.
type ShardEntry struct {
	Size       int64  `json:"size"`
	UpdatedRun string `json:"updated_run"`
}

// indexVersion is bumped when the index schema changes incompatibly.
const indexVersion = 1

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{Version: indexVersion, Shards: map[string]ShardEntry{}}
}

// DecodeIndex parses a stored index blob.
func DecodeIndex(data []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, errors.WrapParse("json", "catalog index", err)
	}
	if idx.Shards == nil {
		idx.Shards = map[string]ShardEntry{}
	}
	return &idx, nil
}

// Encode serializes the index as canonical JSON. Canonicalization makes the
// blob independent of map iteration order, so unchanged state re-encodes to
// identical bytes.
func (idx *Index) Encode() ([]byte, error) {
	idx.Version = indexVersion
	raw, err := json.Marshal(idx)
	if err != nil {
		return nil, errors.WrapParse("json", "catalog index", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, errors.WrapParse("json", "catalog index", err)
	}
	return canonical, nil
}

// Advance records one committed run into the index.
func (idx *Index) Advance(runID string, committedAt utc.Time, shards map[string]int64, entityCount, eventCount int) {
	idx.LastRunID = runID
	idx.UpdatedAt = committedAt.Format("2006-01-02T15:04:05Z")
	idx.EntityCount = entityCount
	idx.EventCount = eventCount
	for path, size := range shards {
		idx.Shards[path] = ShardEntry{Size: size, UpdatedRun: runID}
	}
}

// ShardPaths returns the committed shard paths in sorted order.
func (idx *Index) ShardPaths() []string {
	paths := make([]string, 0, len(idx.Shards))
	for p := range idx.Shards {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
