package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndex is the parallel cosine-distance vector index described in
// spec.md §3/§4.1: one row per chunk row, keyed by the decimal string
// form of the chunk's id. It never looks at corpus or path — that
// filtering belongs to the query-scope layer (§4.3).
//
// Grounded on the teacher's HNSWStore (internal/store/hnsw.go), kept
// nearly verbatim: coder/hnsw has no notion of deleting the last node
// cleanly, so deletes here are lazy (orphaning the id mapping rather
// than mutating the graph).
type VectorIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

type vectorIndexMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dims    int
}

// ErrDimensionMismatch is returned when a vector's length doesn't match
// the index's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// VectorSearchRow is one hit of the vector search primitive, joined
// through chunks to notes per spec.md §4.1.
type VectorSearchRow struct {
	EmbeddingID int64
	NoteID      int64
	CorpusID    int64
	Path        string
	Content     string
	ChunkPos    int
	Distance    float32
}

// NewVectorIndex creates an empty cosine-metric vector index.
func NewVectorIndex(dims int) *VectorIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &VectorIndex{
		graph:  graph,
		dims:   dims,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Add inserts or replaces vectors keyed by chunk-id string.
func (v *VectorIndex) Add(keys []string, vectors [][]float32) error {
	if len(keys) == 0 {
		return nil
	}
	if len(keys) != len(vectors) {
		return fmt.Errorf("keys/vectors length mismatch: %d vs %d", len(keys), len(vectors))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, vec := range vectors {
		if len(vec) != v.dims {
			return ErrDimensionMismatch{Expected: v.dims, Got: len(vec)}
		}
	}

	for i, key := range keys {
		if existingKey, exists := v.idMap[key]; exists {
			delete(v.keyMap, existingKey)
			delete(v.idMap, key)
		}

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		nodeKey := v.nextKey
		v.nextKey++
		v.graph.Add(hnsw.MakeNode(nodeKey, vec))

		v.idMap[key] = nodeKey
		v.keyMap[nodeKey] = key
	}

	return nil
}

// Search returns the k nearest neighbors to query by cosine distance,
// keyed by the original chunk-id string.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if len(query) != v.dims {
		return nil, ErrDimensionMismatch{Expected: v.dims, Got: len(query)}
	}
	if v.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	nodes := v.graph.Search(q, k)
	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		key, ok := v.keyMap[node.Key]
		if !ok {
			continue // lazily-deleted node, still resident in the graph
		}
		hits = append(hits, VectorHit{
			Key:      key,
			Distance: v.graph.Distance(q, node.Value),
		})
	}
	return hits, nil
}

// Delete removes vectors by chunk-id string (lazy deletion).
func (v *VectorIndex) Delete(keys []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}

	for _, key := range keys {
		if nodeKey, ok := v.idMap[key]; ok {
			delete(v.keyMap, nodeKey)
			delete(v.idMap, key)
		}
	}
	return nil
}

// Count returns the number of live vectors (excluding lazily-deleted
// orphans still resident in the underlying graph).
func (v *VectorIndex) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// VectorHit is one nearest-neighbor match, before the join to notes.
type VectorHit struct {
	Key      string
	Distance float32
}

// Save persists the graph and id mappings to disk (index file + a
// sibling .meta gob file), atomically via temp-file-then-rename.
func (v *VectorIndex) Save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return fmt.Errorf("vector index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create vector index directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vector index file: %w", err)
	}
	if err := v.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export vector graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename vector index file: %w", err)
	}

	return v.saveMetadata(path + ".meta")
}

func (v *VectorIndex) saveMetadata(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	meta := vectorIndexMetadata{IDMap: v.idMap, NextKey: v.nextKey, Dims: v.dims}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load restores a previously-saved vector index from disk. Missing
// files are treated as a fresh, empty index.
func (v *VectorIndex) Load(path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	metaPath := path + ".meta"
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		return nil
	}

	mf, err := os.Open(metaPath)
	if err != nil {
		return err
	}
	defer mf.Close()

	var meta vectorIndexMetadata
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return fmt.Errorf("decode vector index metadata: %w", err)
	}
	v.idMap = meta.IDMap
	v.nextKey = meta.NextKey
	v.dims = meta.Dims
	v.keyMap = make(map[uint64]string, len(v.idMap))
	for id, key := range v.idMap {
		v.keyMap[key] = id
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector index file: %w", err)
	}
	defer f.Close()

	return v.graph.Import(bufio.NewReader(f))
}

// Close releases the index's resources.
func (v *VectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.graph = nil
	return nil
}

func normalizeInPlace(vec []float32) {
	var sumSquares float64
	for _, x := range vec {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= inv
	}
}
