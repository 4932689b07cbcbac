// Package annindex implements the per-column approximate nearest-neighbor
// index: an HNSW graph keyed by row ordinal (uint64), persisted to a single
// gob-encoded file with atomic replace-on-save.
package annindex

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/altaidevorg/letsearch/internal/apperr"
	"github.com/altaidevorg/letsearch/internal/workpool"
)

// Quantization identifies how a node's vector is stored. Only f32 is
// implemented; the field is carried in the persisted header so a future
// quantized backend can be introduced without breaking the file format.
type Quantization string

// QuantizationF32 stores vectors as uncompressed float32 slices.
const QuantizationF32 Quantization = "f32"

// Default construction parameters, matching common HNSW defaults.
const (
	DefaultM              = 16
	DefaultEfConstruction = 200
	DefaultEfSearch       = 64
)

// Options configures a new Index.
type Options struct {
	Dimensions     int
	Metric         Metric
	Quantization   Quantization
	Multi          bool
	M              int
	EfConstruction int
	Capacity       int
}

func (o Options) withDefaults() Options {
	if o.M == 0 {
		o.M = DefaultM
	}
	if o.EfConstruction == 0 {
		o.EfConstruction = DefaultEfConstruction
	}
	if o.Metric == "" {
		o.Metric = MetricCosine
	}
	if o.Quantization == "" {
		o.Quantization = QuantizationF32
	}
	if o.Capacity < 1 {
		o.Capacity = 1
	}
	return o
}

// Result is a single search hit: the caller's row key and a similarity
// score of 1.0 - distance, which is in [-1,1] for cosine metric.
type Result struct {
	Key   uint64
	Score float32
}

// Index is the process-local handle to one column's vector index. All
// exported methods are safe for concurrent use.
type Index struct {
	path string

	dimensions   int
	metric       Metric
	quantization Quantization
	multi        bool
	capacity     int

	g *graph

	mu       sync.RWMutex // serializes graph mutation (insert, delete, grow); searches share a read lock
	keysSeen map[uint64]struct{}
	nextSeq  atomic.Uint64
}

// New creates an empty index at path with the given options. The file is
// not written until Save is called.
func New(path string, opts Options) (*Index, error) {
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("annindex: dimensions must be positive: %w", apperr.ErrInvalidArgument)
	}
	opts = opts.withDefaults()
	return &Index{
		path:         path,
		dimensions:   opts.Dimensions,
		metric:       opts.Metric,
		quantization: opts.Quantization,
		multi:        opts.Multi,
		capacity:     opts.Capacity,
		g:            newGraph(opts.M, opts.EfConstruction, opts.Metric.distanceFunc(), int64(opts.Dimensions)+1),
		keysSeen:     make(map[uint64]struct{}),
	}, nil
}

// WithOptions is an alias for New retained for readability at call sites
// that pass an explicit initial capacity, mirroring the two-constructor
// shape of the on-disk format this package was adapted from.
func WithOptions(path string, opts Options, capacity int) (*Index, error) {
	opts.Capacity = capacity
	return New(path, opts)
}

// From loads a previously saved index from path.
func From(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("annindex: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("annindex: open %s: %w", path, apperr.ErrIO)
	}
	defer f.Close()

	var persisted persistedIndex
	dec := gob.NewDecoder(bufio.NewReader(f))
	if err := dec.Decode(&persisted); err != nil {
		return nil, fmt.Errorf("annindex: decode %s: %w", path, apperr.ErrProtocol)
	}

	idx := &Index{
		path:         path,
		dimensions:   persisted.Dimensions,
		metric:       persisted.Metric,
		quantization: persisted.Quantization,
		multi:        persisted.Multi,
		capacity:     persisted.Capacity,
		g: &graph{
			M:              persisted.M,
			MaxM:           persisted.M * 2,
			EfConstruction: persisted.EfConstruction,
			ML:             1.0 / math.Log(2.0),
			Nodes:          persisted.Nodes,
			EntryPoint:     persisted.EntryPoint,
			distFunc:       persisted.Metric.distanceFunc(),
		},
		keysSeen: make(map[uint64]struct{}, len(persisted.Nodes)),
	}
	idx.g.rng = rand.New(rand.NewSource(int64(persisted.Dimensions) + 1))

	var maxSeq uint64
	for _, n := range persisted.Nodes {
		idx.keysSeen[n.Key] = struct{}{}
		if seq, ok := parseSeq(n.ID); ok && seq > maxSeq {
			maxSeq = seq
		}
	}
	idx.nextSeq.Store(maxSeq)

	return idx, nil
}

// persistedIndex is the exact on-disk gob shape.
type persistedIndex struct {
	Dimensions     int
	Metric         Metric
	Quantization   Quantization
	Multi          bool
	Capacity       int
	M              int
	EfConstruction int
	EntryPoint     string
	Nodes          map[string]*node
}

// Save atomically persists the index to its path (temp file + rename).
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return fmt.Errorf("annindex: mkdir: %w", apperr.ErrIO)
	}

	tmp, err := os.CreateTemp(filepath.Dir(idx.path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("annindex: create temp: %w", apperr.ErrIO)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	persisted := persistedIndex{
		Dimensions:     idx.dimensions,
		Metric:         idx.metric,
		Quantization:   idx.quantization,
		Multi:          idx.multi,
		Capacity:       idx.capacity,
		M:              idx.g.M,
		EfConstruction: idx.g.EfConstruction,
		EntryPoint:     idx.g.EntryPoint,
		Nodes:          idx.g.Nodes,
	}
	if err := gob.NewEncoder(w).Encode(persisted); err != nil {
		tmp.Close()
		return fmt.Errorf("annindex: encode: %w", apperr.ErrIO)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("annindex: flush: %w", apperr.ErrIO)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("annindex: sync: %w", apperr.ErrIO)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("annindex: close temp: %w", apperr.ErrIO)
	}
	if err := os.Rename(tmpPath, idx.path); err != nil {
		return fmt.Errorf("annindex: rename: %w", apperr.ErrIO)
	}
	return nil
}

// addPool bounds the concurrency of Add's per-vector validation stage to
// GOMAXPROCS (see internal/workpool).
var addPool = workpool.New(0)

// Add inserts len(keys) vectors. A bounded worker pool runs the per-vector
// validation (dimension checks, key-collision checks, id assignment) in
// parallel; once every vector has passed, the graph inserts run one after
// another under the index lock (HNSW neighbor lists are not safe for
// lock-free concurrent writers). Validation does not overlap with insertion.
func (idx *Index) Add(ctx context.Context, keys []uint64, vectors [][]float32) error {
	if len(keys) != len(vectors) {
		return fmt.Errorf("annindex: keys/vectors length mismatch: %w", apperr.ErrInvalidArgument)
	}
	if len(keys) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	required := idx.g.size() + len(keys)
	if required > idx.capacity {
		idx.capacity = int(math.Ceil(float64(required) * 1.1))
	}

	type item struct {
		id  string
		key uint64
		vec []float32
	}
	items := make([]item, len(keys))

	err := addPool.Run(ctx, len(keys), func(gctx context.Context, i int) error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		default:
		}
		if len(vectors[i]) != idx.dimensions {
			return fmt.Errorf("annindex: vector %d has %d dims, want %d: %w", i, len(vectors[i]), idx.dimensions, apperr.ErrDimensionMismatch)
		}
		if !idx.multi {
			if _, exists := idx.keysSeen[keys[i]]; exists {
				return fmt.Errorf("annindex: key %d already indexed: %w", keys[i], apperr.ErrAlreadyExists)
			}
		}
		items[i] = item{
			id:  strconv.FormatUint(idx.nextSeq.Add(1), 36),
			key: keys[i],
			vec: vectors[i],
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, it := range items {
		idx.g.insert(it.id, it.key, it.vec)
		idx.keysSeen[it.key] = struct{}{}
	}
	return nil
}

// Search returns the top-count nearest neighbors to vector. ef controls the
// layer-zero candidate list width; if ef < count it is widened to 2*count.
func (idx *Index) Search(vector []float32, count, ef int) ([]Result, error) {
	if len(vector) != idx.dimensions {
		return nil, fmt.Errorf("annindex: query has %d dims, want %d: %w", len(vector), idx.dimensions, apperr.ErrDimensionMismatch)
	}
	if count < 1 {
		return nil, fmt.Errorf("annindex: count must be positive: %w", apperr.ErrInvalidArgument)
	}
	if ef < count {
		ef = count * 2
	}
	if ef < DefaultEfSearch {
		ef = DefaultEfSearch
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := idx.g.search(vector, count, ef)
	results := make([]Result, len(ids))
	for i, id := range ids {
		n := idx.g.Nodes[id]
		dist := idx.g.distance(vector, id)
		results[i] = Result{Key: n.Key, Score: 1.0 - dist}
	}
	return results, nil
}

// Delete soft-deletes every node carrying key.
func (idx *Index) Delete(key uint64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	found := false
	for id, n := range idx.g.Nodes {
		if n.Key == key && !n.Deleted {
			if err := idx.g.delete(id); err != nil {
				return err
			}
			found = true
		}
	}
	if !found {
		return fmt.Errorf("annindex: key %d: %w", key, apperr.ErrNotFound)
	}
	delete(idx.keysSeen, key)
	return nil
}

// Size returns the number of live (non-deleted) vectors in the index.
func (idx *Index) Size() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.g.size()
}

// Dimensions returns the vector dimensionality this index was built for.
func (idx *Index) Dimensions() int { return idx.dimensions }

// Metric returns the distance metric this index was built with.
func (idx *Index) Metric() Metric { return idx.metric }

// Capacity returns the current capacity hint, grown by Add as needed.
func (idx *Index) Capacity() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.capacity
}

func parseSeq(id string) (uint64, bool) {
	v, err := strconv.ParseUint(id, 36, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
