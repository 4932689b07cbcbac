// Package modelmgr is the process-wide registry of loaded embedding
// models. Each loaded (path, variant) pair is assigned a monotonically
// increasing numeric handle; Collections reference models by this handle
// rather than holding a pointer directly, mirroring the original Rust
// ModelManager's HashMap<u32, Arc<RwLock<dyn ONNXModel>>> registry.
package modelmgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/altaidevorg/letsearch/internal/apperr"
	"github.com/altaidevorg/letsearch/internal/embedmodel"
)

// ModelID is the numeric handle models are referenced by after loading.
type ModelID uint32

// Predictor is the subset of *embedmodel.Model the registry depends on,
// exported so callers (collection tests in particular) can register a fake
// loader without needing a real ONNX Runtime session.
type Predictor interface {
	Predict(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

type handle = Predictor

type dedupKey struct {
	path    string
	variant string
}

// Manager holds every model loaded by this process. It is safe for
// concurrent use; LoadModel only takes the write lock to register a new
// handle, never while the (potentially slow) model load itself runs, and
// Predict only takes a read lock to fetch the handle before doing
// inference outside the lock.
//
// Lock ordering: callers that also hold a Collection Manager lock must
// acquire it before Manager's lock, never after — see collectionmgr.
type Manager struct {
	mu     sync.RWMutex
	models map[ModelID]handle
	dedup  map[dedupKey]ModelID
	nextID ModelID

	load func(path, variant string) (handle, error)
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		models: make(map[ModelID]handle),
		dedup:  make(map[dedupKey]ModelID),
		load: func(path, variant string) (handle, error) {
			return embedmodel.Load(path, variant)
		},
	}
}

// LoadModel loads the model at path/variant, returning its existing handle
// if it was already loaded. The (possibly slow) load itself runs without
// holding the manager lock; only registry bookkeeping is locked.
func (m *Manager) LoadModel(path, variant string) (ModelID, error) {
	key := dedupKey{path: path, variant: variant}

	m.mu.RLock()
	if id, ok := m.dedup[key]; ok {
		m.mu.RUnlock()
		return id, nil
	}
	m.mu.RUnlock()

	model, err := m.load(path, variant)
	if err != nil {
		return 0, fmt.Errorf("modelmgr: load %s (%s): %w", path, variant, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the write lock: a concurrent LoadModel for the same
	// key may have won the race while this one was loading.
	if id, ok := m.dedup[key]; ok {
		_ = model.Close()
		return id, nil
	}

	m.nextID++
	id := m.nextID
	m.models[id] = model
	m.dedup[key] = id
	return id, nil
}

// Predict runs inference for the model identified by id. The registry lock
// is released before RunPipeline executes so a long embedding call never
// blocks unrelated LoadModel/Predict calls on other models.
func (m *Manager) Predict(ctx context.Context, id ModelID, texts []string) ([][]float32, error) {
	m.mu.RLock()
	model, ok := m.models[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("modelmgr: model %d: %w", id, apperr.ErrNotFound)
	}
	return model.Predict(ctx, texts)
}

// Dimensions returns the output embedding width for the given model.
func (m *Manager) Dimensions(id ModelID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	model, ok := m.models[id]
	if !ok {
		return 0, fmt.Errorf("modelmgr: model %d: %w", id, apperr.ErrNotFound)
	}
	return model.Dimensions(), nil
}

// BatchSize returns the maximum texts per Predict call, shared across all
// loaded models.
func (m *Manager) BatchSize() int { return embedmodel.MaxBatchSize }

// SetLoader overrides how LoadModel resolves a (path, variant) pair into a
// Predictor. Intended for tests that need to avoid a real ONNX Runtime
// session; production callers should rely on the default loader from New.
func (m *Manager) SetLoader(load func(path, variant string) (Predictor, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.load = load
}

// Close releases every loaded model.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, model := range m.models {
		if err := model.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
