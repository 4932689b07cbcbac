// Package collectionmgr is the process-wide registry of loaded collections,
// grounded on original_source/src/collection/collection_manager.rs
// (RwLock<HashMap<String, Arc<RwLock<Collection>>>>) and on kodit's top-level
// Client shape: a struct that owns a registry plus the shared infrastructure
// (model hub, model manager) its operations need.
package collectionmgr

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/altaidevorg/letsearch/internal/apperr"
	"github.com/altaidevorg/letsearch/internal/collection"
	"github.com/altaidevorg/letsearch/internal/modelhub"
	"github.com/altaidevorg/letsearch/internal/modelmgr"
)

// Manager owns every loaded collection plus the shared Model Manager and
// Model Hub used to resolve and load each collection's embedding model.
//
// Lock ordering: Manager's own lock is always acquired first; any call into
// Models (LoadModel/Predict) happens after releasing it, never while held —
// the reverse order would deadlock against modelmgr.Manager's own documented
// ordering rule.
type Manager struct {
	homeDir string
	hub     *modelhub.Hub
	models  *modelmgr.Manager

	mu          sync.RWMutex
	collections map[string]*collection.Collection
}

// New returns an empty Manager rooted at homeDir, using hub to resolve
// models and models to load and run them.
func New(homeDir string, hub *modelhub.Hub, models *modelmgr.Manager) *Manager {
	return &Manager{
		homeDir:     homeDir,
		hub:         hub,
		models:      models,
		collections: make(map[string]*collection.Collection),
	}
}

// CreateCollection creates a new collection on disk, ensures its requested
// embedding model is resolved and loaded in the Model Manager, and registers
// it. A model that fails to resolve (unknown hub ref, unsupported variant)
// leaves no collection directory behind, matching the Rust source's
// all-or-nothing create_collection.
func (m *Manager) CreateCollection(cfg collection.CollectionConfig, overwrite bool) (*collection.Collection, error) {
	c, err := collection.New(m.homeDir, cfg, overwrite)
	if err != nil {
		return nil, err
	}

	if _, err := m.resolveModel(c); err != nil {
		_ = c.Close()
		_ = os.RemoveAll(c.Dir())
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.Name()] = c
	return c, nil
}

// LoadCollection loads an existing collection by name from disk, or returns
// the already-registered instance if it was loaded before.
func (m *Manager) LoadCollection(name string) (*collection.Collection, error) {
	m.mu.RLock()
	if c, ok := m.collections[name]; ok {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()

	c, err := collection.From(m.homeDir, name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.collections[name]; ok {
		_ = c.Close()
		return existing, nil
	}
	m.collections[name] = c
	return c, nil
}

// GetCollections returns every registered collection's name, sorted.
func (m *Manager) GetCollections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetCollectionConfigs returns every registered collection's config.
func (m *Manager) GetCollectionConfigs() []collection.CollectionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	configs := make([]collection.CollectionConfig, 0, len(m.collections))
	for _, c := range m.collections {
		configs = append(configs, c.Config())
	}
	return configs
}

// GetCollectionConfig returns the named collection's config.
func (m *Manager) GetCollectionConfig(name string) (collection.CollectionConfig, error) {
	c, err := m.getLoaded(name)
	if err != nil {
		return collection.CollectionConfig{}, err
	}
	return c.Config(), nil
}

// ImportJSONL imports rows into the named, already-loaded collection.
func (m *Manager) ImportJSONL(name, path string) error {
	c, err := m.getLoaded(name)
	if err != nil {
		return err
	}
	return c.ImportJSONL(path)
}

// ImportParquet imports rows into the named, already-loaded collection.
func (m *Manager) ImportParquet(name, path string) error {
	c, err := m.getLoaded(name)
	if err != nil {
		return err
	}
	return c.ImportParquet(path)
}

// EmbedColumn resolves and loads the collection's configured embedding
// model (downloading it via the Model Hub if necessary) and embeds column.
func (m *Manager) EmbedColumn(ctx context.Context, name, column string, batchSize int) error {
	c, err := m.getLoaded(name)
	if err != nil {
		return err
	}
	modelID, err := m.resolveModel(c)
	if err != nil {
		return err
	}
	return c.EmbedColumn(ctx, column, batchSize, m.models, modelID)
}

// Search runs a vector search against the named collection's column index.
func (m *Manager) Search(name, column string, vector []float32, count int) ([]collection.SearchResult, error) {
	c, err := m.getLoaded(name)
	if err != nil {
		return nil, err
	}
	return c.Search(column, vector, count)
}

// SearchText embeds query with the collection's resolved model and runs a
// vector search against column's index — the path the HTTP search endpoint
// uses, since callers submit text, not a precomputed vector.
func (m *Manager) SearchText(ctx context.Context, name, column, query string, count int) ([]collection.SearchResult, error) {
	c, err := m.getLoaded(name)
	if err != nil {
		return nil, err
	}
	modelID, err := m.resolveModel(c)
	if err != nil {
		return nil, err
	}
	vectors, err := m.models.Predict(ctx, modelID, []string{query})
	if err != nil {
		return nil, fmt.Errorf("collectionmgr: embed query: %w", err)
	}
	return c.Search(column, vectors[0], count)
}

func (m *Manager) resolveModel(c *collection.Collection) (modelmgr.ModelID, error) {
	name, variant := c.RequestedModel()
	modelDir, _, err := m.hub.Resolve(hubRef(name), variant)
	if err != nil {
		return 0, fmt.Errorf("collectionmgr: resolve model %s/%s: %w", name, variant, err)
	}
	return m.models.LoadModel(modelDir, variant)
}

func (m *Manager) getLoaded(name string) (*collection.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("collectionmgr: %s: %w", name, apperr.ErrNotFound)
	}
	return c, nil
}

// hubRef normalizes a collection config's model_name (e.g. "mys/minilm",
// matching collection_utils.rs's bare org/repo default) into a modelhub ref.
func hubRef(name string) string {
	if strings.HasPrefix(name, "hub://") {
		return name
	}
	return "hub://" + name
}

// Close releases every registered collection.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, c := range m.collections {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
