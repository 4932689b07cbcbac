// Package collection implements a single letsearch collection: a SQLite
// table holding imported rows plus one HNSW index per embedded column.
// Grounded on original_source/src/collection/collection_type.rs, re-expressed
// over gorm.io/gorm + gorm.io/driver/sqlite in place of DuckDB/usearch.
package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/altaidevorg/letsearch/internal/annindex"
	"github.com/altaidevorg/letsearch/internal/apperr"
	"github.com/altaidevorg/letsearch/internal/log"
	"github.com/altaidevorg/letsearch/internal/modelmgr"
)

const configFileName = "config.json"

// indexFileName is the file each column's index is saved to, under
// <collection>/<index_dir>/<column>/.
const indexFileName = "index.bin"

// SearchResult is a single hit: the embedded column's original text, the
// row's ordinal key, and a cosine similarity score in [-1,1].
type SearchResult struct {
	Content string  `json:"content"`
	Key     uint64  `json:"key"`
	Score   float32 `json:"score"`
}

// Collection owns one SQLite database and the HNSW indexes built over its
// embedded columns. Concurrent Search calls are safe: each index locks
// internally and the database handle is shared safely. ImportJSONL,
// ImportParquet and EmbedColumn are not synchronized with each other or
// with Search, and collectionmgr does not serialize calls on one collection.
type Collection struct {
	config CollectionConfig
	dir    string
	db     *gorm.DB

	indexes map[string]*annindex.Index
}

// New creates a collection directory under <homeDir>/collections/<name>,
// opens its database, and persists config.json. If overwrite is true and
// the directory already exists, it is removed first; otherwise an existing
// directory is an error.
func New(homeDir string, cfg CollectionConfig, overwrite bool) (*Collection, error) {
	cfg = cfg.withDefaults()

	dir := filepath.Join(homeDir, "collections", cfg.Name)
	if _, err := os.Stat(dir); err == nil {
		if !overwrite {
			return nil, fmt.Errorf("collection: %s: %w", cfg.Name, apperr.ErrAlreadyExists)
		}
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("collection: remove existing %s: %w", dir, apperr.ErrIO)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("collection: mkdir %s: %w", dir, apperr.ErrIO)
	}

	db, err := openDB(filepath.Join(dir, cfg.DBPath))
	if err != nil {
		return nil, err
	}

	if err := writeConfig(dir, cfg); err != nil {
		return nil, err
	}

	return &Collection{
		config:  cfg,
		dir:     dir,
		db:      db,
		indexes: make(map[string]*annindex.Index),
	}, nil
}

// From loads a previously created collection by name, opening its database
// and every index named in its config's index_columns. Unlike the Rust
// source (which loads only index_columns[0]), every indexed column that has
// an on-disk index is loaded, so Search works against any of them.
func From(homeDir, name string) (*Collection, error) {
	dir := filepath.Join(homeDir, "collections", name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("collection: %s: %w", name, apperr.ErrNotFound)
	}

	cfg, err := readConfig(dir)
	if err != nil {
		return nil, err
	}

	db, err := openDB(filepath.Join(dir, cfg.DBPath))
	if err != nil {
		return nil, err
	}

	c := &Collection{
		config:  cfg,
		dir:     dir,
		db:      db,
		indexes: make(map[string]*annindex.Index),
	}

	for _, col := range cfg.IndexColumns {
		idxPath := filepath.Join(dir, cfg.IndexDir, col, indexFileName)
		if _, err := os.Stat(idxPath); err != nil {
			continue
		}
		idx, err := annindex.From(idxPath)
		if err != nil {
			return nil, fmt.Errorf("collection: load index %s: %w", col, err)
		}
		c.indexes[col] = idx
	}

	return c, nil
}

func openDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("collection: open %s: %w", path, apperr.ErrIO)
	}
	return db, nil
}

func writeConfig(dir string, cfg CollectionConfig) error {
	f, err := os.Create(filepath.Join(dir, configFileName))
	if err != nil {
		return fmt.Errorf("collection: create config.json: %w", apperr.ErrIO)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("collection: write config.json: %w", apperr.ErrIO)
	}
	return nil
}

func readConfig(dir string) (CollectionConfig, error) {
	path := filepath.Join(dir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return CollectionConfig{}, fmt.Errorf("collection: read config.json: %w", apperr.ErrNotFound)
	}
	var cfg CollectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CollectionConfig{}, fmt.Errorf("collection: parse config.json: %w", apperr.ErrProtocol)
	}
	return cfg.withDefaults(), nil
}

// Config returns the collection's configuration.
func (c *Collection) Config() CollectionConfig { return c.config }

// Name returns the collection's name.
func (c *Collection) Name() string { return c.config.Name }

// Dir returns the collection's on-disk directory, for collectionmgr to
// remove if a post-creation step (e.g. model resolution) fails.
func (c *Collection) Dir() string { return c.dir }

// RequestedModel returns the (name, variant) of the embedding model this
// collection's config asks for, for collectionmgr to resolve via modelhub
// and load via modelmgr before any EmbedColumn/Search call.
func (c *Collection) RequestedModel() (name, variant string) {
	return c.config.ModelName, c.config.ModelVariant
}

// GetSingleColumn returns up to batchSize values of column, in a stable
// rowid order, starting at offset. The ordering must match the one used
// when the column was embedded, since index keys are positions in this
// ordering rather than SQLite rowids.
func (c *Collection) GetSingleColumn(column string, batchSize, offset int) ([]string, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("collection: batchSize must be positive: %w", apperr.ErrInvalidArgument)
	}
	if err := validateIdentifiers(column); err != nil {
		return nil, err
	}

	var values []string
	err := c.db.Table(quoteIdent(c.config.Name)).
		Order("rowid").
		Limit(batchSize).
		Offset(offset).
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("collection: get column %s: %w", column, apperr.ErrIO)
	}
	return values, nil
}

func (c *Collection) countRows() (int64, error) {
	var n int64
	if err := c.db.Table(quoteIdent(c.config.Name)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("collection: count rows: %w", apperr.ErrIO)
	}
	return n, nil
}

// EmbedColumn embeds every row of column in batches of batchSize (0 means
// use mgr's default BatchSize), building or extending that column's HNSW
// index. Unlike the Rust source's hard-coded 2048/batch_size loop bound,
// the row count is read once via COUNT(*) and the loop runs until every row
// is covered.
func (c *Collection) EmbedColumn(ctx context.Context, column string, batchSize int, mgr *modelmgr.Manager, modelID modelmgr.ModelID) error {
	if err := validateIdentifiers(column); err != nil {
		return err
	}
	if batchSize < 1 {
		batchSize = mgr.BatchSize()
	}

	idx, err := c.indexForColumn(column, mgr, modelID)
	if err != nil {
		return err
	}

	total, err := c.countRows()
	if err != nil {
		return err
	}

	start := time.Now()
	log.Default().Info("embedding column", "collection", c.config.Name, "column", column, "rows", total, "batch_size", batchSize)

	var embedded int64
	for offset := int64(0); offset < total; offset += int64(batchSize) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		texts, err := c.GetSingleColumn(column, batchSize, int(offset))
		if err != nil {
			return err
		}
		if len(texts) == 0 {
			break
		}

		vectors, err := mgr.Predict(ctx, modelID, texts)
		if err != nil {
			return fmt.Errorf("collection: predict batch at offset %d: %w", offset, err)
		}

		keys := make([]uint64, len(texts))
		for i := range keys {
			keys[i] = uint64(offset) + uint64(i)
		}
		if err := idx.Add(ctx, keys, vectors); err != nil {
			return fmt.Errorf("collection: index batch at offset %d: %w", offset, err)
		}

		embedded += int64(len(texts))
		elapsed := time.Since(start)
		rate := float64(embedded) / elapsed.Seconds()
		log.Default().Debug("embedded batch", "offset", offset, "embedded", embedded, "total", total, "rows_per_sec", rate)
	}

	if err := idx.Save(); err != nil {
		return err
	}
	log.Default().Info("embedding complete", "collection", c.config.Name, "column", column, "rows", embedded, "duration", time.Since(start))
	return nil
}

func (c *Collection) indexForColumn(column string, mgr *modelmgr.Manager, modelID modelmgr.ModelID) (*annindex.Index, error) {
	if idx, ok := c.indexes[column]; ok {
		return idx, nil
	}

	dim, err := mgr.Dimensions(modelID)
	if err != nil {
		return nil, fmt.Errorf("collection: model dimensions: %w", err)
	}

	idxPath := filepath.Join(c.dir, c.config.IndexDir, column, indexFileName)
	idx, err := annindex.New(idxPath, annindex.Options{
		Dimensions: dim,
		Metric:     annindex.MetricCosine,
		Multi:      true,
	})
	if err != nil {
		return nil, err
	}

	c.indexes[column] = idx
	if !containsString(c.config.IndexColumns, column) {
		c.config.IndexColumns = append(c.config.IndexColumns, column)
		if err := writeConfig(c.dir, c.config); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Search returns the count nearest rows to vector in column's index.
func (c *Collection) Search(column string, vector []float32, count int) ([]SearchResult, error) {
	if err := validateIdentifiers(column); err != nil {
		return nil, err
	}
	idx, ok := c.indexes[column]
	if !ok {
		return nil, fmt.Errorf("collection: column %s has no index: %w", column, apperr.ErrNotFound)
	}

	hits, err := idx.Search(vector, count, 0)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		var content string
		err := c.db.Table(quoteIdent(c.config.Name)).
			Select(column).
			Order("rowid").
			Limit(1).
			Offset(int(h.Key)).
			Scan(&content).Error
		if err != nil {
			return nil, fmt.Errorf("collection: fetch row %d: %w", h.Key, apperr.ErrIO)
		}
		results = append(results, SearchResult{Content: content, Key: h.Key, Score: h.Score})
	}
	return results, nil
}

// Close releases the collection's database handle.
func (c *Collection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("collection: close: %w", apperr.ErrIO)
	}
	return sqlDB.Close()
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
