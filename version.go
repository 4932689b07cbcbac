// Package letsearch is a single-binary vector search engine: it indexes
// JSONL/Parquet datasets into on-disk HNSW ANN indexes over local or
// hub-hosted embedding models, and serves them over a small HTTP API.
package letsearch

// Version is the engine's release version, reported by the root health
// endpoint and the CLI's --version flag.
const Version = "0.1.0"
