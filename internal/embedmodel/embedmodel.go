// Package embedmodel wraps a single ONNX transformer as a text-embedding
// model via the hugot Go ONNX Runtime bindings.
//
// ONNX Runtime only permits one active session per process, so every Model
// loaded by this package shares a single lazily-created session guarded by
// a mutex; inference itself is serialized on that same mutex because ORT
// sessions are not safe for concurrent Run calls.
package embedmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/x448/float16"

	"github.com/altaidevorg/letsearch/internal/apperr"
)

// MaxBatchSize bounds how many texts a single Predict call accepts.
const MaxBatchSize = 32

// OutputDType is a model's embedding output precision, mirroring
// original_source/src/model/model_utils.rs's ModelOutputDType: the Rust
// source introspects this from the loaded ONNX graph's output tensor type,
// since a single model.onnx there can carry any dtype. This engine's hub
// instead names dtype directly in the variant it resolves (f32.onnx,
// f16.onnx, i8.onnx per metadata.json), so OutputDType is derived from the
// requested variant rather than inspected from the graph.
type OutputDType int

// OutputDType values.
const (
	OutputDTypeF32 OutputDType = iota
	OutputDTypeF16
	OutputDTypeInt8
)

func (d OutputDType) String() string {
	switch d {
	case OutputDTypeF16:
		return "f16"
	case OutputDTypeInt8:
		return "int8"
	default:
		return "f32"
	}
}

// dtypeForVariant classifies a variant name the way metadata.json's variant
// entries are named by the model hub.
func dtypeForVariant(variant string) OutputDType {
	switch strings.ToLower(variant) {
	case "f16", "fp16", "half":
		return OutputDTypeF16
	case "i8", "int8":
		return OutputDTypeInt8
	default:
		return OutputDTypeF32
	}
}

// ortEnv is the process-wide ONNX Runtime session. Every Model's pipeline is
// created against this single session; loading a second model does not
// start a second ORT runtime.
var ortEnv struct {
	session *hugot.Session
	mu      sync.Mutex
	ready   bool
}

func ensureSession() (*hugot.Session, error) {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	if ortEnv.ready {
		return ortEnv.session, nil
	}

	session, err := newHugotSession()
	if err != nil {
		return nil, fmt.Errorf("embedmodel: create ORT session: %w", err)
	}
	ortEnv.session = session
	ortEnv.ready = true
	return session, nil
}

// Model is one loaded ONNX embedding model, bound to a specific variant
// (e.g. "f32", "f16") of a model directory laid out per the hub's
// metadata.json / <variant>.onnx / tokenizer.json convention.
type Model struct {
	path              string
	variant           string
	dimensions        int
	outputDType       OutputDType
	needsTokenTypeIDs bool
	pipeline          *pipelines.FeatureExtractionPipeline
}

// Load constructs a Model from a model directory and variant name. modelDir
// must contain "<variant>.onnx" and "tokenizer.json".
func Load(modelDir, variant string) (*Model, error) {
	session, err := ensureSession()
	if err != nil {
		return nil, err
	}

	pipelineDir, err := stageModelDir(modelDir, variant)
	if err != nil {
		return nil, err
	}

	cfg := hugot.FeatureExtractionConfig{
		ModelPath: pipelineDir,
		Name:      fmt.Sprintf("%s-%s", filepath.Base(modelDir), variant),
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	}

	ortEnv.mu.Lock()
	pipeline, err := hugot.NewPipeline(session, cfg)
	ortEnv.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("embedmodel: create pipeline for %s: %w", modelDir, err)
	}

	m := &Model{
		path:              modelDir,
		variant:           variant,
		pipeline:          pipeline,
		outputDType:       dtypeForVariant(variant),
		needsTokenTypeIDs: detectNeedsTokenTypeIDs(modelDir),
	}

	dim, err := m.probeDimensions()
	if err != nil {
		return nil, err
	}
	m.dimensions = dim

	return m, nil
}

// detectNeedsTokenTypeIDs reports whether the model at dir is a token-type
// architecture (BERT-style), mirroring bert_onnx.rs's session-input scan
// for "token_type_ids" — hugot's pipeline builds whichever BERT inputs the
// graph declares internally, so this is informational rather than something
// this package must feed back into RunPipeline, but Predict's callers (e.g.
// diagnostics, model listing) can use it to tell BERT-family models apart
// from architectures (DistilBERT, RoBERTa) that don't use token types.
// config.json's type_vocab_size is the standard HF signal for this: BERT
// models carry a token-type embedding table; architectures without one omit
// the field entirely.
func detectNeedsTokenTypeIDs(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return false
	}
	var cfg struct {
		TypeVocabSize int `json:"type_vocab_size"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return false
	}
	return cfg.TypeVocabSize > 1
}

// probeDimensions runs a single throwaway inference to discover the
// pipeline's output width; hugot does not expose this statically.
func (m *Model) probeDimensions() (int, error) {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	result, err := m.pipeline.RunPipeline([]string{"."})
	if err != nil {
		return 0, fmt.Errorf("embedmodel: probe dimensions: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return 0, fmt.Errorf("embedmodel: model %s produced an empty embedding: %w", m.path, apperr.ErrUnsupported)
	}
	return len(result.Embeddings[0]), nil
}

// stageModelDir bridges the hub's "<variant>.onnx" naming to the
// "model.onnx" filename hugot's pipeline loader expects, by symlinking the
// requested variant (and tokenizer.json) into a per-variant staging
// directory next to the model. If a "model.onnx" is already present (a
// single-variant model directory), modelDir is used as-is.
func stageModelDir(modelDir, variant string) (string, error) {
	if _, err := os.Stat(filepath.Join(modelDir, "model.onnx")); err == nil {
		return modelDir, nil
	}

	variantFile := filepath.Join(modelDir, variant+".onnx")
	if _, err := os.Stat(variantFile); err != nil {
		return "", fmt.Errorf("embedmodel: variant %q not found in %s: %w", variant, modelDir, apperr.ErrNotFound)
	}

	stageDir := filepath.Join(modelDir, ".hugot-"+variant)
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return "", fmt.Errorf("embedmodel: stage dir: %w", apperr.ErrIO)
	}

	links := map[string]string{
		"model.onnx":     variantFile,
		"tokenizer.json": filepath.Join(modelDir, "tokenizer.json"),
	}
	for name, target := range links {
		link := filepath.Join(stageDir, name)
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		if err := os.Symlink(target, link); err != nil {
			return "", fmt.Errorf("embedmodel: link %s: %w", name, apperr.ErrIO)
		}
	}
	return stageDir, nil
}

// Dimensions returns the model's output embedding width (original_source's
// output_dim()).
func (m *Model) Dimensions() int { return m.dimensions }

// Variant returns the loaded variant name (e.g. "f32").
func (m *Model) Variant() string { return m.variant }

// Path returns the model directory this Model was loaded from.
func (m *Model) Path() string { return m.path }

// OutputDType returns the model's embedding output precision.
func (m *Model) OutputDType() OutputDType { return m.outputDType }

// NeedsTokenTypeIDs reports whether the loaded model is a token-type
// (BERT-family) architecture.
func (m *Model) NeedsTokenTypeIDs() bool { return m.needsTokenTypeIDs }

// Predict embeds texts, returning one vector per input in order. len(texts)
// must not exceed MaxBatchSize; callers batch larger inputs themselves.
// Dispatches on the model's output dtype exactly as model_manager.rs's
// predict() dispatches to predict_f16/predict_f32 on output_dtype().
func (m *Model) Predict(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("embedmodel: %d texts exceeds batch size %d: %w", len(texts), MaxBatchSize, apperr.ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch m.outputDType {
	case OutputDTypeF32:
		return m.predictF32(texts)
	case OutputDTypeF16:
		return m.predictF16(texts)
	default:
		return nil, fmt.Errorf("embedmodel: %s dynamic quantization not yet implemented: %w", m.outputDType, apperr.ErrUnsupported)
	}
}

// predictF32 runs the pipeline and returns its embeddings unmodified.
func (m *Model) predictF32(texts []string) ([][]float32, error) {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	result, err := m.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("embedmodel: run pipeline: %w", err)
	}
	return result.Embeddings, nil
}

// predictF16 runs the pipeline and round-trips every component through
// float16, matching the numeric effect of the Rust source's predict_f16
// (which extracts a genuinely f16-typed tensor): hugot's pipeline API always
// returns float32, so the f16 model's precision loss is reproduced here
// rather than inherited from a raw tensor extraction.
func (m *Model) predictF16(texts []string) ([][]float32, error) {
	vectors, err := m.predictF32(texts)
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		for i, x := range v {
			v[i] = float16.Fromfloat32(x).Float32()
		}
	}
	return vectors, nil
}

// Close releases resources held by the model. The ORT session itself is
// process-global and is not destroyed here.
func (m *Model) Close() error {
	return nil
}
