package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/altaidevorg/letsearch/internal/collection"
	"github.com/altaidevorg/letsearch/internal/collectionmgr"
	"github.com/altaidevorg/letsearch/internal/modelhub"
	"github.com/altaidevorg/letsearch/internal/modelmgr"
)

type fakePredictor struct{ dims int }

func (f *fakePredictor) Predict(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dims)
		idx := (len(texts[i]) - 1) % f.dims
		v[idx] = 1
		out[i] = v
	}
	return out, nil
}
func (f *fakePredictor) Dimensions() int { return f.dims }
func (f *fakePredictor) Close() error    { return nil }

func newTestHub(t *testing.T) *modelhub.Hub {
	t.Helper()
	meta := modelhub.Metadata{
		LetsearchVersion: 1,
		Name:             "mys/minilm",
		Variants: []modelhub.Variant{
			{Name: "f32", File: "f32.onnx", Dimensions: 8},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/mys/minilm/resolve/main/metadata.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(meta)
	})
	mux.HandleFunc("/mys/minilm/resolve/main/f32.onnx", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake-onnx"))
	})
	mux.HandleFunc("/mys/minilm/resolve/main/tokenizer.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return modelhub.New(t.TempDir(), "").WithBaseURL(srv.URL)
}

func newTestModels(dims int) *modelmgr.Manager {
	mgr := modelmgr.New()
	mgr.SetLoader(func(path, variant string) (modelmgr.Predictor, error) {
		return &fakePredictor{dims: dims}, nil
	})
	return mgr
}

func writeJSONL(t *testing.T, rows []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	content := ""
	for _, r := range rows {
		content += r + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newPopulatedManager returns a collectionmgr.Manager with a "docs" collection
// imported and embedded, ready to search through the HTTP routers.
func newPopulatedManager(t *testing.T) *collectionmgr.Manager {
	t.Helper()
	m := collectionmgr.New(t.TempDir(), newTestHub(t), newTestModels(8))
	t.Cleanup(func() { _ = m.Close() })

	cfg := collection.NewConfig("docs")
	cfg.ModelName = "mys/minilm"
	cfg.ModelVariant = "f32"
	_, err := m.CreateCollection(cfg, false)
	require.NoError(t, err)

	path := writeJSONL(t, []string{
		`{"text": "a"}`,
		`{"text": "bb"}`,
		`{"text": "ccc"}`,
	})
	require.NoError(t, m.ImportJSONL("docs", path))
	require.NoError(t, m.EmbedColumn(context.Background(), "docs", "text", 2))
	return m
}

// newEmptyManager returns a collectionmgr.Manager with no collections registered.
func newEmptyManager(t *testing.T) *collectionmgr.Manager {
	t.Helper()
	m := collectionmgr.New(t.TempDir(), newTestHub(t), newTestModels(8))
	t.Cleanup(func() { _ = m.Close() })
	return m
}
