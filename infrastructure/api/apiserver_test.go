package api

import (
	"bytes"
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
		v[(len(texts[i])-1)%f.dims] = 1
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
		Variants:         []modelhub.Variant{{Name: "f32", File: "f32.onnx", Dimensions: 8}},
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

func newTestManager(t *testing.T) *collectionmgr.Manager {
	t.Helper()
	models := modelmgr.New()
	models.SetLoader(func(path, variant string) (modelmgr.Predictor, error) {
		return &fakePredictor{dims: 8}, nil
	})
	m := collectionmgr.New(t.TempDir(), newTestHub(t), models)
	t.Cleanup(func() { _ = m.Close() })

	cfg := collection.NewConfig("docs")
	cfg.ModelName = "mys/minilm"
	cfg.ModelVariant = "f32"
	_, err := m.CreateCollection(cfg, false)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rows.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"text\": \"a\"}\n{\"text\": \"bb\"}\n{\"text\": \"ccc\"}\n"), 0o644))
	require.NoError(t, m.ImportJSONL("docs", path))
	require.NoError(t, m.EmbedColumn(context.Background(), "docs", "text", 2))
	return m
}

func TestAPIServer_RootAndCollections(t *testing.T) {
	apiSrv := NewAPIServer(":0", newTestManager(t), nil)
	handler := apiSrv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/collections/docs", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/collections/missing", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIServer_Search(t *testing.T) {
	apiSrv := NewAPIServer(":0", newTestManager(t), nil)
	handler := apiSrv.Handler()

	body, _ := json.Marshal(map[string]any{"column_name": "text", "query": "ccc"})
	req := httptest.NewRequest(http.MethodPost, "/collections/docs/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data struct {
			Results []struct {
				Content string `json:"content"`
			} `json:"results"`
		} `json:"data"`
	}
	// No limit means the default of 10, so all 3 rows come back with the
	// exact match first.
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data.Results, 3)
	require.Equal(t, "ccc", env.Data.Results[0].Content)
}

func TestAPIServer_Search_BadLimit(t *testing.T) {
	apiSrv := NewAPIServer(":0", newTestManager(t), nil)
	handler := apiSrv.Handler()

	body, _ := json.Marshal(map[string]any{"column_name": "text", "query": "ccc", "limit": 0})
	req := httptest.NewRequest(http.MethodPost, "/collections/docs/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
