package modelhub

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/altaidevorg/letsearch/internal/apperr"
)

func newTestServer(t *testing.T, meta Metadata, files map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mys/minilm/resolve/main/metadata.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(meta)
	})
	for name, content := range files {
		content := content
		mux.HandleFunc("/mys/minilm/resolve/main/"+name, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(content))
		})
	}
	return httptest.NewServer(mux)
}

func TestHub_Resolve_DownloadsAndCaches(t *testing.T) {
	meta := Metadata{
		LetsearchVersion: 1,
		Name:             "mys/minilm",
		Variants: []Variant{
			{Name: "f32", File: "f32.onnx", Dimensions: 384},
		},
	}
	files := map[string]string{
		"f32.onnx":       "fake-onnx-bytes",
		"tokenizer.json": `{"model":"wordpiece"}`,
	}
	srv := newTestServer(t, meta, files)
	defer srv.Close()

	modelsDir := t.TempDir()
	hub := New(modelsDir, "").WithBaseURL(srv.URL)

	dir, file, err := hub.Resolve("hub://mys/minilm", "f32")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(modelsDir, "mys", "minilm"), dir)
	require.Equal(t, filepath.Join(dir, "f32.onnx"), file)

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Equal(t, "fake-onnx-bytes", string(data))

	// Second resolve should be served from cache without re-fetching.
	dir2, file2, err := hub.Resolve("hub://mys/minilm", "f32")
	require.NoError(t, err)
	require.Equal(t, dir, dir2)
	require.Equal(t, file, file2)
}

func TestHub_Resolve_UnsupportedVersion(t *testing.T) {
	meta := Metadata{LetsearchVersion: 2, Variants: []Variant{{Name: "f32", File: "f32.onnx"}}}
	srv := newTestServer(t, meta, map[string]string{"f32.onnx": "x", "tokenizer.json": "{}"})
	defer srv.Close()

	hub := New(t.TempDir(), "").WithBaseURL(srv.URL)
	_, _, err := hub.Resolve("hub://mys/minilm", "f32")
	require.ErrorIs(t, err, apperr.ErrProtocol)
}

func TestHub_Resolve_UnknownVariant(t *testing.T) {
	meta := Metadata{LetsearchVersion: 1, Variants: []Variant{{Name: "f32", File: "f32.onnx"}}}
	srv := newTestServer(t, meta, map[string]string{"f32.onnx": "x", "tokenizer.json": "{}"})
	defer srv.Close()

	hub := New(t.TempDir(), "").WithBaseURL(srv.URL)
	_, _, err := hub.Resolve("hub://mys/minilm", "int8")
	require.ErrorIs(t, err, apperr.ErrUnsupported)
}

func TestHub_ListCached(t *testing.T) {
	meta := Metadata{
		LetsearchVersion: 1,
		Name:             "mys/minilm",
		Variants: []Variant{
			{Name: "f32", File: "f32.onnx", Dimensions: 384},
		},
	}
	files := map[string]string{
		"f32.onnx":       "fake-onnx-bytes",
		"tokenizer.json": `{"model":"wordpiece"}`,
	}
	srv := newTestServer(t, meta, files)
	defer srv.Close()

	modelsDir := t.TempDir()
	hub := New(modelsDir, "").WithBaseURL(srv.URL)

	cached, err := hub.ListCached()
	require.NoError(t, err)
	require.Empty(t, cached)

	_, _, err = hub.Resolve("hub://mys/minilm", "f32")
	require.NoError(t, err)

	cached, err = hub.ListCached()
	require.NoError(t, err)
	require.Len(t, cached, 1)
	require.Equal(t, "mys/minilm", cached[0].Ref)
	require.Equal(t, []string{"f32"}, cached[0].Variants)
}

func TestHub_ListCached_MissingModelsDir(t *testing.T) {
	hub := New(filepath.Join(t.TempDir(), "does-not-exist"), "")
	cached, err := hub.ListCached()
	require.NoError(t, err)
	require.Empty(t, cached)
}

func TestParseRef(t *testing.T) {
	org, repo, err := ParseRef("hub://mys/minilm")
	require.NoError(t, err)
	require.Equal(t, "mys", org)
	require.Equal(t, "minilm", repo)

	_, _, err = ParseRef("not-a-ref")
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))
}
