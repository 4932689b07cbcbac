package collection

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/altaidevorg/letsearch/internal/modelmgr"
)

type fakePredictor struct {
	dims int
}

// Predict returns a one-hot vector keyed by text length, so cosine search
// can discriminate between texts of distinct lengths in tests.
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

func newTestManager(t *testing.T, dims int) (*modelmgr.Manager, modelmgr.ModelID) {
	t.Helper()
	mgr := modelmgr.New()
	mgr.SetLoader(func(path, variant string) (modelmgr.Predictor, error) {
		return &fakePredictor{dims: dims}, nil
	})
	id, err := mgr.LoadModel("fake-model", "f32")
	require.NoError(t, err)
	return mgr, id
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

func TestCollection_NewAndFrom(t *testing.T) {
	home := t.TempDir()
	cfg := NewConfig("docs")

	c, err := New(home, cfg, false)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	loaded, err := From(home, "docs")
	require.NoError(t, err)
	require.Equal(t, "docs", loaded.Name())
	require.NoError(t, loaded.Close())
}

func TestCollection_New_AlreadyExists(t *testing.T) {
	home := t.TempDir()
	cfg := NewConfig("docs")

	c, err := New(home, cfg, false)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = New(home, cfg, false)
	require.Error(t, err)
}

func TestCollection_New_Overwrite(t *testing.T) {
	home := t.TempDir()
	cfg := NewConfig("docs")

	c1, err := New(home, cfg, false)
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	c2, err := New(home, cfg, true)
	require.NoError(t, err)
	require.NoError(t, c2.Close())
}

func TestCollection_ImportJSONLAndGetSingleColumn(t *testing.T) {
	home := t.TempDir()
	cfg := NewConfig("docs")
	c, err := New(home, cfg, false)
	require.NoError(t, err)
	defer c.Close()

	path := writeJSONL(t, []string{
		`{"text": "hello world", "id": 1}`,
		`{"text": "goodbye world", "id": 2}`,
		`{"text": "a third row", "id": 3}`,
	})
	require.NoError(t, c.ImportJSONL(path))

	values, err := c.GetSingleColumn("text", 10, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"hello world", "goodbye world", "a third row"}, values)

	values, err = c.GetSingleColumn("text", 2, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"goodbye world", "a third row"}, values)
}

func TestCollection_ImportJSONL_Empty(t *testing.T) {
	home := t.TempDir()
	c, err := New(home, NewConfig("docs"), false)
	require.NoError(t, err)
	defer c.Close()

	path := writeJSONL(t, nil)
	err = c.ImportJSONL(path)
	require.Error(t, err)
}

func TestCollection_EmbedColumnAndSearch(t *testing.T) {
	home := t.TempDir()
	cfg := NewConfig("docs")
	c, err := New(home, cfg, false)
	require.NoError(t, err)
	defer c.Close()

	path := writeJSONL(t, []string{
		`{"text": "a"}`,
		`{"text": "bb"}`,
		`{"text": "ccc"}`,
		`{"text": "dddd"}`,
		`{"text": "eeeee"}`,
	})
	require.NoError(t, c.ImportJSONL(path))

	mgr, modelID := newTestManager(t, 8)

	require.NoError(t, c.EmbedColumn(context.Background(), "text", 2, mgr, modelID))

	query := make([]float32, 8)
	query[2] = 1 // one-hot for length 3, matching "ccc"
	results, err := c.Search("text", query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "ccc", results[0].Content)
}

func TestCollection_Search_UnknownColumn(t *testing.T) {
	home := t.TempDir()
	c, err := New(home, NewConfig("docs"), false)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Search("missing", []float32{1, 2}, 1)
	require.Error(t, err)
}

func TestCollection_Search_ConcurrentReadersAgree(t *testing.T) {
	home := t.TempDir()
	c, err := New(home, NewConfig("docs"), false)
	require.NoError(t, err)
	defer c.Close()

	path := writeJSONL(t, []string{
		`{"text": "a"}`,
		`{"text": "bb"}`,
		`{"text": "ccc"}`,
		`{"text": "dddd"}`,
		`{"text": "eeeee"}`,
	})
	require.NoError(t, c.ImportJSONL(path))

	mgr, modelID := newTestManager(t, 8)
	require.NoError(t, c.EmbedColumn(context.Background(), "text", 2, mgr, modelID))

	query := make([]float32, 8)
	query[2] = 1 // one-hot for length 3, matching "ccc"

	const readers = 16
	type outcome struct {
		results []SearchResult
		err     error
	}
	out := make(chan outcome, readers)
	for i := 0; i < readers; i++ {
		go func() {
			results, err := c.Search("text", query, 1)
			out <- outcome{results: results, err: err}
		}()
	}

	first := <-out
	require.NoError(t, first.err)
	require.Len(t, first.results, 1)
	for i := 1; i < readers; i++ {
		o := <-out
		require.NoError(t, o.err)
		require.Equal(t, first.results, o.results)
	}
}

func TestCollection_RequestedModel(t *testing.T) {
	cfg := NewConfig("docs")
	cfg.ModelName = "mys/other"
	cfg.ModelVariant = "f16"
	home := t.TempDir()
	c, err := New(home, cfg, false)
	require.NoError(t, err)
	defer c.Close()

	name, variant := c.RequestedModel()
	require.Equal(t, "mys/other", name)
	require.Equal(t, "f16", variant)
}
