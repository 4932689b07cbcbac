// Package modelhub resolves a "hub://org/repo" model reference to an
// on-disk model directory, downloading the model's metadata and variant
// files over HTTP when they are not already cached under
// <LETSEARCH_HOME>/models/<org>/<repo>.
//
// There is no Hugging Face Hub client in the example corpus to ground this
// on, so downloads use net/http directly — the same approach kodit's
// cmd/download-model tool takes for fetching model artifacts, minus the
// subprocess/retry wrapper since this path is a plain HTTP GET per file.
package modelhub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/altaidevorg/letsearch/internal/apperr"
)

const supportedLetsearchVersion = 1

const hubRefPrefix = "hub://"

// Variant describes one exported format of a model (e.g. f32, f16).
type Variant struct {
	Name          string   `json:"name"`
	File          string   `json:"file"`
	Dimensions    int      `json:"dimensions"`
	RequiredFiles []string `json:"required_files"`
}

// Metadata is the contents of a model's metadata.json.
type Metadata struct {
	LetsearchVersion int       `json:"letsearch_version"`
	Name             string    `json:"name"`
	Variants         []Variant `json:"variants"`
}

func (m Metadata) variant(name string) (Variant, bool) {
	for _, v := range m.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// Hub downloads and caches models under a root directory
// (<LETSEARCH_HOME>/models).
type Hub struct {
	modelsDir string
	token     string
	client    *http.Client
	baseURL   string
}

// New returns a Hub rooted at modelsDir. token, if non-empty, is sent as a
// bearer credential on every download request (HF_TOKEN per spec.md §6).
func New(modelsDir, token string) *Hub {
	return &Hub{
		modelsDir: modelsDir,
		token:     token,
		client:    &http.Client{Timeout: 5 * time.Minute},
		baseURL:   "https://huggingface.co",
	}
}

// WithBaseURL overrides the hub's base URL, for tests against a local
// httptest.Server.
func (h *Hub) WithBaseURL(url string) *Hub {
	h.baseURL = url
	return h
}

// ParseRef splits a "hub://org/repo" reference into org and repo.
func ParseRef(ref string) (org, repo string, err error) {
	trimmed := strings.TrimPrefix(ref, hubRefPrefix)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("modelhub: invalid model reference %q, want hub://org/repo: %w", ref, apperr.ErrInvalidArgument)
	}
	return parts[0], parts[1], nil
}

// Resolve ensures the model named by ref and variant is present on disk,
// downloading it if necessary, and returns the model directory and the
// path to its ONNX file.
func (h *Hub) Resolve(ref, variant string) (modelDir, modelFile string, err error) {
	org, repo, err := ParseRef(ref)
	if err != nil {
		return "", "", err
	}

	dir := filepath.Join(h.modelsDir, org, repo)
	metaPath := filepath.Join(dir, "metadata.json")

	meta, err := h.loadOrFetchMetadata(dir, metaPath, org, repo)
	if err != nil {
		return "", "", err
	}

	if meta.LetsearchVersion != supportedLetsearchVersion {
		return "", "", fmt.Errorf("modelhub: %s/%s: unsupported letsearch_version %d: %w", org, repo, meta.LetsearchVersion, apperr.ErrProtocol)
	}

	v, ok := meta.variant(variant)
	if !ok {
		return "", "", fmt.Errorf("modelhub: %s/%s: variant %q not found: %w", org, repo, variant, apperr.ErrUnsupported)
	}

	variantFile := v.File
	if variantFile == "" {
		variantFile = variant + ".onnx"
	}

	if err := h.ensureFile(dir, org, repo, variantFile); err != nil {
		return "", "", err
	}
	for _, required := range v.RequiredFiles {
		if err := h.ensureFile(dir, org, repo, required); err != nil {
			return "", "", err
		}
	}
	if err := h.ensureFile(dir, org, repo, "tokenizer.json"); err != nil {
		return "", "", err
	}

	return dir, filepath.Join(dir, variantFile), nil
}

// CachedModel describes one model already resolved to local disk.
type CachedModel struct {
	Ref      string   `json:"ref"`
	Variants []string `json:"variants"`
}

// ListCached walks the hub's models directory and reports every model with
// a cached metadata.json, for the CLI's list-models command.
func (h *Hub) ListCached() ([]CachedModel, error) {
	var out []CachedModel

	orgEntries, err := os.ReadDir(h.modelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("modelhub: list %s: %w", h.modelsDir, apperr.ErrIO)
	}

	for _, orgEntry := range orgEntries {
		if !orgEntry.IsDir() {
			continue
		}
		org := orgEntry.Name()
		orgDir := filepath.Join(h.modelsDir, org)

		repoEntries, err := os.ReadDir(orgDir)
		if err != nil {
			return nil, fmt.Errorf("modelhub: list %s: %w", orgDir, apperr.ErrIO)
		}
		for _, repoEntry := range repoEntries {
			if !repoEntry.IsDir() {
				continue
			}
			repo := repoEntry.Name()
			metaPath := filepath.Join(orgDir, repo, "metadata.json")
			data, err := os.ReadFile(metaPath)
			if err != nil {
				continue
			}
			var meta Metadata
			if err := json.Unmarshal(data, &meta); err != nil {
				continue
			}
			variants := make([]string, len(meta.Variants))
			for i, v := range meta.Variants {
				variants[i] = v.Name
			}
			out = append(out, CachedModel{Ref: org + "/" + repo, Variants: variants})
		}
	}

	return out, nil
}

func (h *Hub) loadOrFetchMetadata(dir, metaPath, org, repo string) (Metadata, error) {
	if data, err := os.ReadFile(metaPath); err == nil {
		var meta Metadata
		if jsonErr := json.Unmarshal(data, &meta); jsonErr != nil {
			return Metadata{}, fmt.Errorf("modelhub: parse cached metadata.json: %w", apperr.ErrProtocol)
		}
		return meta, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Metadata{}, fmt.Errorf("modelhub: mkdir %s: %w", dir, apperr.ErrIO)
	}
	data, err := h.fetch(org, repo, "metadata.json")
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("modelhub: %s/%s: malformed metadata.json: %w", org, repo, apperr.ErrProtocol)
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return Metadata{}, fmt.Errorf("modelhub: write metadata.json: %w", apperr.ErrIO)
	}
	return meta, nil
}

func (h *Hub) ensureFile(dir, org, repo, name string) error {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := h.fetch(org, repo, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("modelhub: mkdir: %w", apperr.ErrIO)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("modelhub: write %s: %w", name, apperr.ErrIO)
	}
	return nil
}

func (h *Hub) fetch(org, repo, name string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/resolve/main/%s", h.baseURL, org, repo, name)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("modelhub: build request: %w", apperr.ErrIO)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("modelhub: fetch %s: %w", url, apperr.ErrIO)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("modelhub: %s/%s: %s not found on hub: %w", org, repo, name, apperr.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("modelhub: fetch %s: unexpected status %d: %w", url, resp.StatusCode, apperr.ErrIO)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("modelhub: read %s: %w", name, apperr.ErrIO)
	}
	return data, nil
}
