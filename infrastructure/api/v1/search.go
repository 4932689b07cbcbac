package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/altaidevorg/letsearch/infrastructure/api/middleware"
	"github.com/altaidevorg/letsearch/internal/apperr"
	"github.com/altaidevorg/letsearch/internal/collectionmgr"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// SearchRouter serves the per-collection vector search endpoint.
type SearchRouter struct {
	collections *collectionmgr.Manager
	logger      *slog.Logger
}

// NewSearchRouter returns a SearchRouter backed by collections.
func NewSearchRouter(collections *collectionmgr.Manager, logger *slog.Logger) *SearchRouter {
	return &SearchRouter{collections: collections, logger: logger}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", r.Search)
	return router
}

type searchRequest struct {
	ColumnName string `json:"column_name"`
	Query      string `json:"query"`
	Limit      *int   `json:"limit,omitempty"`
}

type searchResult struct {
	Content string  `json:"content"`
	Key     uint64  `json:"key"`
	Score   float32 `json:"score"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Search handles POST /collections/{name}/search. limit, when present, must
// fall within [1,100]; anything outside that range is a 400 rejected before
// the index is ever touched.
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	name := chi.URLParam(req, "name")

	var body searchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, start, fmt.Errorf("decode search request: %w", apperr.ErrInvalidArgument), r.logger)
		return
	}

	limit := defaultSearchLimit
	if body.Limit != nil {
		limit = *body.Limit
	}
	if limit < 1 || limit > maxSearchLimit {
		middleware.WriteError(w, req, start,
			fmt.Errorf("limit must be between 1 and %d: %w", maxSearchLimit, apperr.ErrInvalidArgument),
			r.logger)
		return
	}

	results, err := r.collections.SearchText(req.Context(), name, body.ColumnName, body.Query, limit)
	if err != nil {
		middleware.WriteError(w, req, start, err, r.logger)
		return
	}

	out := make([]searchResult, len(results))
	for i, res := range results {
		out[i] = searchResult{Content: res.Content, Key: res.Key, Score: res.Score}
	}

	middleware.WriteJSON(w, start, searchResponse{Results: out})
}
