package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/altaidevorg/letsearch/infrastructure/api/middleware"
	"github.com/altaidevorg/letsearch/internal/collectionmgr"
)

// CollectionsRouter serves collection listing/description endpoints.
type CollectionsRouter struct {
	collections *collectionmgr.Manager
	logger      *slog.Logger
}

// NewCollectionsRouter returns a CollectionsRouter backed by collections.
func NewCollectionsRouter(collections *collectionmgr.Manager, logger *slog.Logger) *CollectionsRouter {
	return &CollectionsRouter{collections: collections, logger: logger}
}

// Routes returns the chi router for collection endpoints.
func (r *CollectionsRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.List)
	router.Get("/{name}", r.Get)
	return router
}

type collectionSummary struct {
	Name         string   `json:"name"`
	IndexColumns []string `json:"index_columns"`
}

type listCollectionsResponse struct {
	Collections []collectionSummary `json:"collections"`
}

// List handles GET /collections.
func (r *CollectionsRouter) List(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	configs := r.collections.GetCollectionConfigs()

	summaries := make([]collectionSummary, len(configs))
	for i, cfg := range configs {
		summaries[i] = collectionSummary{Name: cfg.Name, IndexColumns: cfg.IndexColumns}
	}

	middleware.WriteJSON(w, start, listCollectionsResponse{Collections: summaries})
}

type collectionResponse struct {
	Name         string   `json:"name"`
	IndexColumns []string `json:"index_columns"`
}

// Get handles GET /collections/{name}.
func (r *CollectionsRouter) Get(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	name := chi.URLParam(req, "name")

	cfg, err := r.collections.GetCollectionConfig(name)
	if err != nil {
		middleware.WriteError(w, req, start, err, r.logger)
		return
	}

	middleware.WriteJSON(w, start, collectionResponse{Name: cfg.Name, IndexColumns: cfg.IndexColumns})
}
