package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	letsearch "github.com/altaidevorg/letsearch"
	"github.com/altaidevorg/letsearch/infrastructure/api/middleware"
	"github.com/altaidevorg/letsearch/internal/collectionmgr"
)

// HealthRouter serves the root health/status endpoint.
type HealthRouter struct {
	collections *collectionmgr.Manager
	logger      *slog.Logger
}

// NewHealthRouter returns a HealthRouter backed by collections.
func NewHealthRouter(collections *collectionmgr.Manager, logger *slog.Logger) *HealthRouter {
	return &HealthRouter{collections: collections, logger: logger}
}

// Routes returns the chi router for the health endpoint.
func (r *HealthRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", r.Status)
	return router
}

type healthResponse struct {
	Version     string   `json:"version"`
	Status      string   `json:"status"`
	Collections []string `json:"collections"`
}

// Status handles GET /.
func (r *HealthRouter) Status(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	middleware.WriteJSON(w, start, healthResponse{
		Version:     letsearch.Version,
		Status:      "ok",
		Collections: r.collections.GetCollections(),
	})
}
