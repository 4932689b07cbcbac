package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apimiddleware "github.com/altaidevorg/letsearch/infrastructure/api/middleware"
	v1 "github.com/altaidevorg/letsearch/infrastructure/api/v1"
	"github.com/altaidevorg/letsearch/internal/collectionmgr"
)

// APIServer wires the search façade's routes onto a Server, backed by a
// collectionmgr.Manager — the go-target equivalent of kodit's APIServer,
// flattened to the three bare top-level paths spec.md's HTTP API names.
type APIServer struct {
	collections *collectionmgr.Manager
	server      *Server
	router      chi.Router
	logger      *slog.Logger
}

// NewAPIServer creates an APIServer serving addr, backed by collections.
func NewAPIServer(addr string, collections *collectionmgr.Manager, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIServer{
		collections: collections,
		server:      NewServer(addr, logger),
		logger:      logger,
	}
}

// MountRoutes wires every v1 route onto the server's router.
func (a *APIServer) MountRoutes() {
	a.router = a.server.Router()
	a.mountRoutes(a.router)
}

func (a *APIServer) mountRoutes(router chi.Router) {
	router.Use(apimiddleware.CorrelationID)
	router.Use(apimiddleware.Logging(a.logger))

	healthRouter := v1.NewHealthRouter(a.collections, a.logger)
	collectionsRouter := v1.NewCollectionsRouter(a.collections, a.logger)
	searchRouter := v1.NewSearchRouter(a.collections, a.logger)

	// More specific routes must mount before the catch-all "/" health route.
	router.Mount("/collections", collectionsRouter.Routes())
	router.Mount("/collections/{name}/search", searchRouter.Routes())
	router.Mount("/", healthRouter.Routes())
}

// Handler returns the fully mounted router as an http.Handler, for use with
// httptest or a custom http.Server.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.MountRoutes()
	}
	return a.router
}

// ListenAndServe mounts routes, if not already mounted, and starts serving.
func (a *APIServer) ListenAndServe() error {
	if a.router == nil {
		a.MountRoutes()
	}
	return a.server.Start()
}

// Shutdown gracefully stops the underlying server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
