package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/uav-cas/internal/websocket"
	"github.com/yegors/uav-cas/pkg/logger"
)

// Router assembles the HTTP surface of the telemetry server
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	logger   *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(simulation Simulation, results ResultStore, wsServer *websocket.Server, log *logger.Logger) *Router {
	return &Router{
		handler:  NewHandler(simulation, results, log),
		wsServer: wsServer,
		logger:   log.Named("api"),
	}
}

// Routes returns the assembled chi router
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/status", r.handler.GetStatus)
		api.Get("/aircraft", r.handler.GetAircraft)
		api.Get("/scenarios", r.handler.GetScenarios)
		api.Get("/scenarios/{index}", r.handler.GetScenario)
		api.Post("/pause", r.handler.PostPause)
		api.Post("/reset", r.handler.PostReset)
		api.Get("/results", r.handler.GetResultsSummary)
	})

	if r.wsServer != nil {
		router.Get("/ws", r.wsServer.HandleConnection)
	}

	return router
}
