package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/statvalue/statvalue-companion/internal/api/handlers"
	"github.com/statvalue/statvalue-companion/internal/api/response"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning)
	s.router.Get("/health", s.healthCheck)

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	// WebSocket endpoint (no JSON content-type requirement)
	s.router.Get("/ws", s.wsHub.ServeWs)

	s.router.Route("/api/v1", func(r chi.Router) {
		var players handlers.PredictionPlayerLister
		if s.deps.Backend != nil {
			players = s.deps.Backend
		}
		catalogHandler := handlers.NewCatalogHandler(players)
		r.Get("/positions", catalogHandler.ListPositions)
		r.Get("/positions/{position}", catalogHandler.GetPosition)
		r.Get("/prediction-players", catalogHandler.ListPredictionPlayers)

		systemHandler := s.systemHandler()
		r.Get("/system/status", systemHandler.GetStatus)

		if s.deps.Sessions == nil {
			return
		}

		sessionHandler := handlers.NewSessionHandler(s.deps.Sessions, s.deps.History, s.deps.Chart)
		r.Post("/sessions", sessionHandler.CreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", sessionHandler.GetSession)
			r.Delete("/", sessionHandler.DeleteSession)
			r.Put("/position", sessionHandler.SetPosition)
			r.Get("/players", sessionHandler.SearchPlayers)
			r.Post("/selection", sessionHandler.AddToSelection)
			r.Delete("/selection/{name}", sessionHandler.RemoveFromSelection)
			r.Post("/compare", sessionHandler.Compare)
			r.Get("/details", sessionHandler.GetDetails)
			r.Get("/chart", sessionHandler.GetChart)
			r.Post("/similar", sessionHandler.FindSimilar)
			r.Post("/similar/{name}/select", sessionHandler.SelectSimilar)
			r.Get("/prediction-years", sessionHandler.PredictionYears)
			r.Post("/predict", sessionHandler.Predict)
			r.Get("/predictions", sessionHandler.ListPredictions)
			r.Get("/history/{name}", sessionHandler.GetHistory)
			r.Get("/comparisons", sessionHandler.ListComparisons)

			if s.deps.Backend != nil {
				authHandler := handlers.NewAuthHandler(s.deps.Sessions, s.deps.Backend)
				r.Post("/login", authHandler.Login)
				r.Post("/register", authHandler.Register)
				r.Post("/logout", authHandler.Logout)
			}
		})
	})
}

func (s *Server) systemHandler() *handlers.SystemHandler {
	var (
		stats    handlers.StatsProvider
		latency  handlers.LatencyProvider
		sessions handlers.SessionCounter
	)
	if s.deps.Backend != nil {
		stats = s.deps.Backend
	}
	if s.deps.Metrics != nil {
		latency = s.deps.Metrics
	}
	if s.deps.Sessions != nil {
		sessions = s.deps.Sessions
	}
	return handlers.NewSystemHandler(stats, latency, s.deps.Cache, sessions)
}

// healthCheck returns the server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"websocket": s.wsHub.ClientCount(),
	}
	if s.deps.Backend != nil {
		health["backend"] = s.deps.Backend.GetStats()
	}
	response.Success(w, health)
}
