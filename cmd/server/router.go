package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/atlas-api/internal/api"
	apiMiddleware "github.com/phrazzld/atlas-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. Reads are public; anything that mutates tasks requires an
// operator token.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler, err := api.NewAuthHandler(app.jwtService, app.keyVerifier, app.config.Auth.OperatorKeyHash)
	if err != nil {
		// Dependencies were validated during newApplication; reaching this
		// means the wiring itself is broken.
		panic(err)
	}
	taskHandler, err := api.NewTaskHandler(app.manager)
	if err != nil {
		panic(err)
	}
	placeHandler, err := api.NewPlaceHandler(app.placeStore)
	if err != nil {
		panic(err)
	}
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoint (public)
		r.Post("/auth/token", authHandler.Token)

		// Read endpoints (public)
		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/stats", taskHandler.TaskStats)
		r.Get("/tasks/{id}", taskHandler.GetTask)
		r.Get("/provinces", placeHandler.ListProvinces)
		r.Get("/provinces/{id}/cities", placeHandler.ListCities)
		r.Get("/cities/{id}/districts", placeHandler.ListDistricts)
		r.Get("/districts/{id}/facilities", placeHandler.ListFacilities)
		r.Get("/facilities/search", placeHandler.SearchFacilities)
		r.Get("/stats", placeHandler.HierarchyStats)

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/tasks", taskHandler.CreateTask)
			r.Post("/tasks/cleanup", taskHandler.CleanupTasks)
			r.Post("/tasks/{id}/start", taskHandler.StartTask)
			r.Post("/tasks/{id}/cancel", taskHandler.CancelTask)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
