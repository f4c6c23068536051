package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the board API under /api. metrics may be nil.
func NewRouter(h *BoardHandler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", h.SignIn)
		r.Delete("/session", h.SignOut)
		r.Get("/state", h.State)
		r.Put("/ui", h.UpdateUI)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Patch("/{id}", h.UpdateProject)
			r.Get("/{id}/tasks", h.ProjectTasks)
			r.Get("/{id}/stats", h.ProjectStats)
		})
		r.Get("/share/{id}", h.SharedBoard)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.CreateTask)
			r.Get("/{id}", h.GetTask)
			r.Patch("/{id}", h.UpdateTask)
			r.Delete("/{id}", h.DeleteTask)
			r.Post("/{id}/move", h.MoveTask)
			r.Post("/{id}/reorder", h.ReorderTask)
		})

		r.Get("/sync", h.Pending)
		r.Post("/sync/flush", h.Flush)
	})

	return r
}
