package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the service routes on r. postMiddleware wraps the
// request-creating POST endpoints (idempotency replay when a cache is set).
func MountRoutes(r chi.Router, h *Handlers, postMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/agent", func(r chi.Router) {
		r.Get("/", h.ListAgentTasks)
		r.With(postMiddleware...).Post("/", h.SubmitAgentRequest)
		r.Get("/{id}", h.GetAgentTask)
		r.Get("/{id}/html", h.GetAgentTaskHTML)
	})

	r.Route("/tools", func(r chi.Router) {
		r.Get("/", h.ListTools)
		r.With(postMiddleware...).Post("/{name}/invoke", h.InvokeTool)
	})

	if h.Events != nil {
		r.Get("/ws", h.Events)
	}
}
