package http //nolint:revive // directory-based package name, imported with alias

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Longer than the processor timeout so the client reports its own timeout first.
const requestTimeout = 40 * time.Second

func NewRouter(h *Handler, sessions SessionConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(sessions))

		r.Get("/", h.HandleLanding)
		r.Post("/", h.HandlePay)
		r.Get("/thankyou", h.HandleThankYou)
		r.Get("/pay/qr", h.HandleQR)
	})

	return r
}
