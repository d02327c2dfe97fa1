package session

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/chat/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Post("/messages", h.SendMessage)
			r.Post("/close", h.Close)
			r.Post("/confirm-end", h.ConfirmEnd)
			r.Post("/restore", h.Restore)
			r.Post("/sound", h.Sound)
			r.Post("/typing", h.Typing)
			r.Post("/links", h.Links)
			r.Get("/transcript", h.Transcript)
			r.Get("/ws", h.Socket)
		})
	})
}
