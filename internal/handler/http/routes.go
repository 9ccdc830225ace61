package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Init builds the router for the card-payment surface. Every route is
// public at the transport layer; authorization is carried inside the
// signed Nostr events each handler decodes, not by session middleware.
func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(withLogging)
	router.Use(withGZip)

	router.Group(func(r chi.Router) {
		r.Post("/ntag424", h.createNTAG)
		r.Patch("/ntag424", h.associateNTAG)
		r.Delete("/ntag424", h.deleteNTAG)

		r.Post("/card", h.createCard)
		r.Get("/card/scan", h.scanCard)
		r.Get("/card/pay", h.payCard)
		r.Post("/card/pay", h.payCardExtended)

		r.Post("/card/data/request", h.requestCardData)
		r.Post("/card/config/request", h.requestCardConfig)
		r.Post("/card/publish-data", h.publishCardData)

		r.Post("/card/reset/request", h.resetRequest)
		r.Post("/card/reset/claim", h.resetClaim)
	})

	router.MethodNotAllowed(CheckHTTPMethod(router))

	return router
}
