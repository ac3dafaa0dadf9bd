package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/commander-builder/internal/api/handlers"
)

// setupRoutes configures all API routes. Route groups whose dependency is
// missing are not mounted.
func (s *Server) setupRoutes() {
	systemHandler := handlers.NewSystemHandler(s.deps.Metrics, s.wsHub.ClientCount)

	s.router.Get("/health", systemHandler.Health)
	s.router.Get("/ws", s.wsHub.ServeWs)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/metrics", systemHandler.GetMetrics)

		if s.deps.Manager != nil && s.deps.Cards != nil {
			deckHandler := handlers.NewDeckHandler(s.deps.Manager, s.deps.Cards)
			r.Route("/deck", func(r chi.Router) {
				r.Get("/", deckHandler.GetDeck)
				r.Post("/load", deckHandler.LoadDeck)
				r.Post("/cards", deckHandler.AddCard)
				r.Delete("/entries/{index}", deckHandler.RemoveEntry)
				r.Delete("/cards/{cardID}", deckHandler.RemoveCard)
				r.Put("/commander", deckHandler.SetCommander)
				r.Delete("/error", deckHandler.ClearError)
				r.Get("/compatibility", deckHandler.GetCompatibility)
				r.Get("/stats", deckHandler.GetStats)
				r.Get("/chart", deckHandler.GetChart)
				r.Get("/export/{format}", deckHandler.ExportDeck)
			})
		}

		if s.deps.Decks != nil {
			decksHandler := handlers.NewDecksHandler(s.deps.Decks, s.deps.Dispatcher)
			r.Route("/decks", func(r chi.Router) {
				r.Get("/", decksHandler.GetDecks)
				r.Post("/", decksHandler.CreateDeck)
				r.Delete("/{deckID}", decksHandler.DeleteDeck)
				r.Patch("/{deckID}", decksHandler.RenameDeck)
				r.Post("/{deckID}/copy", decksHandler.CopyDeck)
				r.Get("/{deckID}/export/{format}", decksHandler.ExportDeck)
				r.Post("/import/{format}", decksHandler.ImportDeck)
			})
		}

		if s.deps.Cards != nil {
			cardHandler := handlers.NewCardHandler(s.deps.Cards)
			r.Route("/cards", func(r chi.Router) {
				r.Get("/search", cardHandler.SearchCards)
				r.Get("/named/{name}", cardHandler.GetCardByName)
				r.Get("/{cardID}", cardHandler.GetCard)
			})
		}

		if s.deps.Meta != nil {
			metaHandler := handlers.NewMetaHandler(s.deps.Meta)
			r.Route("/commanders", func(r chi.Router) {
				r.Get("/", metaHandler.GetTopCommanders)
				r.Get("/{name}/meta", metaHandler.GetCommanderMeta)
			})
		}
	})
}
