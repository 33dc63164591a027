package routes

import (
	"github.com/MathiasNeri/Projet-Dev-FilRouge/handlers"
	"github.com/MathiasNeri/Projet-Dev-FilRouge/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRoutes собирает весь HTTP-роутинг приложения.
func SetupRoutes(
	router *chi.Mux,
	auth *middleware.Authenticator,
	allowedOrigins []string,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	participantHandler *handlers.ParticipantHandler,
	bracketHandler *handlers.BracketHandler,
	matchHandler *handlers.MatchHandler,
	notificationHandler *handlers.NotificationHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты просмотра
		r.Get("/", tournamentHandler.ListHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
		r.Get("/{tournamentID}/participants", participantHandler.ListHandler)
		r.Get("/{tournamentID}/matches", matchHandler.ListHandler)
		r.Get("/{tournamentID}/bracket", bracketHandler.GetHandler)

		// Мутации — только с токеном
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/", tournamentHandler.CreateHandler)
			r.Put("/{tournamentID}", tournamentHandler.UpdateHandler)
			r.Delete("/{tournamentID}", tournamentHandler.DeleteHandler)
			r.Post("/{tournamentID}/logo", tournamentHandler.UploadLogoHandler)

			r.Post("/{tournamentID}/request_join", participantHandler.RequestJoinHandler)
			r.Post("/{tournamentID}/join", participantHandler.RequestJoinHandler)
			r.Post("/{tournamentID}/add_participant", participantHandler.DirectAddHandler)
			r.Post("/{tournamentID}/handle_request", participantHandler.HandleRequestHandler)
			r.Post("/{tournamentID}/leave", participantHandler.LeaveHandler)
			r.Post("/{tournamentID}/kick", participantHandler.KickHandler)

			r.Post("/{tournamentID}/bracket", bracketHandler.SaveHandler)
			r.Post("/{tournamentID}/bracket/generate", bracketHandler.GenerateHandler)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Post("/matches/{matchID}/result", matchHandler.RecordResultHandler)
		r.Get("/notifications", notificationHandler.ListHandler)
		r.Post("/notifications/{notificationID}/read", notificationHandler.MarkReadHandler)
	})

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
