package routes

import (
	"net/http"

	"github.com/Dosada05/video-tournament/handlers"
	appMiddleware "github.com/Dosada05/video-tournament/middleware"
	"github.com/Dosada05/video-tournament/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

// SetupRoutes собирает все маршруты приложения.
func SetupRoutes(
	router *chi.Mux,
	auth *appMiddleware.Auth,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	votingHandler *handlers.VotingHandler,
	ticketHandler *handlers.TicketHandler,
	moderationHandler *handlers.ModerationHandler,
	categoryHandler *handlers.CategoryHandler,
	sponsorHandler *handlers.SponsorHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.json"),
	))
	router.Get("/docs/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "docs/swagger.json")
	})

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	// Вебхук платёжного провайдера: аутентификация подписью тела, без JWT.
	router.Post("/payments/webhook", ticketHandler.Webhook)

	router.Route("/tournaments", func(r chi.Router) {
		// Публичные маршруты просмотра. OptionalAuthenticate нужен, чтобы
		// отличать создателя от зрителя при подсчёте просмотров.
		r.With(auth.OptionalAuthenticate).Get("/", tournamentHandler.List)
		r.With(auth.OptionalAuthenticate).Get("/{id}", tournamentHandler.Get)
		r.Get("/{id}/groups", tournamentHandler.ListGroups)
		r.Get("/{id}/standings", tournamentHandler.Standings)
		r.Get("/{id}/participants", tournamentHandler.Participants)
		r.Get("/{id}/sponsors", sponsorHandler.ListByTournament)

		// Маршруты участника
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/{id}/enter", tournamentHandler.Enter)
			r.Post("/{id}/votes", votingHandler.CastVote)
			r.Get("/{id}/votes/status", votingHandler.VoteStatus)
			r.Post("/{id}/reports", moderationHandler.ReportVideo)
		})

		// Администрирование турниров
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(appMiddleware.Authorize(models.RoleAdmin))

			r.Post("/", tournamentHandler.Create)
			r.Patch("/{id}", tournamentHandler.Update)
			r.Post("/{id}/close", tournamentHandler.Close)
			r.Post("/{id}/groups", tournamentHandler.SpawnGroup)
			r.Post("/{id}/finalists", tournamentHandler.SelectFinalists)
			r.Post("/{id}/reconcile", tournamentHandler.ReconcileCounters)
			r.Post("/reconcile", tournamentHandler.ReconcileAllRoots)
			r.Put("/{id}/sponsors/{sponsorID}", sponsorHandler.Attach)
			r.Delete("/{id}/sponsors/{sponsorID}", sponsorHandler.Detach)
		})
	})

	router.Route("/tickets", func(r chi.Router) {
		r.Get("/packages", ticketHandler.ListPackages)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)

			r.Post("/checkout", ticketHandler.CreateCheckout)
			r.Get("/balance", ticketHandler.Balance)
			r.Get("/history", ticketHandler.History)
			r.Get("/orders", ticketHandler.Orders)
		})
	})

	router.Route("/categories", func(r chi.Router) {
		r.Get("/", categoryHandler.List)
		r.Get("/{id}", categoryHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(appMiddleware.Authorize(models.RoleAdmin))

			r.Post("/", categoryHandler.Create)
			r.Put("/{id}", categoryHandler.Update)
			r.Delete("/{id}", categoryHandler.Delete)
		})
	})

	router.Route("/sponsors", func(r chi.Router) {
		r.Get("/", sponsorHandler.ListActive)

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate)
			r.Use(appMiddleware.Authorize(models.RoleAdmin))

			r.Post("/", sponsorHandler.Create)
		})
	})

	router.Route("/moderation", func(r chi.Router) {
		r.Use(auth.Authenticate)
		r.Use(appMiddleware.Authorize(models.RoleAdmin))

		r.Get("/reports", moderationHandler.ListUnresolved)
		r.Post("/reports/{id}/resolve", moderationHandler.Resolve)
	})

	router.Post("/videos/{id}/views", moderationHandler.RegisterView)

	router.Get("/ws/tournaments/{id}", webSocketHandler.ServeWs)
}
