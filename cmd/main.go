package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/video-tournament/config"
	"github.com/Dosada05/video-tournament/db"
	"github.com/Dosada05/video-tournament/handlers"
	"github.com/Dosada05/video-tournament/live"
	appMiddleware "github.com/Dosada05/video-tournament/middleware"
	"github.com/Dosada05/video-tournament/payments/stub"
	"github.com/Dosada05/video-tournament/repositories"
	api "github.com/Dosada05/video-tournament/routes"
	"github.com/Dosada05/video-tournament/services"
	"github.com/Dosada05/video-tournament/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Инициализация загрузчика файлов (Cloudflare R2)
	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	// Платёжный провайдер
	paymentProvider := stub.New(cfg.PaymentWebhookSecret, cfg.PaymentBaseURL)
	logger.Info("payment provider initialized", slog.String("provider", paymentProvider.Name()))

	// WebSocket Hub
	hub := live.NewHub()
	go hub.Run()
	logger.Info("WebSocket hub started")

	// Репозитории
	txRunner := repositories.NewSQLTxRunner(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	categoryRepo := repositories.NewPostgresCategoryRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participationRepo := repositories.NewPostgresParticipationRepository(dbConn)
	videoRepo := repositories.NewPostgresVideoRepository(dbConn)
	voteRepo := repositories.NewPostgresVoteRepository(dbConn)
	packageRepo := repositories.NewPostgresTicketPackageRepository(dbConn)
	orderRepo := repositories.NewPostgresOrderRepository(dbConn)
	transactionRepo := repositories.NewPostgresTicketTransactionRepository(dbConn)
	reportRepo := repositories.NewPostgresReportRepository(dbConn)
	sponsorRepo := repositories.NewPostgresSponsorRepository(dbConn)
	logger.Info("repositories initialized")

	// Сервисы
	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey, logger)
	categoryService := services.NewCategoryService(categoryRepo)
	spawner := services.NewGroupSpawner(txRunner, tournamentRepo, hub, logger)
	tournamentService := services.NewTournamentService(
		txRunner,
		tournamentRepo,
		participationRepo,
		voteRepo,
		categoryRepo,
		spawner,
		uploader,
		hub,
		logger,
	)
	entryService := services.NewEntryService(
		txRunner,
		userRepo,
		tournamentRepo,
		participationRepo,
		videoRepo,
		transactionRepo,
		spawner,
		uploader,
		hub,
		logger,
	)
	votingService := services.NewVotingService(
		txRunner,
		tournamentRepo,
		participationRepo,
		voteRepo,
		hub,
		logger,
		cfg.VotingRequireParticipation,
	)
	ticketService := services.NewTicketService(
		txRunner,
		userRepo,
		packageRepo,
		orderRepo,
		transactionRepo,
		paymentProvider,
		logger,
	)
	moderationService := services.NewModerationService(reportRepo, videoRepo, participationRepo, logger)
	sponsorService := services.NewSponsorService(sponsorRepo, tournamentRepo, uploader, logger)
	logger.Info("services initialized")

	// HTTP-обработчики
	authMiddleware := appMiddleware.NewAuth(authService)
	authHandler := handlers.NewAuthHandler(authService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, entryService)
	votingHandler := handlers.NewVotingHandler(votingService)
	ticketHandler := handlers.NewTicketHandler(ticketService)
	moderationHandler := handlers.NewModerationHandler(moderationService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	sponsorHandler := handlers.NewSponsorHandler(sponsorService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authMiddleware,
		authHandler,
		tournamentHandler,
		votingHandler,
		ticketHandler,
		moderationHandler,
		categoryHandler,
		sponsorHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
