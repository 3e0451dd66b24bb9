package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/driftline/backend/internal/config"
	"github.com/driftline/backend/internal/handlers"
	"github.com/driftline/backend/internal/logger"
	appMiddleware "github.com/driftline/backend/internal/middleware"
	"github.com/driftline/backend/internal/services"
	"github.com/driftline/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	logger.Init("driftline-backend", cfg.Debug)

	identities, err := storage.NewMongoIdentityStore(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect")
	}
	defer identities.Close(context.Background())

	sessions, err := storage.NewRedisSessionStore(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}
	defer sessions.Close()

	sessionTTL := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	authService := services.NewAuthService(identities, sessions, sessionTTL)
	identityService := services.NewIdentityService(identities)
	moderationService := services.NewModerationService(identities)

	authHandler := handlers.NewAuthHandler(authService, cfg.Server.SecureCookie)
	identityHandler := handlers.NewIdentityHandler(identityService)
	moderationHandler := handlers.NewModerationHandler(identityService, moderationService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Server.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.SessionAuth(authService))

			r.Get("/identity/self", identityHandler.GetSelf)

			r.Route("/moderation", func(r chi.Router) {
				r.Get("/search", moderationHandler.Search)
				r.Get("/user/{identifier}", moderationHandler.GetUser)
				r.Post("/warn", moderationHandler.Warn)
				r.Post("/ban", moderationHandler.Ban)
				r.Post("/lift-ban", moderationHandler.LiftBan)
				r.Post("/acknowledge-warning", moderationHandler.AcknowledgeWarning)
			})
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("server stopped")
}
