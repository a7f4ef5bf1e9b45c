//	@title			Septotrip API
//	@version		1.0
//	@description	Backend for Septotrip, a collaborative trip planner. Trip files live in per-trip object storage buckets; private files are read with short-lived access tokens.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/La-Sectoblique/septotrip-api/internal/access"
	"github.com/La-Sectoblique/septotrip-api/internal/auth"
	"github.com/La-Sectoblique/septotrip-api/internal/config"
	"github.com/La-Sectoblique/septotrip-api/internal/db"
	"github.com/La-Sectoblique/septotrip-api/internal/file"
	"github.com/La-Sectoblique/septotrip-api/internal/logger"
	appMiddleware "github.com/La-Sectoblique/septotrip-api/internal/middleware"
	"github.com/La-Sectoblique/septotrip-api/internal/point"
	"github.com/La-Sectoblique/septotrip-api/internal/session"
	"github.com/La-Sectoblique/septotrip-api/internal/storage"
	"github.com/La-Sectoblique/septotrip-api/internal/trip"
	"github.com/La-Sectoblique/septotrip-api/internal/user"

	_ "github.com/La-Sectoblique/septotrip-api/docs/swagger"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.IsProduction())
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	backend, err := storage.NewBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("object storage init failed", zap.Error(err))
	}
	if c, ok := backend.(io.Closer); ok {
		defer c.Close() //nolint:errcheck
	}
	files, err := storage.NewManager(backend, cfg.BucketPrefix)
	if err != nil {
		log.Fatal("object storage init failed", zap.Error(err))
	}

	sessions := session.NewManager(cfg.JWTSecret, session.DefaultTTL, session.DefaultRenewWithin)
	fileTokens := access.NewIssuer(cfg.FileTokenSecret, cfg.FileTokenTTL)

	// Wire dependencies: repository → service → handler
	userSvc := user.NewService(user.NewRepository(pool))
	userHandler := user.NewHandler(userSvc)

	authHandler := auth.NewHandler(auth.NewService(userSvc, sessions))

	tripSvc := trip.NewService(trip.NewRepository(pool), userSvc, files, log)
	tripHandler := trip.NewHandler(tripSvc)

	pointSvc := point.NewService(point.NewRepository(pool))
	pointHandler := point.NewHandler(pointSvc)

	fileSvc := file.NewService(file.NewRepository(pool), files, fileTokens, pointSvc, tripSvc, log)
	fileHandler := file.NewHandler(fileSvc, cfg.MaxUploadBytes)

	tripSvc.OnDelete(fileSvc.PurgeTrip)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{appMiddleware.RenewedTokenHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Token-gated downloads need no session
		r.Get("/files/{fileID}/content", fileHandler.ContentByToken)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(sessions))

			r.Get("/users/me", userHandler.GetMe)
			r.Get("/users/{userID}", userHandler.GetProfile)

			r.Route("/trips", func(r chi.Router) {
				r.Get("/", tripHandler.ListMine)
				r.Post("/", tripHandler.Create)
				r.Get("/public", tripHandler.ListPublic)

				r.Route("/{tripID}", func(r chi.Router) {
					r.Use(trip.RequireAccess(tripSvc))

					r.Get("/", tripHandler.Get)
					r.Patch("/", tripHandler.Update)
					r.Delete("/", tripHandler.Delete)
					r.Get("/author", tripHandler.Author)

					r.Get("/members", tripHandler.Members)
					r.Post("/members", tripHandler.AddMember)
					r.Delete("/members/{userID}", tripHandler.RemoveMember)

					r.Route("/points", func(r chi.Router) {
						r.Get("/", pointHandler.List)
						r.Post("/", pointHandler.Create)
						r.Route("/{pointID}", func(r chi.Router) {
							r.Use(pointHandler.Load)
							r.Get("/", pointHandler.Get)
							r.Patch("/", pointHandler.Update)
							r.Delete("/", pointHandler.Delete)
							r.Get("/files", fileHandler.ListByPoint)
						})
					})

					r.Route("/files", func(r chi.Router) {
						r.Get("/", fileHandler.List)
						r.Post("/", fileHandler.Upload)
						r.Route("/{fileID}", func(r chi.Router) {
							r.Use(fileHandler.Load)
							r.Get("/", fileHandler.Get)
							r.Patch("/", fileHandler.Update)
							r.Delete("/", fileHandler.Delete)
							r.Get("/content", fileHandler.Content)
							r.Put("/content", fileHandler.ReplaceContent)
						})
					})
				})
			})
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("server listening",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
			zap.String("storage", cfg.StorageDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
		return
	}

	log.Info("server stopped")
}
