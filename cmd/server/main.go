// Command server runs the layer publication HTTP API.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/api"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/arcgis"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/config"
	internaldb "github.com/danielmorris2014/arcgislayerupdaterr/internal/db"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/db/repository"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/middleware"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service/archive"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if err := os.MkdirAll(cfg.ScratchRoot, 0o750); err != nil {
		logger.Error("create scratch root", "path", cfg.ScratchRoot, "error", err)
		os.Exit(1)
	}

	// Processing log is optional: no DB path, no persistence.
	var jobs domain.JobLogRepository
	if cfg.JobLogDBPath != "" {
		var conn *sql.DB
		conn, err = internaldb.OpenSQLite(cfg.JobLogDBPath)
		if err != nil {
			logger.Error("open job log", "path", cfg.JobLogDBPath, "error", err)
			os.Exit(1)
		}
		defer conn.Close() //nolint:errcheck
		if err = internaldb.RunMigrations(conn); err != nil {
			logger.Error("migrate job log", "error", err)
			os.Exit(1)
		}
		jobs = repository.NewJobLogRepo(conn)
		logger.Info("processing log enabled", "path", cfg.JobLogDBPath)
	}

	client := arcgis.NewClient(cfg.PortalURL, cfg.PortalUsername, cfg.PortalToken,
		arcgis.WithLogger(logger))
	pipeline := service.NewPipelineService(client, jobs, cfg.ScratchRoot, logger)
	handler := api.NewHandler(pipeline, jobs, logger)

	// Periodic sweep of scratch directories abandoned by crashed runs.
	sweeper := cron.New()
	_, err = sweeper.AddFunc("@every 30m", func() {
		n, err := archive.Sweep(cfg.ScratchRoot, cfg.ScratchMaxAge)
		if err != nil {
			logger.Warn("scratch sweep", "error", err)
			return
		}
		if n > 0 {
			logger.Info("scratch sweep", "removed", n)
		}
	})
	if err != nil {
		logger.Error("schedule scratch sweep", "error", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth([]byte(cfg.JWTSecret)))
		handler.Routes(r)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr, "portal", cfg.PortalURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
