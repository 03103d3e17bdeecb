package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jagjerez/maintenance-app-sub001/internal/blob"
	"github.com/jagjerez/maintenance-app-sub001/internal/config"
	"github.com/jagjerez/maintenance-app-sub001/internal/db"
	"github.com/jagjerez/maintenance-app-sub001/internal/ingestion"
	"github.com/jagjerez/maintenance-app-sub001/internal/middleware"
	"github.com/jagjerez/maintenance-app-sub001/internal/repository"
	"github.com/jagjerez/maintenance-app-sub001/internal/scheduler"
	"github.com/jagjerez/maintenance-app-sub001/internal/server"
	"github.com/jagjerez/maintenance-app-sub001/internal/status"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()

	jobRepo := repository.NewJobRepository(conn.Pool)
	entityRepo := repository.NewEntityRepository(conn.Pool)

	objectStore, err := blob.NewMinioStore(cfg.Blob.Endpoint, cfg.Blob.AccessKey, cfg.Blob.SecretKey, cfg.Blob.UseSSL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to object store")
	}
	blobs := blob.NewRouterStore(objectStore, blob.NewHTTPStore())

	processors := ingestion.NewProcessorSet(entityRepo)
	runner := ingestion.NewRunner(jobRepo, blobs, processors, ingestion.RunnerOptions{
		MaxRowsPerRun:   cfg.Ingestion.MaxRowsPerRun,
		CheckpointEvery: cfg.Ingestion.CheckpointEvery,
	})

	sched := scheduler.New(jobRepo, runner, scheduler.Options{
		Interval:         cfg.Scheduler.Interval,
		MaxJobsPerTick:   cfg.Scheduler.MaxJobsPerTick,
		MaxJobsPerTenant: cfg.Scheduler.MaxJobsPerTenant,
		PendingBatch:     cfg.Scheduler.PendingBatch,
	})
	if err := sched.Start(); err != nil {
		logrus.WithError(err).Fatal("failed to start scheduler")
	}
	defer sched.Stop()

	reporter := status.NewReporter(jobRepo, cfg.Status.StuckAfter)
	api := server.NewAPI(jobRepo, reporter, sched)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(
		middleware.LoggingMiddleware(
			middleware.TenantMiddleware(api.Routes()),
		),
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithField("addr", cfg.Server.Addr).Info("starting ingestion server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Fatal("server forced to shutdown")
	}

	logrus.Info("server exited")
}
