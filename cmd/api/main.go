package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"soil-backend/cmd"
	"soil-backend/internal/api"
	"soil-backend/internal/config"
	"soil-backend/internal/core"
	"soil-backend/internal/database"
	"soil-backend/internal/history"
	"soil-backend/internal/messaging"
	"soil-backend/internal/storage"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func createServer(images *storage.ImageStore, sessions *core.SessionCache, store history.Store, publisher messaging.Publisher, cfg config.Config) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	diffMode, err := history.ParseIdentity(cfg.HistoryDiffMode)
	if err != nil {
		log.Fatalf("invalid HISTORY_DIFF_MODE: %v", err)
	}

	apiHandler := api.NewScanService(images, sessions, store, publisher, diffMode, cfg.MaxUploadBytes)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "storage", cfg.StorageBackend, "model_type", cfg.ModelType, "strict_readings", cfg.StrictReadings)

	if core.ModelType(cfg.ModelType) == core.OnnxCnn {
		destroy, err := cmd.InitOnnxRuntime(cfg.OnnxRuntimeDylib)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer destroy()
	}

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	images, err := cmd.CreateImageStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to create image store: %v", err)
	}

	classifier, err := cmd.CreateClassifier(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer classifier.Release()

	adapter := core.NewAdapter(images, classifier)
	sessions := core.NewSessionCache(cfg.MaxSessions, adapter, core.Assembler{Strict: cfg.StrictReadings})
	defer sessions.Close()

	publisher, reciever, err := cmd.CreateQueue(cfg)
	if err != nil {
		log.Fatalf("failed to create result queue: %v", err)
	}
	defer publisher.Close()

	store := history.NewDBStore(db)
	writer := history.NewWriter(store, reciever)

	server := createServer(images, sessions, store, publisher, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting history writer")
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Start(ctx)
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("shutting down history writer")
	writer.Stop()
	if cfg.RabbitMQURL != "" {
		// unacked results stay on the broker
		cancel()
	}
	<-writerDone

	slog.Info("server stopped")
}
