package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"soil-backend/cmd"
	"soil-backend/internal/config"
	"soil-backend/internal/database"
	"soil-backend/internal/history"
	"soil-backend/internal/messaging"
	"syscall"
)

// The worker runs the history writer as its own process so several API
// replicas can share one store through RabbitMQ.
func main() {
	log.Println("Starting History Worker...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL must be set for a standalone worker")
	}

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	writer := history.NewWriter(history.NewDBStore(db), reciever)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		writer.Start(ctx)
	}()

	slog.Info("worker started, waiting for results", "queue", messaging.ResultsQueue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, stopping history writer...")
	writer.Stop()
	cancel()
	<-done

	log.Println("Worker process stopped.")
}
