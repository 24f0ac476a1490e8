package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"soil-backend/internal/config"
	"soil-backend/internal/core"
	"soil-backend/internal/messaging"
	"soil-backend/internal/storage"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

func CreateImageStore(ctx context.Context, cfg config.Config) (*storage.ImageStore, error) {
	var provider storage.Provider
	switch cfg.StorageBackend {
	case config.S3Storage:
		s3p, err := storage.NewS3Provider(storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating s3 provider: %w", err)
		}
		provider = s3p
	default:
		provider = storage.NewLocalProvider(cfg.StoragePath())
	}

	images := storage.NewImageStore(provider, cfg.StorageBackend, cfg.ImageBucket)
	if err := images.Init(ctx); err != nil {
		return nil, fmt.Errorf("error creating image bucket '%s': %w", cfg.ImageBucket, err)
	}

	slog.Info("image store ready", "backend", cfg.StorageBackend, "bucket", cfg.ImageBucket)
	return images, nil
}

func CreateClassifier(cfg config.Config) (core.Classifier, error) {
	classifier, err := core.LoadClassifier(core.ModelType(cfg.ModelType), core.ModelOptions{
		ModelDir:      cfg.ModelPath(),
		InputSize:     cfg.ModelInputSize,
		RemoteURL:     cfg.RemoteClassifierURL,
		RemoteTimeout: cfg.RemoteTimeout,
		StaticLabel:   cfg.StaticLabel,
	})
	if err != nil {
		return nil, fmt.Errorf("could not load soil classifier: %w", err)
	}
	slog.Info("loaded soil classifier", "model_type", cfg.ModelType, "labels", len(classifier.Labels()))
	return classifier, nil
}

// CreateQueue returns the result publisher and the receiver the history writer
// consumes from.
func CreateQueue(cfg config.Config) (messaging.Publisher, messaging.Reciever, error) {
	if cfg.RabbitMQURL == "" {
		queue := messaging.NewInMemoryQueue()
		return queue, queue, nil
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect publisher to rabbitmq: %w", err)
	}

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		publisher.Close()
		return nil, nil, fmt.Errorf("failed to connect receiver to rabbitmq: %w", err)
	}

	return publisher, reciever, nil
}
