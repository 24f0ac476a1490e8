package messaging

import (
	"context"
	"time"

	"soil-backend/internal/core"
)

const (
	ResultsQueue    = "soil_results_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type Publisher interface {
	PublishResult(ctx context.Context, payload core.ResultPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
