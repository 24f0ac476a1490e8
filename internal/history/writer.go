package history

import (
	"context"
	"log/slog"
	"time"

	"soil-backend/internal/core"
	"soil-backend/internal/messaging"
)

// Writer is the only consumer of saved results. Processing one task at a time
// keeps appends to the store in a single sequence.
type Writer struct {
	store    Store
	reciever messaging.Reciever
	now      func() time.Time
}

func NewWriter(store Store, reciever messaging.Reciever) *Writer {
	return &Writer{store: store, reciever: reciever, now: time.Now}
}

// Start blocks until the receiver is closed or ctx is cancelled.
func (w *Writer) Start(ctx context.Context) {
	slog.Info("starting history writer")

	for {
		select {
		case task, ok := <-w.reciever.Tasks():
			if !ok {
				slog.Info("history writer queue closed")
				return
			}
			w.ProcessTask(ctx, task)
		case <-ctx.Done():
			slog.Info("history writer stopped", "reason", ctx.Err())
			return
		}
	}
}

func (w *Writer) Stop() {
	slog.Info("stopping history writer")
	w.reciever.Close()
}

func (w *Writer) ProcessTask(ctx context.Context, task messaging.Task) {
	if task.Type() != messaging.ResultsQueue {
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	payload, err := core.DecodePayload(task.Payload())
	if err != nil {
		slog.Error("error unmarshalling result payload", "error", err)
		if err := task.Reject(); err != nil { // discard malformed message
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	record := RecordFromPayload(payload, w.now())
	if err := w.store.Append(ctx, record); err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
		return
	}

	slog.Info("successfully processed task", "queue", task.Type(), "record_id", record.ID)
	if err := task.Ack(); err != nil {
		slog.Error("error acknowledging message from queue", "error", err)
	}
}
