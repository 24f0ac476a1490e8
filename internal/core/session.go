package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Session is one client's scan flow: the currently selected image and at most
// one classification in flight. Selecting a new image cancels the in-flight
// classification and any result it produces is discarded.
type Session struct {
	id        uuid.UUID
	adapter   *Adapter
	assembler Assembler

	mu         sync.Mutex
	image      ImageReference
	generation uint64
	attempt    uint64
	cancel     context.CancelFunc
}

func NewSession(id uuid.UUID, adapter *Adapter, assembler Assembler) *Session {
	return &Session{id: id, adapter: adapter, assembler: assembler}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Image() ImageReference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// Select replaces the current image. An empty reference clears the selection.
func (s *Session) Select(ref ImageReference) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.image = ref
	slog.Info("image selected", "session_id", s.id, "image", ref)
}

// Close cancels any in-flight classification.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Analyze classifies the selected image and assembles the payload handed to
// the recommender. Readings are validated before the classifier is called.
func (s *Session) Analyze(ctx context.Context, raw RawReadings) (ResultPayload, error) {
	s.mu.Lock()
	ref := s.image
	if ref.IsZero() {
		s.mu.Unlock()
		return ResultPayload{}, ErrMissingImage
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.attempt++
	generation, attempt := s.generation, s.attempt
	attemptCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer cancel()

	readings, err := s.assembler.Readings(raw)
	if err != nil {
		s.release(generation, attempt)
		return ResultPayload{}, err
	}

	label, err := s.adapter.Classify(attemptCtx, ref)

	if stale := s.release(generation, attempt); stale {
		slog.Info("discarding stale classification", "session_id", s.id, "image", ref)
		return ResultPayload{}, ErrStaleResult
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			// cancelled by a concurrent Analyze on the same image
			return ResultPayload{}, ErrStaleResult
		}
		return ResultPayload{}, err
	}

	return Package(ref, label, Assemble(readings, label))
}

// release clears the attempt bookkeeping and reports whether the selection
// changed since the attempt started.
func (s *Session) release(generation, attempt uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return true
	}
	if s.attempt == attempt {
		s.cancel = nil
	}
	return false
}
