package core

import (
	"context"
	"fmt"
	"log/slog"
)

// Classifier is the external image classification capability. It returns
// categories ranked by descending confidence; nil or empty means no result.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]Category, error)

	Labels() []string

	Release()
}

type ImageLoader interface {
	Load(ctx context.Context, ref ImageReference) ([]byte, error)
}

type Adapter struct {
	images     ImageLoader
	classifier Classifier
}

func NewAdapter(images ImageLoader, classifier Classifier) *Adapter {
	return &Adapter{images: images, classifier: classifier}
}

// Classify submits the image once and returns the top-1 label. The ranked list
// is trusted as given; it is not re-sorted here.
func (a *Adapter) Classify(ctx context.Context, ref ImageReference) (string, error) {
	if ref.IsZero() {
		return "", ErrMissingImage
	}

	image, err := a.images.Load(ctx, ref)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", NewAdapterFailure(fmt.Errorf("load image %s: %w", ref, err))
	}

	categories, err := a.classifier.Classify(ctx, image)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		slog.Error("classifier returned error", "image", ref, "error", err)
		return "", NewAdapterFailure(err)
	}

	if len(categories) == 0 {
		return "", ErrNoResults
	}

	top := categories[0]
	slog.Info("image classified", "image", ref, "label", top.Label, "confidence", top.Confidence, "candidates", len(categories))
	return top.Label, nil
}

type Outcome struct {
	Label string
	Err   error
}

// ClassifyAsync runs Classify in the background. The channel receives exactly
// one Outcome and is then closed. Cancelling ctx abandons the attempt.
func (a *Adapter) ClassifyAsync(ctx context.Context, ref ImageReference) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		label, err := a.Classify(ctx, ref)
		out <- Outcome{Label: label, Err: err}
	}()
	return out
}
