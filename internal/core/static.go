package core

import (
	"context"

	"soil-backend/internal/core/soil"
)

// StaticClassifier returns the same ranking for every image. It backs local
// development runs where no model file is available.
type StaticClassifier struct {
	categories []Category
}

func NewStaticClassifier(topLabel string) *StaticClassifier {
	if topLabel == "" {
		topLabel = soil.Aluvial.Label()
	}

	categories := []Category{{Label: topLabel, Confidence: 1}}
	for _, label := range soil.Labels() {
		if label != topLabel {
			categories = append(categories, Category{Label: label, Confidence: 0})
		}
	}
	return &StaticClassifier{categories: categories}
}

func (c *StaticClassifier) Classify(ctx context.Context, image []byte) ([]Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out, nil
}

func (c *StaticClassifier) Labels() []string {
	return soil.Labels()
}

func (c *StaticClassifier) Release() {}
