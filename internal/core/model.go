package core

import (
	"fmt"
	"time"
)

// ModelType selects the classifier implementation.
type ModelType string

const (
	OnnxCnn ModelType = "onnx"
	Remote  ModelType = "remote"
	Static  ModelType = "static"
)

type ModelOptions struct {
	ModelDir  string
	InputSize int

	RemoteURL     string
	RemoteTimeout time.Duration

	// StaticLabel is the label the static classifier always ranks first.
	StaticLabel string
}

type ModelLoader func(opts ModelOptions) (Classifier, error)

func NewModelLoaders() map[ModelType]ModelLoader {
	return map[ModelType]ModelLoader{
		OnnxCnn: func(opts ModelOptions) (Classifier, error) {
			model, err := LoadOnnxClassifier(opts.ModelDir, opts.InputSize)
			if err != nil {
				return nil, err
			}
			return model, nil
		},
		Remote: func(opts ModelOptions) (Classifier, error) {
			if opts.RemoteURL == "" {
				return nil, fmt.Errorf("remote classifier url is required")
			}
			return NewRemoteClassifier(opts.RemoteURL, opts.RemoteTimeout), nil
		},
		Static: func(opts ModelOptions) (Classifier, error) {
			return NewStaticClassifier(opts.StaticLabel), nil
		},
	}
}

func LoadClassifier(modelType ModelType, opts ModelOptions) (Classifier, error) {
	loader, ok := NewModelLoaders()[modelType]
	if !ok {
		return nil, fmt.Errorf("invalid model type '%s'", modelType)
	}
	return loader(opts)
}
