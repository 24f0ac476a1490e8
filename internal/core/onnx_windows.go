//go:build windows

package core

import (
	"context"
	"errors"
)

var ErrOnnxNotSupportedOnWindows = errors.New("ONNX models are not supported on Windows")

type OnnxClassifier struct{}

func LoadOnnxClassifier(modelDir string, inputSize int) (*OnnxClassifier, error) {
	return nil, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxClassifier) Classify(ctx context.Context, image []byte) ([]Category, error) {
	return nil, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxClassifier) Labels() []string {
	return nil
}

func (m *OnnxClassifier) Release() {}
