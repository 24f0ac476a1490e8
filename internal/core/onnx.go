//go:build !windows

package core

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"soil-backend/internal/core/soil"

	ort "github.com/yalue/onnxruntime_go"
)

// OnnxClassifier runs a CNN exported to ONNX. The graph takes a single
// float32 input of shape [1,H,W,3] and returns one score per label.
type OnnxClassifier struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	labels    []string
	inputSize int
}

func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	return labels, scanner.Err()
}

func LoadOnnxClassifier(modelDir string, inputSize int) (*OnnxClassifier, error) {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}

	labels, err := loadLabels(filepath.Join(modelDir, "labels.txt"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading labels: %w", err)
		}
		slog.Warn("labels.txt not found, using soil class labels", "model_dir", modelDir)
		labels = soil.Labels()
	}

	session, err := ort.NewDynamicAdvancedSession(
		filepath.Join(modelDir, "model.onnx"),
		[]string{"input"},
		[]string{"output"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}

	return &OnnxClassifier{session: session, labels: labels, inputSize: inputSize}, nil
}

func (m *OnnxClassifier) Classify(ctx context.Context, image []byte) ([]Category, error) {
	pixels, err := ImageToTensor(image, m.inputSize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := int64(m.inputSize)
	inT, err := ort.NewTensor(ort.NewShape(1, size, size, 3), pixels)
	if err != nil {
		return nil, err
	}
	defer inT.Destroy()

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(m.labels))))
	if err != nil {
		return nil, err
	}
	defer outT.Destroy()

	m.mu.Lock()
	err = m.session.Run([]ort.Value{inT}, []ort.Value{outT})
	m.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("session run error: %w", err)
	}

	scores := make([]float32, len(m.labels))
	copy(scores, outT.GetData())
	return rankScores(m.labels, scores)
}

func (m *OnnxClassifier) Labels() []string {
	return m.labels
}

func (m *OnnxClassifier) Release() {
	m.session.Destroy()
}
