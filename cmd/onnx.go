//go:build !windows

package cmd

import (
	"fmt"
	"log/slog"

	ort "github.com/yalue/onnxruntime_go"
)

// InitOnnxRuntime loads the shared library and returns the matching teardown.
func InitOnnxRuntime(dylib string) (func(), error) {
	if dylib == "" {
		return nil, fmt.Errorf("ONNX_RUNTIME_DYLIB must be set for onnx models")
	}
	ort.SetSharedLibraryPath(dylib)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("could not init ONNX Runtime: %w", err)
	}
	return func() {
		if err := ort.DestroyEnvironment(); err != nil {
			slog.Error("error destroying onnx env", "error", err)
		}
	}, nil
}
