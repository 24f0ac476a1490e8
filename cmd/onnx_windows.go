//go:build windows

package cmd

import "soil-backend/internal/core"

func InitOnnxRuntime(dylib string) (func(), error) {
	return nil, core.ErrOnnxNotSupportedOnWindows
}
