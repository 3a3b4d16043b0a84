package backbone

import (
	"fmt"
	"os"
	"runtime"

	"github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides the ONNX Runtime shared library location.
const EnvLibraryPath = "CENTERNET_ONNX_LIB"

var systemLibraryPaths = []string{
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/libonnxruntime.so",
	"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// initEnvironment points onnxruntime at a usable shared library and
// initializes it once per process.
func initEnvironment() error {
	if onnxruntime_go.IsInitialized() {
		return nil
	}
	if path := os.Getenv(EnvLibraryPath); path != "" {
		onnxruntime_go.SetSharedLibraryPath(path)
	} else if _, err := libraryName(); err != nil {
		return err
	} else {
		for _, path := range systemLibraryPaths {
			if _, err := os.Stat(path); err == nil {
				onnxruntime_go.SetSharedLibraryPath(path)
				break
			}
		}
	}
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}
