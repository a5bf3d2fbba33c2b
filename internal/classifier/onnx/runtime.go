package onnx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	defaultSeqLen       = 256
	defaultIntraThreads = 1
	defaultInterThreads = 1
)

// RuntimeSettings tunes the onnxruntime environment and sessions.
type RuntimeSettings struct {
	// SharedLibrary overrides shared library discovery.
	SharedLibrary string
	IntraThreads  int
	InterThreads  int
	SeqLen        int
}

func (rt RuntimeSettings) withDefaults() RuntimeSettings {
	if rt.IntraThreads <= 0 {
		rt.IntraThreads = defaultIntraThreads
	}
	if rt.InterThreads <= 0 {
		rt.InterThreads = defaultInterThreads
	}
	if rt.SeqLen <= 0 {
		rt.SeqLen = defaultSeqLen
	}
	return rt
}

var envMu sync.Mutex

// initRuntime points onnxruntime at its shared library and initializes the
// process-wide environment once.
func initRuntime(bundleDir string, rt RuntimeSettings) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	libPath := strings.TrimSpace(rt.SharedLibrary)
	if libPath == "" {
		libPath = resolveSharedLibraryPath(bundleDir)
	}
	if libPath == "" {
		return fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise common names and locations
// are probed.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

func newSessionOptions(rt RuntimeSettings) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(rt.IntraThreads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(rt.InterThreads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set inter threads: %w", err)
	}
	return opts, nil
}
