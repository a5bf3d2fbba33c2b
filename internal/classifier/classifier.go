// Package classifier resolves a resource reference into a classifier:
// http(s) URLs reach a scoring sidecar, anything else is an ONNX bundle on
// disk.
package classifier

import (
	"context"
	"strings"
	"time"

	"github.com/straja-ai/detectors/internal/classifier/onnx"
	"github.com/straja-ai/detectors/internal/classifier/remote"
	"github.com/straja-ai/detectors/internal/detector"
)

// Settings carries runtime knobs shared by every loaded resource.
type Settings struct {
	ONNX        onnx.RuntimeSettings
	HTTPTimeout time.Duration
}

// IsRemote reports whether resource names a sidecar.
func IsRemote(resource string) bool {
	r := strings.ToLower(strings.TrimSpace(resource))
	return strings.HasPrefix(r, "http://") || strings.HasPrefix(r, "https://")
}

// Open loads the classifier behind resource.
func Open(resource string, s Settings) (detector.Classifier, error) {
	if IsRemote(resource) {
		ctx := context.Background()
		if s.HTTPTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.HTTPTimeout)
			defer cancel()
		}
		c, err := remote.New(ctx, resource, s.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	m, err := onnx.Load(resource, s.ONNX)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Loader adapts Open for detector.NewClassifier.
func Loader(s Settings) detector.Loader {
	return func(resource string) (detector.Classifier, error) {
		return Open(resource, s)
	}
}
