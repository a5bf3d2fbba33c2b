package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/straja-ai/detectors/internal/classifier"
	"github.com/straja-ai/detectors/internal/classifier/onnx"
	"github.com/straja-ai/detectors/internal/config"
	"github.com/straja-ai/detectors/internal/detector"
	"github.com/straja-ai/detectors/internal/telemetry"
)

type suiteEntry struct {
	kind     string
	detector detector.Detector
}

type suite struct {
	entries []suiteEntry
	tel     *telemetry.Provider
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func classifierSettings(rt config.RuntimeConfig) classifier.Settings {
	return classifier.Settings{
		ONNX: onnx.RuntimeSettings{
			SharedLibrary: rt.ONNXSharedLibrary,
			IntraThreads:  rt.IntraThreads,
			InterThreads:  rt.InterThreads,
			SeqLen:        rt.SeqLen,
		},
		HTTPTimeout: time.Duration(rt.HTTPTimeoutSeconds) * time.Second,
	}
}

// buildSuite constructs the configured detectors. When only is set, the other
// detectors are not loaded at all.
func buildSuite(ctx context.Context, cfg *config.Config, only string) (*suite, error) {
	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  cfg.Telemetry.ServiceName,
		Version:  version,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	s := &suite{tel: tel}
	obs := detector.MultiObserver{detector.LogObserver{}, tel.Observer()}
	load := classifier.Loader(classifierSettings(cfg.Runtime))

	for _, dc := range cfg.Detectors {
		if only != "" && dc.Name != only {
			continue
		}
		d, err := buildDetector(dc, load, obs)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("detector %q: %w", dc.Name, err)
		}
		s.entries = append(s.entries, suiteEntry{kind: dc.Kind, detector: tel.Instrument(d, dc.Kind)})
	}
	if len(s.entries) == 0 {
		s.Close(ctx)
		if only != "" {
			return nil, fmt.Errorf("no detector named %q", only)
		}
		return nil, errors.New("no detectors configured")
	}
	return s, nil
}

func buildDetector(dc config.DetectorConfig, load detector.Loader, obs detector.Observer) (detector.Detector, error) {
	switch dc.Kind {
	case config.KindLexical:
		d, err := detector.NewLexical(dc.Info(), detector.LexicalConfig{
			Patterns:      dc.Patterns,
			MatchMode:     detector.MatchMode(dc.MatchMode),
			CaseSensitive: dc.CaseSensitive,
		})
		if err != nil {
			return nil, err
		}
		obs.DetectorLoaded(d.Info())
		return d, nil
	case config.KindClassifier:
		d, err := detector.NewClassifier(dc.Info(), detector.ClassifierConfig{
			Resource:        dc.Resource,
			TargetLabel:     dc.TargetLabel,
			GracefulFailure: dc.GracefulFailure,
			Options:         dc.Options,
		}, load, detector.WithObserver(obs))
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown detector kind %q", dc.Kind)
	}
}

// Close releases classifier resources and flushes telemetry.
func (s *suite) Close(ctx context.Context) {
	for _, e := range s.entries {
		if c, ok := e.detector.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
	s.entries = nil
	s.tel.Shutdown(ctx)
}
