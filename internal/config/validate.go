package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"github.com/straja-ai/detectors/internal/detector"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	if len(cfg.Detectors) == 0 {
		return errors.New("at least one detector must be configured")
	}
	seen := make(map[string]struct{}, len(cfg.Detectors))
	for i, d := range cfg.Detectors {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return fmt.Errorf("detector %d: name must be set", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("detector %q defined more than once", name)
		}
		seen[name] = struct{}{}
		if err := validateDetectorConfig(d); err != nil {
			return fmt.Errorf("detector %q: %w", name, err)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry.endpoint must be set when telemetry is enabled")
	}
	switch strings.ToLower(t.Protocol) {
	case "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
	}
	return nil
}

func validateDetectorConfig(d DetectorConfig) error {
	if d.Lang != "" {
		if _, err := language.Parse(d.Lang); err != nil {
			return fmt.Errorf("lang %q is not a BCP-47 tag: %w", d.Lang, err)
		}
	}
	for field, v := range map[string]float64{"precision": d.Precision, "recall": d.Recall} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1]", field)
		}
	}
	if d.Accuracy != nil && (*d.Accuracy < 0 || *d.Accuracy > 1) {
		return errors.New("accuracy must be within [0,1]")
	}

	switch d.Kind {
	case KindLexical:
		if len(d.Patterns) == 0 {
			return errors.New("lexical detector needs at least one pattern")
		}
		for i, p := range d.Patterns {
			if p == "" {
				return fmt.Errorf("pattern %d is empty", i)
			}
		}
		if _, err := detector.ParseMatchMode(d.MatchMode); err != nil {
			return err
		}
	case KindClassifier:
		if strings.TrimSpace(d.Resource) == "" {
			return errors.New("classifier detector needs a resource")
		}
		if strings.TrimSpace(d.TargetLabel) == "" {
			return errors.New("classifier detector needs a target_label")
		}
		if r := strings.ToLower(d.Resource); strings.HasPrefix(r, "http://") || strings.HasPrefix(r, "https://") {
			u, err := url.Parse(d.Resource)
			if err != nil || u.Host == "" {
				return fmt.Errorf("resource %q is not a valid url", d.Resource)
			}
		}
	default:
		return fmt.Errorf("unknown kind %q (want lexical or classifier)", d.Kind)
	}
	return nil
}
