package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/straja-ai/detectors/internal/detector"
)

const (
	KindLexical    = "lexical"
	KindClassifier = "classifier"
)

// Config holds the detector suite configuration.
type Config struct {
	Runtime   RuntimeConfig    `yaml:"runtime"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Detectors []DetectorConfig `yaml:"detectors"`
}

type RuntimeConfig struct {
	ONNXSharedLibrary  string `yaml:"onnx_shared_library"` // overrides ONNXRUNTIME_SHARED_LIBRARY_PATH
	IntraThreads       int    `yaml:"intra_threads"`
	InterThreads       int    `yaml:"inter_threads"`
	SeqLen             int    `yaml:"seq_len"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"` // remote classifiers
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"` // grpc | http
	ServiceName string `yaml:"service_name"`
}

// DetectorConfig describes one detector. Kind selects which of the strategy
// fields apply.
type DetectorConfig struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"` // lexical | classifier
	Description string   `yaml:"description"`
	URI         string   `yaml:"uri"`
	Lang        string   `yaml:"lang"`
	Precision   float64  `yaml:"precision"`
	Recall      float64  `yaml:"recall"`
	Accuracy    *float64 `yaml:"accuracy"`

	// lexical
	Patterns      []string `yaml:"patterns"`
	PatternsFile  string   `yaml:"patterns_file"` // one pattern per line, # comments
	MatchMode     string   `yaml:"match_mode"`    // substring | whole_word
	CaseSensitive bool     `yaml:"case_sensitive"`

	// classifier
	Resource        string         `yaml:"resource"`
	TargetLabel     string         `yaml:"target_label"`
	GracefulFailure bool           `yaml:"graceful_failure"`
	Options         map[string]any `yaml:"options"`
}

// Info returns the passive detector metadata.
func (d DetectorConfig) Info() detector.Info {
	return detector.Info{
		Name:        d.Name,
		Description: d.Description,
		URI:         d.URI,
		Lang:        d.Lang,
		Precision:   d.Precision,
		Recall:      d.Recall,
		Accuracy:    d.Accuracy,
	}
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return parse(data, filepath.Dir(path))
}

// Parse decodes YAML and applies defaults. Relative patterns_file paths are
// resolved against the working directory.
func Parse(data []byte) (*Config, error) {
	return parse(data, ".")
}

func parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := loadPatternFiles(&cfg, baseDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadPatternFiles appends the contents of each patterns_file to the inline
// patterns of its detector.
func loadPatternFiles(cfg *Config, baseDir string) error {
	for i := range cfg.Detectors {
		d := &cfg.Detectors[i]
		if d.PatternsFile == "" {
			continue
		}
		path := d.PatternsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("detector %q: patterns_file: %w", d.Name, err)
		}
		d.Patterns = append(d.Patterns, readPatternLines(data)...)
	}
	return nil
}

func readPatternLines(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Runtime.IntraThreads <= 0 {
		cfg.Runtime.IntraThreads = 1
	}
	if cfg.Runtime.InterThreads <= 0 {
		cfg.Runtime.InterThreads = 1
	}
	if cfg.Runtime.SeqLen <= 0 {
		cfg.Runtime.SeqLen = 256
	}
	if cfg.Runtime.HTTPTimeoutSeconds <= 0 {
		cfg.Runtime.HTTPTimeoutSeconds = 30
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "detectors"
	}

	for i := range cfg.Detectors {
		d := &cfg.Detectors[i]
		d.Kind = strings.ToLower(strings.TrimSpace(d.Kind))
		if d.Kind == "" {
			if strings.TrimSpace(d.Resource) != "" {
				d.Kind = KindClassifier
			} else {
				d.Kind = KindLexical
			}
		}
		if d.Kind == KindLexical && d.MatchMode == "" {
			d.MatchMode = string(detector.MatchSubstring)
		}
	}
}
