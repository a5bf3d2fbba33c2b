package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"
)

// Prediction is one (label, confidence) pair from a classifier.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier is an external scoring resource. It must return exactly one
// Prediction per text, in input order, with Score in [0, 1]. Implementations
// need not be safe for concurrent use; ClassifierDetector serializes calls.
type Classifier interface {
	Classify(ctx context.Context, texts []string, opts map[string]any) ([]Prediction, error)
}

// Loader initializes the classifier identified by resource.
type Loader func(resource string) (Classifier, error)

// ClassifierConfig configures a ClassifierDetector.
type ClassifierConfig struct {
	Resource        string
	TargetLabel     string
	GracefulFailure bool
	// Options is handed to the classifier on every call (e.g. max_length).
	Options map[string]any
}

// ClassifierOption customizes a ClassifierDetector.
type ClassifierOption func(*ClassifierDetector)

// WithObserver sets where loads and graceful failures are reported.
func WithObserver(o Observer) ClassifierOption {
	return func(d *ClassifierDetector) {
		if o != nil {
			d.observer = o
		}
	}
}

// ClassifierDetector maps a classifier's (label, confidence) output onto the
// shared risk scale. Calls into the owned classifier are serialized; distinct
// detectors run independently.
type ClassifierDetector struct {
	info     Info
	cfg      ClassifierConfig
	clf      Classifier
	observer Observer
	slot     chan struct{}
}

// NewClassifier loads the classifier eagerly. A load failure is returned as a
// *ClassifierLoadError and no detector is built.
func NewClassifier(info Info, cfg ClassifierConfig, load Loader, opts ...ClassifierOption) (*ClassifierDetector, error) {
	cfg.Resource = strings.TrimSpace(cfg.Resource)
	if cfg.Resource == "" {
		return nil, configErrorf("resource", "classifier resource is empty")
	}
	if cfg.TargetLabel == "" {
		return nil, configErrorf("target_label", "target label is empty")
	}
	if load == nil {
		return nil, configErrorf("loader", "no classifier loader configured")
	}
	cfg.Options = maps.Clone(cfg.Options)

	d := &ClassifierDetector{
		info:     info.withDefaults("HF:" + cfg.Resource),
		cfg:      cfg,
		observer: LogObserver{},
		slot:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}

	clf, err := load(cfg.Resource)
	if err == nil && clf == nil {
		err = errors.New("loader returned no classifier")
	}
	if err != nil {
		return nil, &ClassifierLoadError{Resource: cfg.Resource, Err: err}
	}
	d.clf = clf
	d.observer.DetectorLoaded(d.info)
	return d, nil
}

func (d *ClassifierDetector) Info() Info { return d.info }

// TargetLabel returns the label that affirms the target property.
func (d *ClassifierDetector) TargetLabel() string { return d.cfg.TargetLabel }

// Detect classifies the batch in a single call. In graceful mode a classifier
// failure yields NoJudgment; otherwise it is returned as a
// *ClassifierInvocationError. Context cancellation is never graceful.
func (d *ClassifierDetector) Detect(ctx context.Context, input any) (Result, error) {
	batch, err := Normalize(input)
	if err != nil {
		return Result{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	preds, err := d.classify(ctx, batch)
	if err != nil {
		if d.cfg.GracefulFailure && ctx.Err() == nil {
			d.observer.ClassifierFailed(d.info, err)
			return NoJudgment(err), nil
		}
		return Result{}, &ClassifierInvocationError{Detector: d.info.Name, Err: err}
	}

	scores := make([]Score, len(preds))
	for i, p := range preds {
		scores[i] = Remap(p, d.cfg.TargetLabel)
	}
	return Scored(scores), nil
}

func (d *ClassifierDetector) classify(ctx context.Context, batch Batch) ([]Prediction, error) {
	select {
	case d.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-d.slot }()

	preds, err := d.clf.Classify(ctx, batch, d.cfg.Options)
	if err != nil {
		return nil, err
	}
	if len(preds) != len(batch) {
		return nil, fmt.Errorf("classifier returned %d predictions for %d outputs", len(preds), len(batch))
	}
	for i, p := range preds {
		if !Score(p.Score).Valid() {
			return nil, fmt.Errorf("prediction %d: confidence %v outside [0,1]", i, p.Score)
		}
	}
	return preds, nil
}

// Close releases the classifier when it holds resources. It waits for an
// in-flight Detect to finish first.
func (d *ClassifierDetector) Close() error {
	d.slot <- struct{}{}
	defer func() { <-d.slot }()
	if c, ok := d.clf.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Remap places a prediction on the risk axis with 0.5 as the decision
// boundary: affirming the target label maps to [0.5, 1], any other label to
// [0, 0.5].
func Remap(p Prediction, targetLabel string) Score {
	if p.Label == targetLabel {
		return Clamp(0.5 + p.Score/2)
	}
	return Clamp(0.5 - p.Score/2)
}
