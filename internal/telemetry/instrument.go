package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/straja-ai/detectors/internal/detector"
)

// Instrument wraps d so every Detect call produces a span and run metrics.
// kind is a free-form label such as "lexical" or "classifier".
func (p *Provider) Instrument(d detector.Detector, kind string) detector.Detector {
	if p == nil || d == nil {
		return d
	}
	return &instrumented{inner: d, kind: kind, p: p}
}

type instrumented struct {
	inner detector.Detector
	kind  string
	p     *Provider
}

func (i *instrumented) Info() detector.Info { return i.inner.Info() }

func (i *instrumented) Detect(ctx context.Context, input any) (detector.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	info := i.inner.Info()
	ctx, span := i.p.Tracer().Start(ctx, "detector.detect", trace.WithAttributes(
		SafeAttributes(map[string]interface{}{
			"detector.name": info.Name,
			"detector.kind": i.kind,
			"detector.lang": info.Lang,
		})...,
	))
	defer span.End()

	start := time.Now()
	res, err := i.inner.Detect(ctx, input)
	durMs := float64(time.Since(start).Microseconds()) / 1000

	outcome := res.Outcome.String()
	hits := 0
	if err != nil {
		outcome = errorOutcome(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		for _, s := range res.Scores {
			if s >= detector.ScoreBoundary {
				hits++
			}
		}
		span.SetAttributes(
			attribute.String("detector.outcome", outcome),
			attribute.Int("detector.outputs", len(res.Scores)),
			attribute.Int("detector.hits", hits),
		)
	}
	i.p.RecordRun(ctx, info.Name, i.kind, outcome, durMs, len(res.Scores), hits)
	return res, err
}

// Close forwards to the wrapped detector when it holds resources.
func (i *instrumented) Close() error {
	if c, ok := i.inner.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func errorOutcome(err error) string {
	switch {
	case errors.Is(err, detector.ErrInvalidInputKind):
		return "invalid_input"
	case errors.Is(err, detector.ErrConfiguration):
		return "config_error"
	case errors.Is(err, detector.ErrClassifierInvocation):
		return "classifier_error"
	default:
		return "error"
	}
}

// Observer counts graceful classifier failures. Combine it with
// detector.LogObserver through detector.MultiObserver to keep the log line.
func (p *Provider) Observer() detector.Observer {
	return providerObserver{p: p}
}

type providerObserver struct {
	p *Provider
}

func (o providerObserver) DetectorLoaded(detector.Info) {}

func (o providerObserver) ClassifierFailed(info detector.Info, err error) {
	if o.p == nil {
		return
	}
	o.p.classifierFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("detector.name", info.Name),
	))
}
