package detector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClassifier struct {
	preds  []Prediction
	err    error
	calls  atomic.Int32
	closed bool

	active       atomic.Int32
	overlap      atomic.Bool
	delay        time.Duration
	closedMidRun atomic.Bool
}

func (f *fakeClassifier) Classify(ctx context.Context, texts []string, opts map[string]any) ([]Prediction, error) {
	f.calls.Add(1)
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.preds != nil {
		return f.preds, nil
	}
	out := make([]Prediction, len(texts))
	for i := range texts {
		out[i] = Prediction{Label: "toxic", Score: 1}
	}
	return out, nil
}

func (f *fakeClassifier) Close() error {
	if f.active.Load() > 0 {
		f.closedMidRun.Store(true)
	}
	f.closed = true
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	loaded   []string
	failures []error
}

func (r *recordingObserver) DetectorLoaded(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, info.Name)
}

func (r *recordingObserver) ClassifierFailed(info Info, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func loaderFor(c Classifier) Loader {
	return func(string) (Classifier, error) { return c, nil }
}

func newTestClassifier(t *testing.T, clf Classifier, graceful bool, obs Observer) *ClassifierDetector {
	t.Helper()
	d, err := NewClassifier(
		Info{Name: "toxicity.Model"},
		ClassifierConfig{Resource: "models/toxic", TargetLabel: "toxic", GracefulFailure: graceful},
		loaderFor(clf),
		WithObserver(obs),
	)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	return d
}

func TestRemap(t *testing.T) {
	cases := []struct {
		label string
		conf  float64
		want  Score
	}{
		{label: "toxic", conf: 1.0, want: 1.0},
		{label: "toxic", conf: 0.0, want: 0.5},
		{label: "clean", conf: 1.0, want: 0.0},
		{label: "clean", conf: 0.0, want: 0.5},
		{label: "toxic", conf: 0.5, want: 0.75},
		{label: "clean", conf: 0.5, want: 0.25},
	}
	for _, tc := range cases {
		got := Remap(Prediction{Label: tc.label, Score: tc.conf}, "toxic")
		if got != tc.want {
			t.Fatalf("remap(%s, %v): expected %v, got %v", tc.label, tc.conf, tc.want, got)
		}
	}
}

func TestClassifierDetectRemapsBatch(t *testing.T) {
	clf := &fakeClassifier{preds: []Prediction{
		{Label: "toxic", Score: 1.0},
		{Label: "clean", Score: 1.0},
		{Label: "toxic", Score: 0.0},
	}}
	d := newTestClassifier(t, clf, false, NopObserver{})

	got := detectScores(t, d, []string{"a", "b", "c"})
	want := []Score{1.0, 0.0, 0.5}
	if len(got) != len(want) {
		t.Fatalf("expected %d scores, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("score %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if clf.calls.Load() != 1 {
		t.Fatalf("expected one classifier call per batch, got %d", clf.calls.Load())
	}
}

func TestClassifierDetectWrapsSingleOutput(t *testing.T) {
	d := newTestClassifier(t, &fakeClassifier{}, false, NopObserver{})
	got := detectScores(t, d, "just one")
	if len(got) != 1 || got[0] != ScoreHit {
		t.Fatalf("expected [1], got %v", got)
	}
}

func TestClassifierGracefulFailure(t *testing.T) {
	obs := &recordingObserver{}
	boom := errors.New("cuda out of memory")
	d := newTestClassifier(t, &fakeClassifier{err: boom}, true, obs)

	res, err := d.Detect(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("expected no error in graceful mode, got %v", err)
	}
	if res.Judged() || res.Outcome != OutcomeNoJudgment {
		t.Fatalf("expected no judgment, got %s", res.Outcome)
	}
	if len(res.Scores) != 0 {
		t.Fatalf("expected empty scores, got %v", res.Scores)
	}
	if !errors.Is(res.Cause, boom) {
		t.Fatalf("expected cause to be kept, got %v", res.Cause)
	}
	if len(obs.failures) != 1 {
		t.Fatalf("expected failure to be reported once, got %d", len(obs.failures))
	}
}

func TestClassifierStrictFailure(t *testing.T) {
	boom := errors.New("runtime exploded")
	d := newTestClassifier(t, &fakeClassifier{err: boom}, false, NopObserver{})

	res, err := d.Detect(context.Background(), []string{"a", "b"})
	if err == nil {
		t.Fatalf("expected error in strict mode")
	}
	var invErr *ClassifierInvocationError
	if !errors.As(err, &invErr) || !errors.Is(err, ErrClassifierInvocation) {
		t.Fatalf("expected ClassifierInvocationError, got %T %v", err, err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected original cause attached, got %v", err)
	}
	if len(res.Scores) != 0 {
		t.Fatalf("expected no partial scores, got %v", res.Scores)
	}
}

func TestClassifierContractViolations(t *testing.T) {
	cases := []struct {
		name  string
		preds []Prediction
	}{
		{name: "short", preds: []Prediction{{Label: "toxic", Score: 1}}},
		{name: "confidence above one", preds: []Prediction{{Label: "toxic", Score: 1.2}, {Label: "toxic", Score: 0}}},
		{name: "negative confidence", preds: []Prediction{{Label: "toxic", Score: -0.1}, {Label: "toxic", Score: 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestClassifier(t, &fakeClassifier{preds: tc.preds}, false, NopObserver{})
			if _, err := d.Detect(context.Background(), []string{"a", "b"}); !errors.Is(err, ErrClassifierInvocation) {
				t.Fatalf("expected invocation error, got %v", err)
			}
		})
	}
}

func TestClassifierCancelledContextIsNeverGraceful(t *testing.T) {
	d := newTestClassifier(t, &fakeClassifier{err: context.Canceled}, true, NopObserver{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, "a"); !errors.Is(err, ErrClassifierInvocation) {
		t.Fatalf("expected invocation error for cancelled context, got %v", err)
	}
}

func TestClassifierInvalidInputKind(t *testing.T) {
	clf := &fakeClassifier{}
	d := newTestClassifier(t, clf, true, NopObserver{})
	if _, err := d.Detect(context.Background(), 7); !errors.Is(err, ErrInvalidInputKind) {
		t.Fatalf("expected ErrInvalidInputKind, got %v", err)
	}
	if clf.calls.Load() != 0 {
		t.Fatalf("classifier must not run for invalid input")
	}
}

func TestNewClassifierLoadFailure(t *testing.T) {
	cause := errors.New("model file missing")
	_, err := NewClassifier(Info{}, ClassifierConfig{Resource: "x", TargetLabel: "toxic"}, func(string) (Classifier, error) {
		return nil, cause
	})
	var loadErr *ClassifierLoadError
	if !errors.As(err, &loadErr) || !errors.Is(err, ErrClassifierLoad) || !errors.Is(err, cause) {
		t.Fatalf("expected ClassifierLoadError wrapping cause, got %v", err)
	}
	if loadErr.Resource != "x" {
		t.Fatalf("expected resource x, got %s", loadErr.Resource)
	}
}

func TestNewClassifierConfigErrors(t *testing.T) {
	load := loaderFor(&fakeClassifier{})
	if _, err := NewClassifier(Info{}, ClassifierConfig{TargetLabel: "toxic"}, load); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for empty resource, got %v", err)
	}
	if _, err := NewClassifier(Info{}, ClassifierConfig{Resource: "x"}, load); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for empty target label, got %v", err)
	}
	if _, err := NewClassifier(Info{}, ClassifierConfig{Resource: "x", TargetLabel: "t"}, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for nil loader, got %v", err)
	}
}

func TestNewClassifierDefaultsAndObserver(t *testing.T) {
	obs := &recordingObserver{}
	clf := &fakeClassifier{}
	d, err := NewClassifier(Info{}, ClassifierConfig{Resource: "martin-ha/toxic-comment-model", TargetLabel: "toxic"}, loaderFor(clf), WithObserver(obs))
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	if d.Info().Name != "HF:martin-ha/toxic-comment-model" {
		t.Fatalf("unexpected default name %q", d.Info().Name)
	}
	if len(obs.loaded) != 1 || obs.loaded[0] != d.Info().Name {
		t.Fatalf("expected load notification, got %v", obs.loaded)
	}
	if err := d.Close(); err != nil || !clf.closed {
		t.Fatalf("expected classifier to be closed, err=%v", err)
	}
}

func TestClassifierSerializesConcurrentCalls(t *testing.T) {
	clf := &fakeClassifier{delay: 5 * time.Millisecond}
	d := newTestClassifier(t, clf, false, NopObserver{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Detect(context.Background(), []string{"a", "b"}); err != nil {
				t.Errorf("detect: %v", err)
			}
		}()
	}
	wg.Wait()
	if clf.overlap.Load() {
		t.Fatalf("classifier calls overlapped on one detector")
	}
	if clf.calls.Load() != 8 {
		t.Fatalf("expected 8 calls, got %d", clf.calls.Load())
	}
}

func TestClassifierCloseWaitsForDetect(t *testing.T) {
	clf := &fakeClassifier{delay: 30 * time.Millisecond}
	d := newTestClassifier(t, clf, false, NopObserver{})

	done := make(chan error, 1)
	go func() {
		_, err := d.Detect(context.Background(), []string{"a"})
		done <- err
	}()
	for clf.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("detect: %v", err)
	}
	if clf.closedMidRun.Load() {
		t.Fatalf("classifier closed while a call was running")
	}
	if !clf.closed {
		t.Fatalf("expected classifier to be closed")
	}
}
