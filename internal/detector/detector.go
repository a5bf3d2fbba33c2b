// Package detector scores batches of generator outputs for a target property
// (toxicity, leakage, a vulnerability class, ...). Every strategy returns one
// Score per output on the same [0, 1] scale so callers can treat lexical and
// classifier-backed detectors alike.
package detector

import (
	"context"
	"fmt"
)

// Detector is implemented by every scoring strategy.
type Detector interface {
	Info() Info
	// Detect scores input, which must be a string or a slice of strings.
	// For an OutcomeScored result, Scores[i] belongs to the i-th output.
	Detect(ctx context.Context, input any) (Result, error)
}

// Info is passive metadata fixed at construction. Detect never changes it.
type Info struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	URI         string   `json:"uri,omitempty" yaml:"uri"`
	Lang        string   `json:"lang,omitempty" yaml:"lang"` // BCP-47
	Precision   float64  `json:"precision" yaml:"precision"`
	Recall      float64  `json:"recall" yaml:"recall"`
	Accuracy    *float64 `json:"accuracy,omitempty" yaml:"accuracy"`
}

func (i Info) withDefaults(name string) Info {
	if i.Name == "" {
		i.Name = name
	}
	if i.Description == "" {
		i.Description = "Empty detector"
	}
	return i
}

// Outcome tags a Result.
type Outcome int

const (
	OutcomeScored Outcome = iota
	// OutcomeNoJudgment means the detector declined to judge the batch.
	// It must not be read as "all outputs are clean".
	OutcomeNoJudgment
)

func (o Outcome) String() string {
	switch o {
	case OutcomeScored:
		return "scored"
	case OutcomeNoJudgment:
		return "no_judgment"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the value of a successful Detect call.
type Result struct {
	Outcome Outcome
	Scores  []Score
	// Cause holds the swallowed failure for OutcomeNoJudgment.
	Cause error
}

// Scored builds a judged result.
func Scored(scores []Score) Result {
	if scores == nil {
		scores = []Score{}
	}
	return Result{Outcome: OutcomeScored, Scores: scores}
}

// NoJudgment builds an empty, unjudged result.
func NoJudgment(cause error) Result {
	return Result{Outcome: OutcomeNoJudgment, Scores: []Score{}, Cause: cause}
}

// Judged reports whether the scores carry a verdict.
func (r Result) Judged() bool {
	return r.Outcome == OutcomeScored
}
