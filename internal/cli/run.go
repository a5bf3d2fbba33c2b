package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/straja-ai/detectors/internal/detector"
	"github.com/straja-ai/detectors/internal/redact"
)

type runReport struct {
	RunID     string           `json:"run_id"`
	Outputs   int              `json:"outputs"`
	Detectors []detectorReport `json:"detectors"`
}

type detectorReport struct {
	Name    string           `json:"name"`
	Kind    string           `json:"kind"`
	Outcome string           `json:"outcome,omitempty"`
	Scores  []detector.Score `json:"scores"`
	Cause   string           `json:"cause,omitempty"`
	Error   string           `json:"error,omitempty"`
}

var errDetectorsFailed = errors.New("one or more detectors failed")

func newRunCmd(rootOpts *rootOptions) *cobra.Command {
	var (
		inputPath string
		only      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Score a batch of outputs and print a JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			outputs, err := readOutputs(inputPath, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := buildSuite(ctx, cfg, only)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			report := runReport{RunID: uuid.NewString(), Outputs: len(outputs)}
			failed := false
			for _, e := range s.entries {
				dr := detectorReport{Name: e.detector.Info().Name, Kind: e.kind, Scores: []detector.Score{}}
				res, err := e.detector.Detect(ctx, outputs)
				if err != nil {
					failed = true
					dr.Error = redact.String(err.Error())
				} else {
					dr.Outcome = res.Outcome.String()
					dr.Scores = res.Scores
					if res.Cause != nil {
						dr.Cause = redact.String(res.Cause.Error())
					}
				}
				report.Detectors = append(report.Detectors, dr)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if failed {
				return errDetectorsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "-", "File with outputs, one per line or a JSON array (- for stdin)")
	cmd.Flags().StringVar(&only, "detector", "", "Run only the named detector")
	return cmd
}
