package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/straja-ai/detectors/internal/detector"
)

type listEntry struct {
	detector.Info
	Kind        string   `json:"kind"`
	Patterns    []string `json:"patterns,omitempty"`
	MatchMode   string   `json:"match_mode,omitempty"`
	Resource    string   `json:"resource,omitempty"`
	TargetLabel string   `json:"target_label,omitempty"`
}

// list only reads the config; classifiers are not loaded.
func newListCmd(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print configured detectors and their metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			entries := make([]listEntry, 0, len(cfg.Detectors))
			for _, dc := range cfg.Detectors {
				entries = append(entries, listEntry{
					Info:        dc.Info(),
					Kind:        dc.Kind,
					Patterns:    dc.Patterns,
					MatchMode:   dc.MatchMode,
					Resource:    dc.Resource,
					TargetLabel: dc.TargetLabel,
				})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}
}
