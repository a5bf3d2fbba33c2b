// Package cli implements the detect command tree.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	version           = "0.1.0"
	defaultConfigPath = "detectors.yaml"
)

// Execute builds the root command tree and runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

type rootOptions struct {
	ConfigPath string
}

func newRootCmd() *cobra.Command {
	rootOpts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "detect",
		Short:         "Score generator outputs with configured detectors",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetVersionTemplate("detect version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&rootOpts.ConfigPath, "config", defaultConfigPath, "Path to the detector suite YAML")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// Best-effort: ONNXRUNTIME_SHARED_LIBRARY_PATH and sidecar keys may live in .env
		_ = godotenv.Load()
	}

	rootCmd.AddCommand(
		newRunCmd(rootOpts),
		newListCmd(rootOpts),
	)
	return rootCmd
}
