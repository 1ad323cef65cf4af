// Package main provides the trackscope command line: the HTTP server and one-shot scans.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/trackscope/internal/common"
)

// defaultConfigPaths are probed in order when no --config flag is given
var defaultConfigPaths = []string{
	"trackscope.toml",
	"deployments/trackscope.toml",
}

// NewRootCmd creates the root command for trackscope.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackscope",
		Short: "Audit the tracking behaviour of web pages",
		Long: `TrackScope loads a page in headless Chrome, dismisses its cookie consent overlay,
captures cookies, storage, scripts and network requests, and asks a model for a
privacy analysis of what it found.`,
		Version:       common.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringSliceP("config", "c", nil,
		"Configuration file path (repeatable, later files override earlier ones)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig resolves config files: defaults -> files -> env
func loadConfig(cmd *cobra.Command) (*common.Config, error) {
	paths, err := cmd.Flags().GetStringSlice("config")
	if err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		for _, candidate := range defaultConfigPaths {
			if _, err := os.Stat(candidate); err == nil {
				paths = append(paths, candidate)
				break
			}
		}
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return config, nil
}

func main() {
	defer common.RecoverWithCrashFile()

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
