package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/trackscope/internal/app"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/report"
	"github.com/ternarybob/trackscope/internal/services/scan"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan a single page and print its tracking report",
		Long: `Scan runs the full pipeline for one URL without starting the server.

Examples:
  # Markdown report on stdout
  trackscope scan example.com

  # Emulate a phone and keep the raw result
  trackscope scan https://example.com --device iphone-14 --json > result.json

  # Also write a PDF report
  trackscope scan example.com --pdf example.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runScan,
	}

	cmd.Flags().StringP("device", "d", "", "Device profile to emulate (see /api/devices)")
	cmd.Flags().Bool("json", false, "Print the analysis result as JSON instead of markdown")
	cmd.Flags().String("pdf", "", "Write a PDF report to this path")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	device, _ := cmd.Flags().GetString("device")
	asJSON, _ := cmd.Flags().GetBool("json")
	pdfPath, _ := cmd.Flags().GetString("pdf")

	// stdout carries the report, so progress goes to the console logger on stderr
	config.Logging.Output = []string{"console"}
	logger := common.SetupLogger(config)

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := cmd.ErrOrStderr()
	result, err := application.Runner.RunAndWait(ctx, scan.Request{URL: args[0], Device: device}, func(ev models.StreamEvent) {
		fmt.Fprintf(stderr, "[%s] %s\n", ev.Stage, ev.Message)
	})
	if err != nil {
		return err
	}

	if err := writeResult(cmd.OutOrStdout(), result, asJSON); err != nil {
		return err
	}

	if pdfPath != "" {
		data, err := application.ReportService.Build(result)
		if err != nil {
			return err
		}
		if err := os.WriteFile(pdfPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(stderr, "Report written to %s\n", pdfPath)
	}
	return nil
}

func writeResult(w io.Writer, result models.AnalysisResult, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	_, err := io.WriteString(w, report.Markdown(result))
	return err
}
