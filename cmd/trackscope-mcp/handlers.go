package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/report"
	"github.com/ternarybob/trackscope/internal/services/scan"
)

// scanner runs one scan to completion
type scanner interface {
	RunAndWait(ctx context.Context, req scan.Request, onEvent func(models.StreamEvent)) (models.AnalysisResult, error)
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
		IsError: isError,
	}
}

// handleAnalyzeTracking implements the analyze_tracking tool
func handleAnalyzeTracking(runner scanner, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil || url == "" {
			return textResult("Error: url parameter is required", true), nil
		}
		device := request.GetString("device", "")

		result, err := runner.RunAndWait(ctx, scan.Request{URL: url, Device: device}, nil)
		if err != nil {
			logger.Error().Err(err).Str("url", url).Msg("Scan failed")
			return textResult(fmt.Sprintf("Scan error: %v", err), true), nil
		}

		return textResult(report.Markdown(result), false), nil
	}
}

// handleListDevices implements the list_devices tool
func handleListDevices() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(formatDevices(models.DeviceProfiles(), models.DefaultDeviceName), false), nil
	}
}
