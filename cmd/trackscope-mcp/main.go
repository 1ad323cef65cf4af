package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/trackscope/internal/app"
	"github.com/ternarybob/trackscope/internal/common"
)

func main() {
	var paths []string
	if configPath := os.Getenv("TRACKSCOPE_CONFIG"); configPath != "" {
		paths = append(paths, configPath)
	} else if _, err := os.Stat("trackscope.toml"); err == nil {
		paths = append(paths, "trackscope.toml")
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := common.SetupConsoleLogger("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"trackscope",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createAnalyzeTrackingTool(), handleAnalyzeTracking(application.Runner, logger))
	mcpServer.AddTool(createListDevicesTool(), handleListDevices())

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
