package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAnalyzeTrackingTool returns the analyze_tracking tool definition
func createAnalyzeTrackingTool() mcp.Tool {
	return mcp.NewTool("analyze_tracking",
		mcp.WithDescription("Load a web page in headless Chrome, accept its cookie consent dialog, and report the cookies, trackers and third parties it uses with a privacy score"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Page to scan; a bare host gets https://"),
		),
		mcp.WithString("device",
			mcp.Description("Device profile to emulate (see list_devices); defaults to the configured device"),
		),
	)
}

// createListDevicesTool returns the list_devices tool definition
func createListDevicesTool() mcp.Tool {
	return mcp.NewTool("list_devices",
		mcp.WithDescription("List the device profiles analyze_tracking can emulate"),
	)
}
