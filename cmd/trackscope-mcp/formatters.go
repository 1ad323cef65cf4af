package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/trackscope/internal/models"
)

// formatDevices renders the device profiles as a markdown table
func formatDevices(devices []models.DeviceProfile, defaultName string) string {
	var sb strings.Builder
	sb.WriteString("# Device profiles\n\n")
	sb.WriteString("| Name | Label | Viewport | Mobile |\n")
	sb.WriteString("|------|-------|----------|--------|\n")
	for _, d := range devices {
		name := d.Name
		if name == defaultName {
			name += " (default)"
		}
		fmt.Fprintf(&sb, "| %s | %s | %dx%d @%gx | %t |\n", name, d.Label, d.Width, d.Height, d.DeviceScaleFactor, d.Mobile)
	}
	return sb.String()
}
