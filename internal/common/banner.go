package common

import (
	"fmt"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner with the listen address
func PrintBanner(config *Config) {
	banner.Print("TrackScope", GetVersion())
	fmt.Printf("  Listening on http://%s:%d  (provider: %s, device: %s)\n\n",
		config.Server.Host, config.Server.Port, config.LLM.DefaultProvider, config.Browser.DefaultDevice)
}
