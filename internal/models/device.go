package models

import (
	"fmt"
	"sort"
)

// DeviceProfile configures browser emulation for a scan
type DeviceProfile struct {
	Name              string  `json:"name"`
	Label             string  `json:"label"`
	UserAgent         string  `json:"user_agent"`
	Width             int64   `json:"width"`
	Height            int64   `json:"height"`
	DeviceScaleFactor float64 `json:"device_scale_factor"`
	Mobile            bool    `json:"mobile"`
	Touch             bool    `json:"touch"`
}

// DefaultDeviceName is used when a request does not name a profile
const DefaultDeviceName = "desktop-1080p"

const (
	uaChromeDesktop = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	uaChromeMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	uaIPhone        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
	uaIPad          = "Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
	uaPixel         = "Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36"
	uaGalaxyTab     = "Mozilla/5.0 (Linux; Android 14; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// deviceProfiles is the fixed table of named profiles
var deviceProfiles = map[string]DeviceProfile{
	"iphone-14": {
		Name: "iphone-14", Label: "iPhone 14", UserAgent: uaIPhone,
		Width: 390, Height: 844, DeviceScaleFactor: 3, Mobile: true, Touch: true,
	},
	"pixel-7": {
		Name: "pixel-7", Label: "Pixel 7", UserAgent: uaPixel,
		Width: 412, Height: 915, DeviceScaleFactor: 2.625, Mobile: true, Touch: true,
	},
	"ipad-air": {
		Name: "ipad-air", Label: "iPad Air", UserAgent: uaIPad,
		Width: 820, Height: 1180, DeviceScaleFactor: 2, Mobile: true, Touch: true,
	},
	"galaxy-tab-s8": {
		Name: "galaxy-tab-s8", Label: "Galaxy Tab S8", UserAgent: uaGalaxyTab,
		Width: 800, Height: 1280, DeviceScaleFactor: 2, Mobile: true, Touch: true,
	},
	"desktop-1080p": {
		Name: "desktop-1080p", Label: "Desktop 1920x1080", UserAgent: uaChromeDesktop,
		Width: 1920, Height: 1080, DeviceScaleFactor: 1,
	},
	"desktop-1440p": {
		Name: "desktop-1440p", Label: "Desktop 2560x1440", UserAgent: uaChromeDesktop,
		Width: 2560, Height: 1440, DeviceScaleFactor: 1,
	},
	"macbook-air": {
		Name: "macbook-air", Label: "MacBook Air", UserAgent: uaChromeMac,
		Width: 1440, Height: 900, DeviceScaleFactor: 2,
	},
}

// LookupDevice returns the named profile; an empty name selects the default
func LookupDevice(name string) (DeviceProfile, error) {
	if name == "" {
		name = DefaultDeviceName
	}
	profile, ok := deviceProfiles[name]
	if !ok {
		return DeviceProfile{}, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return profile, nil
}

// DeviceProfiles returns every profile sorted by name
func DeviceProfiles() []DeviceProfile {
	profiles := make([]DeviceProfile, 0, len(deviceProfiles))
	for _, p := range deviceProfiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles
}

// DeviceNames returns the sorted profile names
func DeviceNames() []string {
	profiles := DeviceProfiles()
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}
