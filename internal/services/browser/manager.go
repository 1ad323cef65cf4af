package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
)

// Manager launches one isolated Chrome session per job
type Manager struct {
	config common.BrowserConfig
	logger arbor.ILogger
}

// NewManager creates a session manager
func NewManager(config common.BrowserConfig, logger arbor.ILogger) *Manager {
	return &Manager{
		config: config,
		logger: logger,
	}
}

// allocatorOptions builds the Chrome flags for a device profile
func (m *Manager) allocatorOptions(device models.DeviceProfile) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", m.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		// Keep cross-origin iframes in-process so consent frames can be scripted from the page target
		chromedp.Flag("disable-site-isolation-trials", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.UserAgent(device.UserAgent),
		chromedp.WindowSize(int(device.Width), int(device.Height)),
	)
	if m.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.config.ExecPath))
	}
	return opts
}

// Launch starts Chrome, applies device emulation and enables network events.
// The session is bound to ctx: cancelling ctx terminates the browser process.
func (m *Manager) Launch(ctx context.Context, device models.DeviceProfile) (interfaces.BrowserSession, error) {
	startTime := time.Now()

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, m.allocatorOptions(device)...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	session := &Session{
		ctx:             browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		logger:          m.logger,
		device:          device,
	}

	// The first Run binds the browser lifetime to browserCtx, so bound startup with a timer instead of a derived context
	startupTimeout := common.Duration(m.config.StartupTimeout, 20*time.Second)
	timer := time.AfterFunc(startupTimeout, browserCancel)
	err := chromedp.Run(browserCtx,
		network.Enable(),
		emulation.SetDeviceMetricsOverride(device.Width, device.Height, device.DeviceScaleFactor, device.Mobile),
		emulation.SetTouchEmulationEnabled(device.Touch),
		emulation.SetUserAgentOverride(device.UserAgent),
	)
	timer.Stop()
	if err != nil {
		session.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &SessionLaunchError{Err: fmt.Errorf("device %s: %w", device.Name, err)}
	}

	m.logger.Debug().
		Str("device", device.Name).
		Int64("width", device.Width).
		Int64("height", device.Height).
		Bool("mobile", device.Mobile).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session launched")

	return session, nil
}
