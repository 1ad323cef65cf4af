package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/trackscope/internal/models"
)

// ButtonMatch selects an element with the button role by accessible name
type ButtonMatch struct {
	Name  string
	Exact bool // false matches case-insensitively anywhere in the name
}

// FrameInfo describes a frame of the current page
type FrameInfo struct {
	ID   string
	URL  string
	Main bool
}

// Page is the set of live-page operations used by the detectors and the click strategist
type Page interface {
	Title(ctx context.Context) (string, error)
	// BodyText returns at most maxChars of the visible body text
	BodyText(ctx context.Context, maxChars int) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	OuterHTML(ctx context.Context) (string, error)
	// Evaluate runs a JavaScript expression in the main frame and decodes its result into res
	Evaluate(ctx context.Context, expression string, res interface{}) error

	ClickSelector(ctx context.Context, selector string, timeout time.Duration) error
	// ClickText clicks the first element matching baseSelector whose text contains text, ignoring case
	ClickText(ctx context.Context, baseSelector, text string, timeout time.Duration) error
	// ClickButton clicks a button-role element in the frame, "" for the main frame
	ClickButton(ctx context.Context, frameID string, match ButtonMatch, timeout time.Duration) error
	Frames(ctx context.Context) ([]FrameInfo, error)
}

// CaptureSource yields checkpoint snapshots of browser state
type CaptureSource interface {
	Cookies(ctx context.Context) ([]models.TrackedCookie, error)
	Storage(ctx context.Context, scope models.StorageScope) ([]models.StorageItem, error)
	ScriptSources(ctx context.Context) ([]string, error)
}

// BrowserSession is one isolated browser engine session owned by a single job
type BrowserSession interface {
	Page
	CaptureSource

	// Navigate loads url, failing with a navigation error on timeout or network failure
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Listen registers a handler for raw engine events for the session lifetime
	Listen(handler func(ev interface{}))
	// Wait pauses the session, returning early when ctx is done
	Wait(ctx context.Context, d time.Duration) error
	// Close releases the engine; safe to call more than once
	Close()
}

// BrowserLauncher creates sessions configured for a device profile
type BrowserLauncher interface {
	Launch(ctx context.Context, device models.DeviceProfile) (BrowserSession, error)
}
