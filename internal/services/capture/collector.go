package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
)

// Collector records tracking artifacts for one job.
// HandleEvent runs on the engine's event goroutine; everything else runs on the job goroutine.
// Buffers are append-only except storage, which each checkpoint replaces per scope.
// Third-party flags follow the page the navigation lands on, not the URL that was requested.
type Collector struct {
	logger arbor.ILogger
	now    func() time.Time

	mu           sync.Mutex
	pageURL      string
	navRequest   network.RequestID
	requests     []models.NetworkRequest
	requestIndex map[network.RequestID]int
	scripts      []models.TrackedScript
	scriptSeen   map[string]struct{}
	cookies      []models.TrackedCookie
	cookieSeen   map[string]struct{}
	local        []models.StorageItem
	session      []models.StorageItem
}

// NewCollector creates a collector that classifies artifacts against pageURL until the navigation lands
func NewCollector(pageURL string, logger arbor.ILogger) *Collector {
	return &Collector{
		pageURL:      pageURL,
		logger:       logger,
		now:          time.Now,
		requestIndex: make(map[network.RequestID]int),
		scriptSeen:   make(map[string]struct{}),
		cookieSeen:   make(map[string]struct{}),
	}
}

// Attach subscribes the collector to the session's engine events
func (c *Collector) Attach(session interfaces.BrowserSession) {
	session.Listen(c.HandleEvent)
}

// HandleEvent records network activity. It must not block or call back into the engine.
func (c *Collector) HandleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		c.recordRequest(e)
	case *network.EventResponseReceived:
		c.recordResponse(e)
	}
}

func (c *Collector) recordRequest(e *network.EventRequestWillBeSent) {
	if e.Request == nil || !isWebURL(e.Request.URL) {
		return
	}

	now := c.now()
	req := models.NetworkRequest{
		URL:          e.Request.URL,
		Domain:       ExtractDomain(e.Request.URL),
		Method:       e.Request.Method,
		ResourceType: resourceType(e.Type),
		Timestamp:    now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	req.IsThirdParty = IsThirdParty(e.Request.URL, c.pageURL)
	if c.navRequest == "" && e.Type == network.ResourceTypeDocument {
		c.navRequest = e.RequestID
	}

	// A redirect reuses the request ID; the hop gets its own entry
	c.requestIndex[e.RequestID] = len(c.requests)
	c.requests = append(c.requests, req)

	if e.Type == network.ResourceTypeScript {
		c.addScriptLocked(e.Request.URL, now)
	}
}

func (c *Collector) recordResponse(e *network.EventResponseReceived) {
	if e.Response == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The navigation's final response carries the URL the redirects landed on
	if e.RequestID == c.navRequest && isWebURL(e.Response.URL) {
		c.rebaseLocked(e.Response.URL)
	}

	status := int(e.Response.Status)
	if idx, ok := c.requestIndex[e.RequestID]; ok {
		c.requests[idx].StatusCode = &status
		if c.requests[idx].ResourceType == "" {
			c.requests[idx].ResourceType = resourceType(e.Type)
		}
		return
	}

	// Response without a matching request event (served from cache, or listener attached late)
	if !isWebURL(e.Response.URL) {
		return
	}
	now := c.now()
	c.requestIndex[e.RequestID] = len(c.requests)
	c.requests = append(c.requests, models.NetworkRequest{
		URL:          e.Response.URL,
		Domain:       ExtractDomain(e.Response.URL),
		Method:       "GET",
		ResourceType: resourceType(e.Type),
		IsThirdParty: IsThirdParty(e.Response.URL, c.pageURL),
		Timestamp:    now,
		StatusCode:   &status,
	})
	if e.Type == network.ResourceTypeScript {
		c.addScriptLocked(e.Response.URL, now)
	}
}

// rebaseLocked switches classification to landedURL and reclassifies what was already recorded
func (c *Collector) rebaseLocked(landedURL string) {
	if landedURL == c.pageURL {
		return
	}
	from := c.pageURL
	c.pageURL = landedURL
	if GetBaseDomain(ExtractDomain(from)) == GetBaseDomain(ExtractDomain(landedURL)) {
		return
	}

	for i := range c.requests {
		c.requests[i].IsThirdParty = IsThirdParty(c.requests[i].URL, landedURL)
	}
	c.logger.Info().
		Str("requested", from).
		Str("landed", landedURL).
		Int("requests", len(c.requests)).
		Msg("Navigation redirected to another site, requests reclassified")
}

func (c *Collector) addScriptLocked(src string, at time.Time) {
	if _, seen := c.scriptSeen[src]; seen {
		return
	}
	c.scriptSeen[src] = struct{}{}
	c.scripts = append(c.scripts, models.TrackedScript{
		URL:        src,
		Domain:     ExtractDomain(src),
		CapturedAt: at,
	})
}

// Checkpoint snapshots cookies, both storage areas and script tags from the live page.
// Read failures are logged and leave the affected collection as it was; the first is returned.
func (c *Collector) Checkpoint(ctx context.Context, source interfaces.CaptureSource) error {
	var firstErr error
	fail := func(what string, err error) {
		c.logger.Warn().Err(err).Str("artifact", what).Msg("Capture checkpoint read failed")
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: %s: %v", models.ErrCapture, what, err)
		}
	}

	if cookies, err := source.Cookies(ctx); err != nil {
		fail("cookies", err)
	} else {
		c.mergeCookies(cookies)
	}

	for _, scope := range []models.StorageScope{models.StorageScopeLocal, models.StorageScopeSession} {
		items, err := source.Storage(ctx, scope)
		if err != nil {
			fail(string(scope)+"Storage", err)
			continue
		}
		c.replaceStorage(scope, items)
	}

	if sources, err := source.ScriptSources(ctx); err != nil {
		fail("scripts", err)
	} else {
		now := c.now()
		c.mu.Lock()
		for _, src := range sources {
			if isWebURL(src) {
				c.addScriptLocked(src, now)
			}
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.logger.Debug().
		Int("cookies", len(c.cookies)).
		Int("scripts", len(c.scripts)).
		Int("requests", len(c.requests)).
		Int("local_storage", len(c.local)).
		Int("session_storage", len(c.session)).
		Msg("Capture checkpoint complete")
	c.mu.Unlock()

	return firstErr
}

func (c *Collector) mergeCookies(cookies []models.TrackedCookie) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cookie := range cookies {
		key := cookie.Key()
		if _, seen := c.cookieSeen[key]; seen {
			continue
		}
		c.cookieSeen[key] = struct{}{}
		if cookie.CapturedAt.IsZero() {
			cookie.CapturedAt = now
		}
		c.cookies = append(c.cookies, cookie)
	}
}

func (c *Collector) replaceStorage(scope models.StorageScope, items []models.StorageItem) {
	now := c.now()
	copied := make([]models.StorageItem, 0, len(items))
	for _, item := range items {
		item.Scope = scope
		if item.CapturedAt.IsZero() {
			item.CapturedAt = now
		}
		copied = append(copied, item)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if scope == models.StorageScopeSession {
		c.session = copied
	} else {
		c.local = copied
	}
}

// Snapshot returns copies of every collection
func (c *Collector) Snapshot() models.CaptureSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return models.CaptureSnapshot{
		PageURL:        c.pageURL,
		Cookies:        append([]models.TrackedCookie{}, c.cookies...),
		Scripts:        append([]models.TrackedScript{}, c.scripts...),
		LocalStorage:   append([]models.StorageItem{}, c.local...),
		SessionStorage: append([]models.StorageItem{}, c.session...),
		Requests:       append([]models.NetworkRequest{}, c.requests...),
	}
}

func resourceType(t network.ResourceType) string {
	if t == "" {
		return "Other"
	}
	return string(t)
}

// isWebURL filters out data:, blob: and chrome-extension: URLs
func isWebURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
