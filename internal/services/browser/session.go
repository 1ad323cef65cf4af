package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
)

const pollInterval = 250 * time.Millisecond

var errNoMatch = errors.New("no matching element")

// Session is a live Chrome tab owned by one job
type Session struct {
	ctx             context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	logger          arbor.ILogger
	device          models.DeviceProfile
	closeOnce       sync.Once
}

var _ interfaces.BrowserSession = (*Session)(nil)

// run executes actions on the tab, honouring both the caller's cancellation and deadline
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		opCtx, cancelDeadline = context.WithDeadline(opCtx, deadline)
		defer cancelDeadline()
	}

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the load event
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.run(navCtx, chromedp.Navigate(url)); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

func (s *Session) Listen(handler func(ev interface{})) {
	chromedp.ListenTarget(s.ctx, handler)
}

func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// Close terminates the tab and the browser process. Safe to call repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocatorCancel()
		s.logger.Debug().Str("device", s.device.Name).Msg("Browser session closed")
	})
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

func (s *Session) BodyText(ctx context.Context, maxChars int) (string, error) {
	var text string
	err := s.run(ctx, chromedp.Evaluate(bodyTextExpression(maxChars), &text))
	return text, err
}

// Screenshot captures the current viewport as PNG
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return s.run(ctx, chromedp.Evaluate(expression, res))
}

func (s *Session) ClickSelector(ctx context.Context, selector string, timeout time.Duration) error {
	clickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.run(clickCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *Session) ClickText(ctx context.Context, baseSelector, text string, timeout time.Duration) error {
	expression := clickTextExpression(baseSelector, text)
	return s.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		var clicked bool
		err := s.run(ctx, chromedp.Evaluate(expression, &clicked))
		return clicked, err
	})
}

func (s *Session) ClickButton(ctx context.Context, frameID string, match interfaces.ButtonMatch, timeout time.Duration) error {
	expression := clickButtonExpression(match.Name, match.Exact)
	return s.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		if frameID == "" {
			var clicked bool
			err := s.run(ctx, chromedp.Evaluate(expression, &clicked))
			return clicked, err
		}
		return s.evaluateInFrame(ctx, cdp.FrameID(frameID), expression)
	})
}

// evaluateInFrame runs a boolean expression in an isolated world of a child frame
func (s *Session) evaluateInFrame(ctx context.Context, frameID cdp.FrameID, expression string) (bool, error) {
	var clicked bool
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		contextID, err := page.CreateIsolatedWorld(frameID).WithWorldName("trackscope").Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to create isolated world: %w", err)
		}
		result, exception, err := cdpruntime.Evaluate(expression).
			WithContextID(contextID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return fmt.Errorf("frame script exception: %s", exception.Text)
		}
		if result == nil || len(result.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(result.Value), &clicked)
	}))
	return clicked, err
}

// poll retries attempt until it reports success or the timeout elapses
func (s *Session) poll(ctx context.Context, timeout time.Duration, attempt func(context.Context) (bool, error)) error {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		ok, err := attempt(pollCtx)
		if ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-pollCtx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w: %v", errNoMatch, lastErr)
			}
			return errNoMatch
		case <-time.After(pollInterval):
		}
	}
}

func (s *Session) Frames(ctx context.Context) ([]interfaces.FrameInfo, error) {
	var tree *page.FrameTree
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		tree, err = page.GetFrameTree().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return flattenFrames(tree, nil, true), nil
}

func flattenFrames(tree *page.FrameTree, out []interfaces.FrameInfo, main bool) []interfaces.FrameInfo {
	if tree == nil || tree.Frame == nil {
		return out
	}
	out = append(out, interfaces.FrameInfo{
		ID:   string(tree.Frame.ID),
		URL:  tree.Frame.URL,
		Main: main,
	})
	for _, child := range tree.ChildFrames {
		out = flattenFrames(child, out, false)
	}
	return out
}

// Cookies returns every cookie in the browser, including third-party ones
func (s *Session) Cookies(ctx context.Context) ([]models.TrackedCookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return convertCookies(cookies, time.Now()), nil
}

func convertCookies(cookies []*network.Cookie, capturedAt time.Time) []models.TrackedCookie {
	tracked := make([]models.TrackedCookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		cookie := models.TrackedCookie{
			Name:       c.Name,
			Value:      c.Value,
			Domain:     c.Domain,
			Path:       c.Path,
			HTTPOnly:   c.HTTPOnly,
			Secure:     c.Secure,
			SameSite:   c.SameSite.String(),
			CapturedAt: capturedAt,
		}
		if !c.Session && c.Expires > 0 {
			sec := int64(c.Expires)
			expires := time.Unix(sec, int64((c.Expires-float64(sec))*1e9)).UTC()
			cookie.Expires = &expires
		}
		tracked = append(tracked, cookie)
	}
	return tracked
}

func (s *Session) Storage(ctx context.Context, scope models.StorageScope) ([]models.StorageItem, error) {
	area := "localStorage"
	if scope == models.StorageScopeSession {
		area = "sessionStorage"
	}

	var entries []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := s.run(ctx, chromedp.Evaluate(storageExpression(area), &entries)); err != nil {
		return nil, err
	}

	now := time.Now()
	items := make([]models.StorageItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.StorageItem{Key: e.Key, Value: e.Value, Scope: scope, CapturedAt: now})
	}
	return items, nil
}

func (s *Session) ScriptSources(ctx context.Context) ([]string, error) {
	var sources []string
	err := s.run(ctx, chromedp.Evaluate(scriptSourcesScript, &sources))
	for i := range sources {
		sources[i] = strings.TrimSpace(sources[i])
	}
	return sources, err
}
