// Package browsertest provides in-memory browser sessions for tests that must not start Chrome.
package browsertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
)

// ErrNotFound is returned by click methods when nothing matches
var ErrNotFound = errors.New("element not found")

// Page is a scriptable interfaces.Page. Zero value is an empty, accessible page.
type Page struct {
	mu sync.Mutex

	TitleText     string
	TitleErr      error
	Body          string
	BodyErr       error
	PNG           []byte
	ScreenshotErr error
	HTML          string
	HTMLErr       error
	EvalValue     interface{}
	EvalErr       error
	FrameList     []interfaces.FrameInfo
	FramesErr     error

	// Selectors that ClickSelector accepts
	Selectors map[string]bool
	// Element texts that ClickText can match, case-insensitively
	Texts []string
	// Button labels per frame ID, "" for the main frame
	Buttons map[string][]string
	// PanicOn makes the named method panic, e.g. "ClickButton"
	PanicOn string

	calls []string
}

var _ interfaces.Page = (*Page)(nil)

func (p *Page) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	if p.PanicOn != "" && strings.HasPrefix(call, p.PanicOn) {
		panic("browsertest: " + call)
	}
}

// Calls returns the recorded operations in order, e.g. "ClickText:button|Accept All"
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Page) Title(ctx context.Context) (string, error) {
	p.record("Title")
	return p.TitleText, p.TitleErr
}

func (p *Page) BodyText(ctx context.Context, maxChars int) (string, error) {
	p.record("BodyText")
	body := p.Body
	if maxChars > 0 && len(body) > maxChars {
		body = body[:maxChars]
	}
	return body, p.BodyErr
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.record("Screenshot")
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	if p.PNG == nil {
		return []byte{0x89, 'P', 'N', 'G'}, nil
	}
	return p.PNG, nil
}

func (p *Page) OuterHTML(ctx context.Context) (string, error) {
	p.record("OuterHTML")
	return p.HTML, p.HTMLErr
}

func (p *Page) Evaluate(ctx context.Context, expression string, res interface{}) error {
	p.record("Evaluate")
	if p.EvalErr != nil {
		return p.EvalErr
	}
	data, err := json.Marshal(p.EvalValue)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, res)
}

func (p *Page) ClickSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p.record("ClickSelector:" + selector)
	if p.Selectors[selector] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, selector)
}

func (p *Page) ClickText(ctx context.Context, baseSelector, text string, timeout time.Duration) error {
	p.record("ClickText:" + baseSelector + "|" + text)
	needle := strings.ToLower(text)
	for _, t := range p.Texts {
		if strings.Contains(strings.ToLower(t), needle) {
			return nil
		}
	}
	return fmt.Errorf("%w: text %q", ErrNotFound, text)
}

func (p *Page) ClickButton(ctx context.Context, frameID string, match interfaces.ButtonMatch, timeout time.Duration) error {
	mode := "partial"
	if match.Exact {
		mode = "exact"
	}
	p.record("ClickButton:" + frameID + "|" + mode + "|" + match.Name)
	for _, label := range p.Buttons[frameID] {
		if match.Exact && label == match.Name {
			return nil
		}
		if !match.Exact && strings.Contains(strings.ToLower(label), strings.ToLower(match.Name)) {
			return nil
		}
	}
	return fmt.Errorf("%w: button %q", ErrNotFound, match.Name)
}

func (p *Page) Frames(ctx context.Context) ([]interfaces.FrameInfo, error) {
	p.record("Frames")
	return p.FrameList, p.FramesErr
}

// Session is a scriptable interfaces.BrowserSession
type Session struct {
	*Page

	NavigateErr error
	// Events are delivered to listeners during Navigate
	Events []interface{}
	// ConsentCookies are added to BaseCookies once any click succeeded
	BaseCookies    []models.TrackedCookie
	ConsentCookies []models.TrackedCookie
	Local          []models.StorageItem
	SessionItems   []models.StorageItem
	ScriptList     []string
	CookiesErr     error

	mu        sync.Mutex
	listeners []func(ev interface{})
	closes    int
	clicked   bool
}

var _ interfaces.BrowserSession = (*Session)(nil)

// NewSession wraps page, creating an empty one when nil
func NewSession(page *Page) *Session {
	if page == nil {
		page = &Page{}
	}
	return &Session{Page: page}
}

func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.record("Navigate:" + url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.mu.Lock()
	listeners := append([]func(ev interface{}){}, s.listeners...)
	s.mu.Unlock()
	for _, ev := range s.Events {
		for _, l := range listeners {
			l(ev)
		}
	}
	return nil
}

func (s *Session) Listen(handler func(ev interface{})) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, handler)
}

func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
}

// Closes returns how many times Close was called
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// ClickButton records a successful click so later cookie reads include ConsentCookies
func (s *Session) ClickButton(ctx context.Context, frameID string, match interfaces.ButtonMatch, timeout time.Duration) error {
	err := s.Page.ClickButton(ctx, frameID, match, timeout)
	if err == nil {
		s.mu.Lock()
		s.clicked = true
		s.mu.Unlock()
	}
	return err
}

func (s *Session) ClickSelector(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.Page.ClickSelector(ctx, selector, timeout)
	if err == nil {
		s.mu.Lock()
		s.clicked = true
		s.mu.Unlock()
	}
	return err
}

func (s *Session) ClickText(ctx context.Context, baseSelector, text string, timeout time.Duration) error {
	err := s.Page.ClickText(ctx, baseSelector, text, timeout)
	if err == nil {
		s.mu.Lock()
		s.clicked = true
		s.mu.Unlock()
	}
	return err
}

func (s *Session) Cookies(ctx context.Context) ([]models.TrackedCookie, error) {
	if s.CookiesErr != nil {
		return nil, s.CookiesErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cookies := append([]models.TrackedCookie{}, s.BaseCookies...)
	if s.clicked {
		cookies = append(cookies, s.ConsentCookies...)
	}
	return cookies, nil
}

func (s *Session) Storage(ctx context.Context, scope models.StorageScope) ([]models.StorageItem, error) {
	if scope == models.StorageScopeSession {
		return s.SessionItems, nil
	}
	return s.Local, nil
}

func (s *Session) ScriptSources(ctx context.Context) ([]string, error) {
	return s.ScriptList, nil
}

// Launcher hands out a prepared session
type Launcher struct {
	Session *Session
	Err     error

	mu       sync.Mutex
	launches []models.DeviceProfile
}

var _ interfaces.BrowserLauncher = (*Launcher)(nil)

func (l *Launcher) Launch(ctx context.Context, device models.DeviceProfile) (interfaces.BrowserSession, error) {
	l.mu.Lock()
	l.launches = append(l.launches, device)
	l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Session, nil
}

// Devices returns the profiles passed to Launch
func (l *Launcher) Devices() []models.DeviceProfile {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.DeviceProfile(nil), l.launches...)
}
