package consent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
)

// errNotApplicable marks a strategy that had nothing to work with, e.g. no selector hint
var errNotApplicable = errors.New("strategy not applicable")

// CommonAcceptPhrases are tried as button names on the main frame, in order
var CommonAcceptPhrases = []string{
	"Accept All",
	"Accept Cookies",
	"Allow All",
	"I Accept",
	"I agree",
	"Agree",
	"OK",
	"Got it",
	"Continue",
	"Consent",
	"Yes",
	"Allow",
}

// FrameKeywords classify a child frame as a consent frame by URL
var FrameKeywords = []string{
	"consent",
	"cookie",
	"privacy",
	"gdpr",
	"onetrust",
	"cookiebot",
	"trustarc",
	"quantcast",
}

// FrameAcceptPhrases are tried inside each consent frame
var FrameAcceptPhrases = []string{
	"Accept All",
	"Accept",
	"Allow All",
	"I Accept",
	"Agree",
	"OK",
}

// containsSelector matches the jQuery-style `base:contains('Text')` form
var containsSelector = regexp.MustCompile(`^(.*?):contains\(\s*(['"])(.*?)['"]\s*\)\s*$`)

// Strategy is one click attempt. A nil error means the overlay control was clicked.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, page interfaces.Page, detection models.CookieConsentDetection) error
}

// Timeouts bound each kind of click attempt
type Timeouts struct {
	Selector time.Duration
	Button   time.Duration
	Pattern  time.Duration
	Frame    time.Duration
}

// TimeoutsFromConfig parses the consent section, keeping defaults for invalid values
func TimeoutsFromConfig(config common.ConsentConfig) Timeouts {
	return Timeouts{
		Selector: common.Duration(config.SelectorTimeout, 3*time.Second),
		Button:   common.Duration(config.ButtonTimeout, 3*time.Second),
		Pattern:  common.Duration(config.PatternTimeout, 2*time.Second),
		Frame:    common.Duration(config.FrameTimeout, 2*time.Second),
	}
}

// DefaultStrategies returns the fixed fallback order
func DefaultStrategies(timeouts Timeouts) []Strategy {
	return []Strategy{
		&containsTextStrategy{timeout: timeouts.Selector},
		&selectorStrategy{timeout: timeouts.Selector},
		&buttonNameStrategy{exact: true, timeout: timeouts.Button},
		&buttonNameStrategy{exact: false, timeout: timeouts.Button},
		&phraseStrategy{phrases: CommonAcceptPhrases, timeout: timeouts.Pattern},
		&frameStrategy{keywords: FrameKeywords, phrases: FrameAcceptPhrases, timeout: timeouts.Frame},
	}
}

// ParseContainsSelector splits `base:contains('Text')` into base and text.
// An empty base becomes "*".
func ParseContainsSelector(selector string) (base, text string, ok bool) {
	m := containsSelector.FindStringSubmatch(strings.TrimSpace(selector))
	if m == nil || strings.TrimSpace(m[3]) == "" {
		return "", "", false
	}
	base = strings.TrimSpace(m[1])
	if base == "" {
		base = "*"
	}
	return base, m[3], true
}

type containsTextStrategy struct {
	timeout time.Duration
}

func (s *containsTextStrategy) Name() string { return "contains-text" }

func (s *containsTextStrategy) Attempt(ctx context.Context, page interfaces.Page, detection models.CookieConsentDetection) error {
	if detection.Selector == nil {
		return errNotApplicable
	}
	base, text, ok := ParseContainsSelector(*detection.Selector)
	if !ok {
		return errNotApplicable
	}
	return page.ClickText(ctx, base, text, s.timeout)
}

type selectorStrategy struct {
	timeout time.Duration
}

func (s *selectorStrategy) Name() string { return "selector" }

func (s *selectorStrategy) Attempt(ctx context.Context, page interfaces.Page, detection models.CookieConsentDetection) error {
	if detection.Selector == nil {
		return errNotApplicable
	}
	if _, _, ok := ParseContainsSelector(*detection.Selector); ok {
		return errNotApplicable
	}
	return page.ClickSelector(ctx, *detection.Selector, s.timeout)
}

type buttonNameStrategy struct {
	exact   bool
	timeout time.Duration
}

func (s *buttonNameStrategy) Name() string {
	if s.exact {
		return "button-exact"
	}
	return "button-partial"
}

func (s *buttonNameStrategy) Attempt(ctx context.Context, page interfaces.Page, detection models.CookieConsentDetection) error {
	if detection.ButtonText == nil {
		return errNotApplicable
	}
	return page.ClickButton(ctx, "", interfaces.ButtonMatch{Name: *detection.ButtonText, Exact: s.exact}, s.timeout)
}

type phraseStrategy struct {
	phrases []string
	timeout time.Duration
}

func (s *phraseStrategy) Name() string { return "common-patterns" }

func (s *phraseStrategy) Attempt(ctx context.Context, page interfaces.Page, _ models.CookieConsentDetection) error {
	return clickFirstPhrase(ctx, page, "", s.phrases, s.timeout)
}

type frameStrategy struct {
	keywords []string
	phrases  []string
	timeout  time.Duration
}

func (s *frameStrategy) Name() string { return "consent-iframe" }

func (s *frameStrategy) Attempt(ctx context.Context, page interfaces.Page, _ models.CookieConsentDetection) error {
	frames, err := page.Frames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list frames: %w", err)
	}

	matched := 0
	for _, frame := range frames {
		if frame.Main || !s.isConsentFrame(frame.URL) {
			continue
		}
		matched++
		if err := clickFirstPhrase(ctx, page, frame.ID, s.phrases, s.timeout); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if matched == 0 {
		return errNotApplicable
	}
	return fmt.Errorf("no accept button in %d consent frame(s)", matched)
}

func (s *frameStrategy) isConsentFrame(url string) bool {
	lower := strings.ToLower(url)
	for _, keyword := range s.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func clickFirstPhrase(ctx context.Context, page interfaces.Page, frameID string, phrases []string, timeout time.Duration) error {
	for _, phrase := range phrases {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := page.ClickButton(ctx, frameID, interfaces.ButtonMatch{Name: phrase}, timeout); err == nil {
			return nil
		}
	}
	return fmt.Errorf("none of %d phrases matched a button", len(phrases))
}
