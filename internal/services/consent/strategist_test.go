package consent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/browser/browsertest"
)

func newStrategist() *Strategist {
	timeouts := Timeouts{Selector: time.Millisecond, Button: time.Millisecond, Pattern: time.Millisecond, Frame: time.Millisecond}
	return NewStrategist(DefaultStrategies(timeouts), arbor.NewLogger())
}

func strPtr(s string) *string { return &s }

func indexOf(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}

func TestParseContainsSelector(t *testing.T) {
	tests := []struct {
		selector string
		base     string
		text     string
		ok       bool
	}{
		{":contains('Accept All')", "*", "Accept All", true},
		{`button:contains("Accept")`, "button", "Accept", true},
		{"#banner .btn:contains('OK')", "#banner .btn", "OK", true},
		{"#onetrust-accept-btn-handler", "", "", false},
		{"button:contains('')", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			base, text, ok := ParseContainsSelector(tt.selector)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.text, text)
		})
	}
}

func TestStrategistContainsTextBeforeCommonPatterns(t *testing.T) {
	page := &browsertest.Page{Texts: []string{"ACCEPT ALL COOKIES"}}
	detection := models.CookieConsentDetection{Found: true, Selector: strPtr(":contains('Accept All')")}

	ok := newStrategist().Click(context.Background(), page, detection)

	require.True(t, ok)
	calls := page.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "ClickText:*|Accept All", calls[0])
	assert.Len(t, calls, 1, "no fallback after the text match succeeded")
}

func TestStrategistFallbackOrder(t *testing.T) {
	page := &browsertest.Page{
		FrameList: []interfaces.FrameInfo{
			{ID: "main", URL: "https://news.example", Main: true},
			{ID: "ads", URL: "https://ads.example/slot"},
			{ID: "cmp", URL: "https://cdn.cookielaw.org/consent/ui"},
		},
		Buttons: map[string][]string{"cmp": {"Reject", "Accept"}},
	}
	detection := models.CookieConsentDetection{
		Found:      true,
		Selector:   strPtr("button:contains('Tout accepter')"),
		ButtonText: strPtr("Tout accepter"),
	}

	require.True(t, newStrategist().Click(context.Background(), page, detection))

	calls := page.Calls()
	textIdx := indexOf(calls, "ClickText:button|Tout accepter")
	exactIdx := indexOf(calls, "ClickButton:|exact|Tout accepter")
	partialIdx := indexOf(calls, "ClickButton:|partial|Tout accepter")
	patternIdx := indexOf(calls, "ClickButton:|partial|Accept All")
	frameIdx := indexOf(calls, "ClickButton:cmp|partial|Accept")

	assert.Equal(t, 0, textIdx)
	assert.Equal(t, -1, indexOf(calls, "ClickSelector:button:contains('Tout accepter')"), "contains form is never clicked natively")
	assert.Less(t, textIdx, exactIdx)
	assert.Less(t, exactIdx, partialIdx)
	assert.Less(t, partialIdx, patternIdx)
	assert.Less(t, patternIdx, frameIdx)
	assert.Equal(t, -1, indexOf(calls, "ClickButton:ads|partial|Accept All"), "non-consent frames are skipped")
	assert.Equal(t, -1, indexOf(calls, "ClickButton:main|partial|Accept All"), "main frame is not treated as an iframe")
	assert.Equal(t, "ClickButton:cmp|partial|Accept", calls[len(calls)-1])
}

func TestStrategistPlainSelector(t *testing.T) {
	page := &browsertest.Page{Selectors: map[string]bool{"#onetrust-accept-btn-handler": true}}
	detection := models.CookieConsentDetection{Found: true, Selector: strPtr("#onetrust-accept-btn-handler")}

	require.True(t, newStrategist().Click(context.Background(), page, detection))
	assert.Equal(t, []string{"ClickSelector:#onetrust-accept-btn-handler"}, page.Calls())
}

func TestStrategistCommonPatternsInOrder(t *testing.T) {
	page := &browsertest.Page{Buttons: map[string][]string{"": {"Got it!"}}}

	require.True(t, newStrategist().Click(context.Background(), page, models.CookieConsentDetection{Found: true}))

	var expected []string
	for _, phrase := range CommonAcceptPhrases[:8] {
		expected = append(expected, "ClickButton:|partial|"+phrase)
	}
	assert.Equal(t, expected, page.Calls())
}

func TestStrategistExhaustedReturnsFalse(t *testing.T) {
	page := &browsertest.Page{}

	assert.NotPanics(t, func() {
		ok := newStrategist().Click(context.Background(), page, models.CookieConsentDetection{Found: true})
		assert.False(t, ok)
	})
	assert.Contains(t, page.Calls(), "Frames")
}

func TestStrategistRecoversPanickingStrategy(t *testing.T) {
	page := &browsertest.Page{PanicOn: "ClickText", Buttons: map[string][]string{"": {"Accept All"}}}
	detection := models.CookieConsentDetection{Found: true, Selector: strPtr(":contains('Accept All')")}

	var ok bool
	require.NotPanics(t, func() {
		ok = newStrategist().Click(context.Background(), page, detection)
	})
	assert.True(t, ok, "common patterns still run after a panic")
}

func TestStrategistStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := &browsertest.Page{Buttons: map[string][]string{"": {"Accept All"}}}

	assert.False(t, newStrategist().Click(ctx, page, models.CookieConsentDetection{Found: true}))
	assert.Empty(t, page.Calls())
}

func TestTimeoutsFromConfig(t *testing.T) {
	timeouts := TimeoutsFromConfig(common.ConsentConfig{SelectorTimeout: "5s", ButtonTimeout: "bogus"})
	assert.Equal(t, 5*time.Second, timeouts.Selector)
	assert.Equal(t, 3*time.Second, timeouts.Button)
	assert.Equal(t, 2*time.Second, timeouts.Pattern)
	assert.Equal(t, 2*time.Second, timeouts.Frame)
}
