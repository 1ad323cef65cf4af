package detection

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/browser/browsertest"
)

type scriptedProvider struct {
	text     string
	err      error
	block    bool
	requests []*interfaces.ContentRequest
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) GenerateContent(ctx context.Context, request *interfaces.ContentRequest) (*interfaces.ContentResponse, error) {
	s.requests = append(s.requests, request)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &interfaces.ContentResponse{Text: s.text}, nil
}

func newResolver(provider interfaces.LLMProvider) *OverlayResolver {
	return NewOverlayResolver(provider, NewBlockExtractor(10, 15000), 50*time.Millisecond, arbor.NewLogger())
}

func TestOverlayResolverFound(t *testing.T) {
	provider := &scriptedProvider{text: "Here you go:\n" +
		`{"found": true, "selector": "button:contains('Accept All')", "buttonText": "Accept All", "confidence": "High", "reason": "OneTrust banner at bottom"}`}
	page := &browsertest.Page{EvalValue: "We use cookies to improve your experience.\nManage our partners and vendors"}

	detection, blocks := newResolver(provider).Detect(context.Background(), page)

	require.True(t, detection.Found)
	assert.Equal(t, models.ConfidenceHigh, detection.Confidence)
	require.NotNil(t, detection.Selector)
	assert.Equal(t, "button:contains('Accept All')", *detection.Selector)
	require.NotNil(t, detection.ButtonText)
	assert.Nil(t, detection.Type)
	assert.Len(t, blocks, 2)

	require.Len(t, provider.requests, 1)
	req := provider.requests[0]
	require.Len(t, req.Images, 1)
	assert.Equal(t, "image/png", req.Images[0].MIMEType)
	assert.Contains(t, req.Messages[0].Content, "We use cookies")
}

func TestOverlayResolverDegradesToNotFound(t *testing.T) {
	tests := []struct {
		name      string
		provider  *scriptedProvider
		page      *browsertest.Page
		reasonHas string
	}{
		{"prose only", &scriptedProvider{text: "There is no banner."}, &browsertest.Page{}, "not valid JSON"},
		{"model error", &scriptedProvider{err: errors.New("500")}, &browsertest.Page{}, "vision model call failed"},
		{"model timeout", &scriptedProvider{block: true}, &browsertest.Page{}, "vision model timed out"},
		{"screenshot failure", &scriptedProvider{text: `{"found": true}`}, &browsertest.Page{ScreenshotErr: errors.New("gone")}, "screenshot unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detection, _ := newResolver(tt.provider).Detect(context.Background(), tt.page)
			assert.False(t, detection.Found)
			assert.Equal(t, models.ConfidenceLow, detection.Confidence)
			assert.Contains(t, detection.Reason, tt.reasonHas)
		})
	}
}

func TestParseDetectionNormalisesFields(t *testing.T) {
	r := newResolver(&scriptedProvider{})

	d, err := r.ParseDetection(`{"found": true, "selector": "  ", "buttonText": "null", "confidence": "certain", "reason": "x", "type": "banner"}`)
	require.NoError(t, err)
	assert.Nil(t, d.Selector)
	assert.Nil(t, d.ButtonText)
	assert.Equal(t, models.ConfidenceLow, d.Confidence)
	require.NotNil(t, d.Type)
	assert.Equal(t, "banner", *d.Type)
}

func TestBlockExtractorFallsBackToHTML(t *testing.T) {
	html := `<html><body>
<div id="onetrust-consent-sdk"><p>We and our partners use cookies to personalise ads.</p><button>Accept All</button></div>
<div class="CookieNotice">short</div>
<script>var cookie = "should be ignored by the extractor";</script>
<table><tr><th>Vendor</th><th>Purpose</th></tr><tr><td>Criteo</td><td>Advertising</td></tr></table>
<table><tr><td>Opening hours</td><td>9-5</td></tr></table>
<section><h3>Our third-party partners</h3><ul><li>Google Advertising Products</li><li>LiveRamp</li></ul></section>
<section><h3>Menu</h3><ul><li>Home</li><li>About us and more</li></ul></section>
</body></html>`

	page := &browsertest.Page{EvalErr: errors.New("javascript disabled"), HTML: html}
	blocks, err := NewBlockExtractor(10, 15000).Extract(context.Background(), page)
	require.NoError(t, err)

	joined := ""
	for _, b := range blocks {
		joined += b + "\n"
		assert.GreaterOrEqual(t, len(b), 10)
	}
	assert.Contains(t, joined, "We and our partners use cookies")
	assert.Contains(t, joined, "Criteo")
	assert.Contains(t, joined, "LiveRamp")
	assert.NotContains(t, joined, "Opening hours")
	assert.NotContains(t, joined, "should be ignored")
	assert.NotContains(t, joined, "About us")
}

func TestBlockExtractorBoundsAndDedupes(t *testing.T) {
	e := NewBlockExtractor(10, 20)
	blocks, err := e.ExtractFromHTML(`<div class="cookie-a">This cookie text is definitely longer than twenty</div>
<div class="cookie-b">This cookie text is definitely longer than twenty</div>`)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Len(t, []rune(blocks[0]), 20)
}

func TestBlockExtractorKeepsTableRows(t *testing.T) {
	blocks, err := NewBlockExtractor(10, 15000).ExtractFromHTML(`<html><body>
<table>
  <tr><th>Vendor</th><th>Purpose</th></tr>
  <tr><td>Criteo</td><td>Advertising</td></tr>
  <tr><td>Google   Analytics</td><td>Measurement</td></tr>
</table>
<div><p>Partners we share data with</p><ul><li>LiveRamp</li><li>The Trade Desk</li></ul></div>
</body></html>`)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	table := strings.Split(blocks[0], "\n")
	require.GreaterOrEqual(t, len(table), 3)
	for _, row := range table {
		assert.True(t, strings.HasPrefix(row, "|"), "row %q", row)
	}
	assert.Contains(t, blocks[0], "Criteo")
	assert.Contains(t, blocks[0], "Google Analytics")

	list := strings.Split(blocks[1], "\n")
	require.Len(t, list, 2)
	assert.Contains(t, list[0], "LiveRamp")
	assert.Contains(t, list[1], "The Trade Desk")
}

func TestBlockExtractorFailsWithoutDOM(t *testing.T) {
	page := &browsertest.Page{EvalErr: errors.New("eval"), HTMLErr: errors.New("closed")}
	_, err := NewBlockExtractor(10, 15000).Extract(context.Background(), page)
	assert.Error(t, err)
}
