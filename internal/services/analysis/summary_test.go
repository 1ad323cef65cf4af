package analysis

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/patterns"
)

func TestBuildSummaryEmptySnapshot(t *testing.T) {
	summary := BuildSummary(models.CaptureSnapshot{PageURL: "https://example.com"}, nil)

	assert.Equal(t, "example.com", summary.PageDomain)
	assert.Zero(t, summary.TotalCookies)
	assert.Zero(t, summary.TotalScripts)
	assert.Zero(t, summary.TotalRequests)
	assert.NotNil(t, summary.ThirdPartyDomains)
	assert.Empty(t, summary.ThirdPartyDomains)
	assert.Empty(t, summary.DomainBreakdown)
	assert.Empty(t, summary.Trackers)
	assert.NotNil(t, summary.LocalStorage)
	assert.NotNil(t, summary.SessionStorage)
}

func TestBuildSummaryBreakdown(t *testing.T) {
	catalog, err := patterns.Default()
	require.NoError(t, err)

	now := time.Now()
	snapshot := models.CaptureSnapshot{
		PageURL: "https://www.example.com/news",
		Cookies: []models.TrackedCookie{
			{Name: "session", Domain: "www.example.com", Path: "/"},
			{Name: "_ga", Domain: ".example.com", Path: "/"},
			{Name: "IDE", Domain: ".doubleclick.net", Path: "/"},
		},
		Scripts: []models.TrackedScript{
			{URL: "https://cdn.example.com/app.js", Domain: "cdn.example.com", CapturedAt: now},
			{URL: "https://www.googletagmanager.com/gtm.js?id=GTM-1", Domain: "www.googletagmanager.com", CapturedAt: now},
		},
		Requests: []models.NetworkRequest{
			{URL: "https://tracker.io/pixel.gif", Domain: "tracker.io", ResourceType: "Image", IsThirdParty: true},
			{URL: "https://tracker.io/collect", Domain: "tracker.io", ResourceType: "XHR", IsThirdParty: true},
			{URL: "https://cdn.example.com/app.js", Domain: "cdn.example.com", ResourceType: "Script"},
			{URL: "https://stats.g.doubleclick.net/j/collect", Domain: "stats.g.doubleclick.net", ResourceType: "Image", IsThirdParty: true},
		},
		LocalStorage: []models.StorageItem{
			{Key: "b", Value: strings.Repeat("x", MaxPreviewChars+5)},
			{Key: "a", Value: "short"},
		},
	}

	summary := BuildSummary(snapshot, catalog)

	assert.Equal(t, 3, summary.TotalCookies)
	assert.Equal(t, 2, summary.TotalScripts)
	assert.Equal(t, 4, summary.TotalRequests)
	assert.Equal(t, []string{"doubleclick.net", "googletagmanager.com", "tracker.io"}, summary.ThirdPartyDomains)

	require.NotEmpty(t, summary.DomainBreakdown)
	first := summary.DomainBreakdown[0]
	assert.Equal(t, "example.com", first.Domain)
	assert.False(t, first.IsThirdParty)
	assert.Equal(t, []string{"_ga", "session"}, first.CookieNames)
	assert.Equal(t, 1, first.ScriptCount)
	assert.Equal(t, []string{"Script"}, first.ResourceTypes)

	var tracker models.DomainBreakdown
	for _, d := range summary.DomainBreakdown {
		if d.Domain == "tracker.io" {
			tracker = d
		}
	}
	assert.True(t, tracker.IsThirdParty)
	assert.Equal(t, 2, tracker.RequestCount)
	assert.Equal(t, []string{"Image", "XHR"}, tracker.ResourceTypes)

	require.Len(t, summary.LocalStorage, 2)
	assert.Equal(t, "a", summary.LocalStorage[0].Key)
	assert.False(t, summary.LocalStorage[0].Truncated)
	assert.True(t, summary.LocalStorage[1].Truncated)
	assert.Len(t, summary.LocalStorage[1].ValuePreview, MaxPreviewChars)

	require.Len(t, summary.Trackers, 1)
	assert.Contains(t, summary.Trackers[0].URL, "googletagmanager")
}

func TestBuildSummaryIsOrderIndependent(t *testing.T) {
	a := models.CaptureSnapshot{
		PageURL: "https://example.com",
		Requests: []models.NetworkRequest{
			{URL: "https://b.io/x", Domain: "b.io", ResourceType: "Image"},
			{URL: "https://a.io/x", Domain: "a.io", ResourceType: "Script"},
		},
	}
	b := models.CaptureSnapshot{
		PageURL:  a.PageURL,
		Requests: []models.NetworkRequest{a.Requests[1], a.Requests[0]},
	}
	assert.Equal(t, BuildSummary(a, nil), BuildSummary(b, nil))
}

func TestBuildSummaryBoundsStoragePreviews(t *testing.T) {
	var items []models.StorageItem
	for i := 0; i < MaxStoragePreviews+10; i++ {
		items = append(items, models.StorageItem{Key: string(rune('A' + i)), Value: "v"})
	}
	summary := BuildSummary(models.CaptureSnapshot{PageURL: "https://example.com", SessionStorage: items}, nil)
	assert.Len(t, summary.SessionStorage, MaxStoragePreviews)
	assert.Equal(t, MaxStoragePreviews+10, summary.SessionStorageCount)
}

func TestClassifyScripts(t *testing.T) {
	catalog, err := patterns.Default()
	require.NoError(t, err)

	scripts := []models.TrackedScript{
		{URL: "https://www.googletagmanager.com/gtm.js"},
		{URL: "https://example.com/app.js"},
	}
	classified := ClassifyScripts(scripts, catalog)

	require.Len(t, classified, 2)
	require.NotNil(t, classified[0].Description)
	assert.NotEmpty(t, *classified[0].Description)
	require.NotNil(t, classified[1].Description)
	assert.Empty(t, *classified[1].Description)
	assert.Nil(t, scripts[0].Description, "input is not modified")
}
