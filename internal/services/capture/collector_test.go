package capture

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/models"
)

type fakeSource struct {
	cookies    []models.TrackedCookie
	local      []models.StorageItem
	session    []models.StorageItem
	scripts    []string
	cookiesErr error
	storageErr error
}

func (f *fakeSource) Cookies(ctx context.Context) ([]models.TrackedCookie, error) {
	return f.cookies, f.cookiesErr
}

func (f *fakeSource) Storage(ctx context.Context, scope models.StorageScope) ([]models.StorageItem, error) {
	if f.storageErr != nil {
		return nil, f.storageErr
	}
	if scope == models.StorageScopeSession {
		return f.session, nil
	}
	return f.local, nil
}

func (f *fakeSource) ScriptSources(ctx context.Context) ([]string, error) {
	return f.scripts, nil
}

func requestEvent(id, url string, typ network.ResourceType) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Request:   &network.Request{URL: url, Method: "GET"},
		Type:      typ,
	}
}

func TestCollectorRecordsRequestsAndScripts(t *testing.T) {
	c := NewCollector("https://example.com", arbor.NewLogger())

	c.HandleEvent(requestEvent("1", "https://example.com/", network.ResourceTypeDocument))
	c.HandleEvent(requestEvent("2", "https://tracker.io/pixel.gif", network.ResourceTypeImage))
	c.HandleEvent(requestEvent("3", "https://cdn.example.com/app.js", network.ResourceTypeScript))
	c.HandleEvent(requestEvent("4", "data:image/png;base64,AAAA", network.ResourceTypeImage))
	c.HandleEvent(&network.EventResponseReceived{
		RequestID: "2",
		Type:      network.ResourceTypeImage,
		Response:  &network.Response{URL: "https://tracker.io/pixel.gif", Status: 204},
	})
	c.HandleEvent("unrelated event")

	snap := c.Snapshot()
	require.Len(t, snap.Requests, 3)

	tracker := snap.Requests[1]
	assert.Equal(t, "tracker.io", tracker.Domain)
	assert.True(t, tracker.IsThirdParty)
	require.NotNil(t, tracker.StatusCode)
	assert.Equal(t, 204, *tracker.StatusCode)
	assert.Equal(t, "Image", tracker.ResourceType)

	cdn := snap.Requests[2]
	assert.False(t, cdn.IsThirdParty)
	assert.Nil(t, cdn.StatusCode, "status stays absent until a response is observed")

	require.Len(t, snap.Scripts, 1)
	assert.Equal(t, "cdn.example.com", snap.Scripts[0].Domain)
	assert.Nil(t, snap.Scripts[0].Description)
}

func TestCollectorResponseWithoutRequest(t *testing.T) {
	c := NewCollector("https://example.com", arbor.NewLogger())
	c.HandleEvent(&network.EventResponseReceived{
		RequestID: "9",
		Type:      network.ResourceTypeScript,
		Response:  &network.Response{URL: "https://www.googletagmanager.com/gtm.js", Status: 200},
	})

	snap := c.Snapshot()
	require.Len(t, snap.Requests, 1)
	assert.True(t, snap.Requests[0].IsThirdParty)
	assert.Len(t, snap.Scripts, 1)
}

func TestCollectorFollowsRedirectedNavigation(t *testing.T) {
	c := NewCollector("https://example.com", arbor.NewLogger())

	c.HandleEvent(requestEvent("nav", "https://example.com/", network.ResourceTypeDocument))
	c.HandleEvent(requestEvent("nav", "https://www.example-news.co.uk/", network.ResourceTypeDocument))
	c.HandleEvent(requestEvent("1", "https://static.example-news.co.uk/app.js", network.ResourceTypeScript))
	c.HandleEvent(&network.EventResponseReceived{
		RequestID: "nav",
		Type:      network.ResourceTypeDocument,
		Response:  &network.Response{URL: "https://www.example-news.co.uk/", Status: 200},
	})
	c.HandleEvent(requestEvent("2", "https://cdn.example-news.co.uk/img.png", network.ResourceTypeImage))
	c.HandleEvent(requestEvent("3", "https://tracker.io/pixel.gif", network.ResourceTypeImage))
	// A frame document later in the page does not move the page origin
	c.HandleEvent(requestEvent("frame", "https://ads.example.org/frame.html", network.ResourceTypeDocument))
	c.HandleEvent(&network.EventResponseReceived{
		RequestID: "frame",
		Type:      network.ResourceTypeDocument,
		Response:  &network.Response{URL: "https://ads.example.org/frame.html", Status: 200},
	})

	snap := c.Snapshot()
	assert.Equal(t, "https://www.example-news.co.uk/", snap.PageURL)

	thirdParty := make(map[string]bool)
	for _, req := range snap.Requests {
		thirdParty[req.URL] = req.IsThirdParty
	}
	assert.True(t, thirdParty["https://example.com/"])
	assert.False(t, thirdParty["https://www.example-news.co.uk/"])
	assert.False(t, thirdParty["https://static.example-news.co.uk/app.js"])
	assert.False(t, thirdParty["https://cdn.example-news.co.uk/img.png"])
	assert.True(t, thirdParty["https://tracker.io/pixel.gif"])
	assert.True(t, thirdParty["https://ads.example.org/frame.html"])
}

func TestCollectorSameSiteLandingKeepsFlags(t *testing.T) {
	c := NewCollector("https://example.com", arbor.NewLogger())
	c.HandleEvent(requestEvent("nav", "https://example.com/", network.ResourceTypeDocument))
	c.HandleEvent(requestEvent("1", "https://tracker.io/pixel.gif", network.ResourceTypeImage))
	c.HandleEvent(&network.EventResponseReceived{
		RequestID: "nav",
		Type:      network.ResourceTypeDocument,
		Response:  &network.Response{URL: "https://www.example.com/home", Status: 200},
	})

	snap := c.Snapshot()
	assert.Equal(t, "https://www.example.com/home", snap.PageURL)
	require.Len(t, snap.Requests, 2)
	assert.False(t, snap.Requests[0].IsThirdParty)
	assert.True(t, snap.Requests[1].IsThirdParty)
}

func TestCollectorCheckpointMergesCookiesAndReplacesStorage(t *testing.T) {
	c := NewCollector("https://example.com", arbor.NewLogger())
	first := models.TrackedCookie{Name: "_ga", Value: "1", Domain: ".example.com", Path: "/"}

	src := &fakeSource{
		cookies: []models.TrackedCookie{first},
		local:   []models.StorageItem{{Key: "theme", Value: "dark"}},
		scripts: []string{"https://cdn.example.com/app.js", "inline", "https://cdn.example.com/app.js"},
	}
	require.NoError(t, c.Checkpoint(context.Background(), src))

	changed := first
	changed.Value = "2"
	src.cookies = []models.TrackedCookie{changed, {Name: "IDE", Domain: ".doubleclick.net", Path: "/"}}
	src.local = []models.StorageItem{{Key: "consent", Value: "yes"}}
	src.session = []models.StorageItem{{Key: "tab", Value: "1"}}
	require.NoError(t, c.Checkpoint(context.Background(), src))

	snap := c.Snapshot()
	require.Len(t, snap.Cookies, 2)
	assert.Equal(t, "1", snap.Cookies[0].Value, "recorded cookies are immutable")
	assert.False(t, snap.Cookies[0].CapturedAt.IsZero())
	assert.Equal(t, "IDE", snap.Cookies[1].Name)

	require.Len(t, snap.LocalStorage, 1)
	assert.Equal(t, "consent", snap.LocalStorage[0].Key)
	assert.Equal(t, models.StorageScopeLocal, snap.LocalStorage[0].Scope)
	require.Len(t, snap.SessionStorage, 1)
	assert.Equal(t, models.StorageScopeSession, snap.SessionStorage[0].Scope)

	assert.Len(t, snap.Scripts, 1)
}

func TestCollectorCheckpointFailureKeepsCollections(t *testing.T) {
	c := NewCollector("https://example.com", arbor.NewLogger())
	require.NoError(t, c.Checkpoint(context.Background(), &fakeSource{
		local: []models.StorageItem{{Key: "k", Value: "v"}},
	}))

	err := c.Checkpoint(context.Background(), &fakeSource{
		cookiesErr: errors.New("target closed"),
		storageErr: errors.New("target closed"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCapture))

	snap := c.Snapshot()
	assert.Empty(t, snap.Cookies)
	assert.Len(t, snap.LocalStorage, 1)
}

func TestCollectorConcurrentEvents(t *testing.T) {
	c := NewCollector("https://example.com", arbor.NewLogger())
	c.now = func() time.Time { return time.Unix(0, 0) }

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.HandleEvent(requestEvent(strconv.Itoa(i), "https://tracker.io/p", network.ResourceTypeXHR))
		}(i)
	}
	go func() { _ = c.Snapshot() }()
	wg.Wait()

	assert.Len(t, c.Snapshot().Requests, 50)
}
