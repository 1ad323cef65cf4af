package models

import "time"

// TrackedCookie is a cookie observed in the browser session.
// Identity is (Name, Domain, Path); a recorded cookie is never updated.
type TrackedCookie struct {
	Name       string     `json:"name"`
	Value      string     `json:"value"`
	Domain     string     `json:"domain"`
	Path       string     `json:"path"`
	Expires    *time.Time `json:"expires,omitempty"` // nil for session-only cookies
	HTTPOnly   bool       `json:"http_only"`
	Secure     bool       `json:"secure"`
	SameSite   string     `json:"same_site,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Key returns the identity of the cookie
func (c TrackedCookie) Key() string {
	return c.Name + "|" + c.Domain + "|" + c.Path
}

// IsSession reports whether the cookie expires with the browser session
func (c TrackedCookie) IsSession() bool {
	return c.Expires == nil
}

// TrackedScript is a script source loaded by the page.
// Description stays nil until classification runs; an empty string means
// classification ran and found nothing.
type TrackedScript struct {
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	CapturedAt  time.Time `json:"captured_at"`
	Description *string   `json:"description,omitempty"`
}

// StorageScope distinguishes the two web storage areas
type StorageScope string

const (
	StorageScopeLocal   StorageScope = "local"
	StorageScopeSession StorageScope = "session"
)

// StorageItem is one key of localStorage or sessionStorage
type StorageItem struct {
	Key        string       `json:"key"`
	Value      string       `json:"value"`
	Scope      StorageScope `json:"scope"`
	CapturedAt time.Time    `json:"captured_at"`
}

// NetworkRequest is a request observed on the wire
type NetworkRequest struct {
	URL          string    `json:"url"`
	Domain       string    `json:"domain"`
	Method       string    `json:"method"`
	ResourceType string    `json:"resource_type"`
	IsThirdParty bool      `json:"is_third_party"`
	Timestamp    time.Time `json:"timestamp"`
	StatusCode   *int      `json:"status_code,omitempty"` // nil until a response is observed
}

// CaptureSnapshot is a point-in-time copy of every capture collection for one job
type CaptureSnapshot struct {
	PageURL        string           `json:"page_url"`
	Cookies        []TrackedCookie  `json:"cookies"`
	Scripts        []TrackedScript  `json:"scripts"`
	LocalStorage   []StorageItem    `json:"local_storage"`
	SessionStorage []StorageItem    `json:"session_storage"`
	Requests       []NetworkRequest `json:"requests"`
}
