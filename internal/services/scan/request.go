package scan

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/trackscope/internal/models"
)

// Request is one scan job's input
type Request struct {
	URL    string `json:"url" validate:"required,url,max=2048"`
	Device string `json:"device,omitempty" validate:"omitempty,max=64"`
}

// ErrInvalidRequest wraps every request validation failure
var ErrInvalidRequest = errors.New("invalid scan request")

var validate = validator.New()

// Normalize adds an https scheme to bare hosts, trims whitespace and validates.
// An unknown device name is rejected with models.ErrUnknownDevice.
func (r Request) Normalize() (Request, error) {
	r.URL = strings.TrimSpace(r.URL)
	r.Device = strings.TrimSpace(r.Device)
	if r.URL != "" && !strings.Contains(r.URL, "://") {
		r.URL = "https://" + r.URL
	}

	if err := validate.Struct(r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return r, fmt.Errorf("%w: url must be an http(s) address", ErrInvalidRequest)
	}
	if r.Device != "" {
		if _, err := models.LookupDevice(r.Device); err != nil {
			return r, err
		}
	}
	return r, nil
}
