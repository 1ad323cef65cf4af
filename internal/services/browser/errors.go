package browser

import (
	"context"
	"errors"
	"fmt"
)

// NavigationError reports a target that could not be loaded. It is fatal to the job.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("navigation to %s timed out", e.URL)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the navigation ran out of time
func (e *NavigationError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// SessionLaunchError reports a browser engine that could not start. It is fatal to the job.
type SessionLaunchError struct {
	Err error
}

func (e *SessionLaunchError) Error() string {
	return fmt.Sprintf("failed to launch browser: %v", e.Err)
}

func (e *SessionLaunchError) Unwrap() error {
	return e.Err
}
