package models

import "errors"

// Non-fatal categories. Job-fatal launch and navigation errors are typed in the browser package.
var (
	ErrUnknownDevice    = errors.New("unknown device profile")
	ErrBlocked          = errors.New("access denied by target site")
	ErrConsentDetection = errors.New("consent detection failed")
	ErrConsentClick     = errors.New("consent click strategies exhausted")
	ErrCapture          = errors.New("capture read failed")
	ErrAnalysisModel    = errors.New("analysis model call failed")
)
