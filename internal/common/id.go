package common

import "github.com/google/uuid"

// NewJobID returns a unique identifier for a scan job
func NewJobID() string {
	return "scan_" + uuid.New().String()
}
