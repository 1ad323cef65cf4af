package models

import "time"

// Stage identifies a step of the scan job as seen by stream consumers
type Stage string

const (
	StageNavigate          Stage = "navigate"
	StageAccessDenialCheck Stage = "access-denial-check"
	StageConsentDetect     Stage = "consent-detect"
	StageConsentClick      Stage = "consent-click"
	StageCapture           Stage = "capture"
	StageSummarize         Stage = "summarize"
	StageAnalyze           Stage = "analyze"
	StageComplete          Stage = "complete"
	StageError             Stage = "error"
)

// stageOrder is the canonical sequence; both terminals share the last rank
var stageOrder = map[Stage]int{
	StageNavigate:          1,
	StageAccessDenialCheck: 2,
	StageConsentDetect:     3,
	StageConsentClick:      4,
	StageCapture:           5,
	StageSummarize:         6,
	StageAnalyze:           7,
	StageComplete:          8,
	StageError:             8,
}

// Rank returns the position of the stage in the canonical sequence, 0 if unknown
func (s Stage) Rank() int {
	return stageOrder[s]
}

// IsTerminal reports whether the stage ends a job stream
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageError
}

// StreamEvent is one entry of a job's ordered event stream
type StreamEvent struct {
	JobID     string      `json:"job_id"`
	Stage     Stage       `json:"stage"`
	Message   string      `json:"message,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorPayload is the payload of the error terminal event
type ErrorPayload struct {
	Error string `json:"error"`
}
