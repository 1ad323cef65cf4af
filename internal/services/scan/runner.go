// Package scan drives one tracking scan from browser launch to the terminal stream event.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/common"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
	"github.com/ternarybob/trackscope/internal/services/analysis"
	"github.com/ternarybob/trackscope/internal/services/browser"
	"github.com/ternarybob/trackscope/internal/services/capture"
	"github.com/ternarybob/trackscope/internal/services/consent"
	"github.com/ternarybob/trackscope/internal/services/detection"
	"github.com/ternarybob/trackscope/internal/services/stream"
)

// Dependencies are the collaborators of a Runner. Details may be nil to skip
// consent details extraction.
type Dependencies struct {
	Launcher   interfaces.BrowserLauncher
	Access     *detection.AccessDetector
	Overlay    *detection.OverlayResolver
	Strategist *consent.Strategist
	Details    *consent.DetailsExtractor
	Pipeline   *analysis.Pipeline
	Catalog    interfaces.PatternCatalog
}

// Runner executes scan jobs. It holds no per-job state and is safe for concurrent use.
type Runner struct {
	deps   Dependencies
	config common.BrowserConfig
	logger arbor.ILogger
}

func NewRunner(deps Dependencies, config common.BrowserConfig, logger arbor.ILogger) *Runner {
	return &Runner{
		deps:   deps,
		config: config,
		logger: logger,
	}
}

// NavigatePayload is the payload of the navigate stage
type NavigatePayload struct {
	URL    string `json:"url"`
	Device string `json:"device"`
}

// ConsentClickPayload is the payload of the consent-click stage
type ConsentClickPayload struct {
	Clicked bool                   `json:"clicked"`
	Details *models.ConsentDetails `json:"details,omitempty"`
}

// CapturePayload is the payload of the capture stage
type CapturePayload struct {
	Snapshot         models.CaptureSnapshot `json:"snapshot"`
	CheckpointErrors int                    `json:"checkpoint_errors,omitempty"`
}

// Run executes the job and publishes every stage to pub. The stream always ends with
// exactly one terminal event unless the consumer went away first, in which case the
// browser session is still released.
func (r *Runner) Run(ctx context.Context, req Request, pub *stream.Publisher) error {
	defer pub.Close()

	logger := r.logger.WithCorrelationId(pub.JobID())
	req, err := req.Normalize()
	if err != nil {
		return r.fail(pub, err, userMessage(err))
	}

	deviceName := req.Device
	if deviceName == "" {
		deviceName = r.config.DefaultDevice
	}
	device, err := models.LookupDevice(deviceName)
	if err != nil {
		return r.fail(pub, err, userMessage(err))
	}

	jobCtx, cancel := context.WithTimeout(ctx, common.Duration(r.config.JobTimeout, 3*time.Minute))
	defer cancel()

	if err := pub.Emit(models.StageNavigate, fmt.Sprintf("Loading %s as %s", req.URL, device.Label),
		NavigatePayload{URL: req.URL, Device: device.Name}); err != nil {
		return err
	}

	session, err := r.deps.Launcher.Launch(jobCtx, device)
	if err != nil {
		logger.Error().Err(err).Str("device", device.Name).Msg("Browser launch failed")
		return r.fail(pub, err, userMessage(err))
	}
	defer session.Close()

	collector := capture.NewCollector(req.URL, logger)
	collector.Attach(session)

	if err := session.Navigate(jobCtx, req.URL, common.Duration(r.config.NavigationTimeout, 30*time.Second)); err != nil {
		logger.Warn().Err(err).Str("url", req.URL).Msg("Navigation failed")
		return r.fail(pub, err, userMessage(err))
	}
	r.settle(jobCtx, session)

	access := r.deps.Access.Check(jobCtx, session)
	message := "No access restrictions detected"
	if access.Denied {
		message = *access.Reason
		logger.Warn().Err(models.ErrBlocked).Str("reason", message).Msg("Page appears to block automated access")
	}
	if err := pub.Emit(models.StageAccessDenialCheck, message, access); err != nil {
		return err
	}

	checkpointErrors := 0
	if err := collector.Checkpoint(jobCtx, session); err != nil {
		checkpointErrors++
	}

	consentDetection, blocks := r.deps.Overlay.Detect(jobCtx, session)
	if err := pub.Emit(models.StageConsentDetect, detectMessage(consentDetection), consentDetection); err != nil {
		return err
	}

	var details *models.ConsentDetails
	if consentDetection.Found {
		if r.deps.Details != nil {
			if details, err = r.deps.Details.Extract(jobCtx, blocks); err != nil {
				logger.Warn().Err(err).Msg("Consent details unavailable")
			}
		}

		clicked := r.deps.Strategist.Click(jobCtx, session, consentDetection)
		message := "Consent overlay dismissed"
		if clicked {
			r.settle(jobCtx, session)
		} else {
			message = "Could not dismiss consent overlay, capturing without consent"
		}
		if err := pub.Emit(models.StageConsentClick, message, ConsentClickPayload{Clicked: clicked, Details: details}); err != nil {
			return err
		}
	}

	// Taken after the click so cookies set on consent are included
	if err := collector.Checkpoint(jobCtx, session); err != nil {
		checkpointErrors++
	}
	snapshot := collector.Snapshot()
	snapshot.Scripts = analysis.ClassifyScripts(snapshot.Scripts, r.deps.Catalog)
	if err := pub.Emit(models.StageCapture, captureMessage(snapshot),
		CapturePayload{Snapshot: snapshot, CheckpointErrors: checkpointErrors}); err != nil {
		return err
	}

	summary := analysis.BuildSummary(snapshot, r.deps.Catalog)
	if err := pub.Emit(models.StageSummarize,
		fmt.Sprintf("%d third-party domains", len(summary.ThirdPartyDomains)), summary); err != nil {
		return err
	}

	if err := pub.Emit(models.StageAnalyze, "Requesting privacy analysis", nil); err != nil {
		return err
	}
	result := r.deps.Pipeline.Analyze(jobCtx, summary, details)

	logger.Info().
		Str("url", req.URL).
		Int("cookies", summary.TotalCookies).
		Int("requests", summary.TotalRequests).
		Bool("success", result.Success).
		Msg("Scan complete")

	return pub.Complete(result)
}

func (r *Runner) fail(pub *stream.Publisher, cause error, message string) error {
	if err := pub.Fail(message); err != nil {
		return err
	}
	return cause
}

func (r *Runner) settle(ctx context.Context, session interfaces.BrowserSession) {
	wait := common.Duration(r.config.SettleWait, 2*time.Second)
	if err := session.Wait(ctx, wait); err != nil {
		r.logger.Debug().Err(err).Msg("Settle wait interrupted")
	}
}

// userMessage maps fatal errors to short messages without internal detail
func userMessage(err error) string {
	var navErr *browser.NavigationError
	var launchErr *browser.SessionLaunchError
	switch {
	case errors.As(err, &navErr) && navErr.Timeout():
		return fmt.Sprintf("Timed out loading %s", navErr.URL)
	case errors.As(err, &navErr):
		return fmt.Sprintf("Could not load %s", navErr.URL)
	case errors.As(err, &launchErr):
		return "Could not start the browser"
	case errors.Is(err, ErrInvalidRequest):
		return "Invalid scan request: url must be an http(s) address"
	case errors.Is(err, models.ErrUnknownDevice):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "Scan timed out"
	case errors.Is(err, context.Canceled):
		return "Scan cancelled"
	default:
		return err.Error()
	}
}

func detectMessage(d models.CookieConsentDetection) string {
	if d.Found {
		return fmt.Sprintf("Consent overlay found (%s confidence)", d.Confidence)
	}
	return "No consent overlay found"
}

func captureMessage(s models.CaptureSnapshot) string {
	return fmt.Sprintf("Captured %d cookies, %d scripts, %d requests", len(s.Cookies), len(s.Scripts), len(s.Requests))
}
