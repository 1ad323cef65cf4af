package detection

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
)

// Title patterns are checked before body patterns; first match wins
var accessDeniedTitlePatterns = []string{
	"access denied",
	"403 forbidden",
	"forbidden",
	"blocked",
	"captcha",
	"just a moment",
	"attention required",
	"security check",
	"are you a robot",
	"bot detection",
	"please verify",
	"ddos protection",
	"request rejected",
	"pardon our interruption",
}

var accessDeniedBodyPatterns = []string{
	"verify you are human",
	"verify that you are human",
	"are you a robot",
	"rate limit exceeded",
	"too many requests",
	"unusual traffic",
	"access to this page has been denied",
	"checking your browser",
	"enable javascript and cookies to continue",
	"press & hold",
	"complete the security check",
	"bot detection",
	"your request has been blocked",
}

// AccessDetector inspects the page title and body text for bot-block signals
type AccessDetector struct {
	bodySampleChars int
	logger          arbor.ILogger
}

// NewAccessDetector creates a detector that reads at most bodySampleChars of body text
func NewAccessDetector(bodySampleChars int, logger arbor.ILogger) *AccessDetector {
	return &AccessDetector{
		bodySampleChars: bodySampleChars,
		logger:          logger,
	}
}

// Check never fails: an unreadable page is reported as not denied
func (d *AccessDetector) Check(ctx context.Context, page interfaces.Page) (result models.AccessDenialResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn().Str("panic", fmt.Sprintf("%v", r)).Msg("Access denial check panicked, treating page as accessible")
			result = models.AccessDenialResult{}
		}
	}()

	title, err := page.Title(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Access denial check could not read title, treating page as accessible")
		return models.AccessDenialResult{}
	}

	if res, matched := matchTitle(title); matched {
		return res
	}

	body, err := page.BodyText(ctx, d.bodySampleChars)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Access denial check could not read body, treating page as accessible")
		return models.AccessDenialResult{}
	}

	return EvaluateAccess(title, body, d.bodySampleChars)
}

// EvaluateAccess applies the title then body pattern lists
func EvaluateAccess(title, body string, bodySampleChars int) models.AccessDenialResult {
	if res, matched := matchTitle(title); matched {
		return res
	}

	sample := body
	if bodySampleChars > 0 && len(sample) > bodySampleChars {
		sample = sample[:bodySampleChars]
	}
	sample = strings.ToLower(sample)

	for _, phrase := range accessDeniedBodyPatterns {
		if strings.Contains(sample, phrase) {
			reason := fmt.Sprintf("Page content indicates bot detection: %q", phrase)
			return models.AccessDenialResult{Denied: true, Reason: &reason}
		}
	}
	return models.AccessDenialResult{}
}

func matchTitle(title string) (models.AccessDenialResult, bool) {
	lower := strings.ToLower(title)
	for _, pattern := range accessDeniedTitlePatterns {
		if strings.Contains(lower, pattern) {
			reason := fmt.Sprintf("Page title indicates access denied: %q", title)
			return models.AccessDenialResult{Denied: true, Reason: &reason}, true
		}
	}
	return models.AccessDenialResult{}, false
}
