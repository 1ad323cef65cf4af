// Package consent dismisses cookie consent overlays and reads what the dialog discloses.
package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/interfaces"
	"github.com/ternarybob/trackscope/internal/models"
)

// Strategist runs click strategies in order until one succeeds
type Strategist struct {
	strategies []Strategy
	logger     arbor.ILogger
}

func NewStrategist(strategies []Strategy, logger arbor.ILogger) *Strategist {
	return &Strategist{
		strategies: strategies,
		logger:     logger,
	}
}

// Click never fails; false means every strategy was exhausted and the overlay is still up
func (s *Strategist) Click(ctx context.Context, page interfaces.Page, detection models.CookieConsentDetection) bool {
	for _, strategy := range s.strategies {
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("Consent click abandoned, context done")
			return false
		}

		err := s.attempt(ctx, strategy, page, detection)
		switch {
		case err == nil:
			s.logger.Info().Str("strategy", strategy.Name()).Msg("Consent overlay dismissed")
			return true
		case errors.Is(err, errNotApplicable):
			s.logger.Debug().Str("strategy", strategy.Name()).Msg("Consent click strategy skipped")
		default:
			s.logger.Debug().Err(err).Str("strategy", strategy.Name()).Msg("Consent click strategy failed")
		}
	}

	s.logger.Warn().Err(models.ErrConsentClick).Int("strategies", len(s.strategies)).Msg("All consent click strategies exhausted")
	return false
}

func (s *Strategist) attempt(ctx context.Context, strategy Strategy, page interfaces.Page, detection models.CookieConsentDetection) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
	}()
	return strategy.Attempt(ctx, page, detection)
}
