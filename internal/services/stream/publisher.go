// Package stream sequences the progress events of one scan job onto a one-way channel.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trackscope/internal/models"
)

var (
	// ErrClosed is returned when emitting after the terminal event
	ErrClosed = errors.New("stream closed")
	// ErrOutOfOrder is returned when a stage does not come after the previous one
	ErrOutOfOrder = errors.New("stage out of order")
)

// Publisher owns the event channel of exactly one job.
// Stages must be emitted in canonical order; the channel closes after the single terminal event.
type Publisher struct {
	jobID  string
	ctx    context.Context
	events chan models.StreamEvent
	logger arbor.ILogger

	mu        sync.Mutex
	lastRank  int
	closed    bool
	closeOnce sync.Once
	now       func() time.Time
}

// NewPublisher creates a publisher whose sends give up once ctx (the consumer) is done
func NewPublisher(ctx context.Context, jobID string, bufferSize int, logger arbor.ILogger) *Publisher {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Publisher{
		jobID:  jobID,
		ctx:    ctx,
		events: make(chan models.StreamEvent, bufferSize),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) JobID() string {
	return p.jobID
}

// Events is the consumer side; it is closed after the terminal event
func (p *Publisher) Events() <-chan models.StreamEvent {
	return p.events
}

// Emit sends a non-terminal stage event
func (p *Publisher) Emit(stage models.Stage, message string, payload interface{}) error {
	if stage.IsTerminal() {
		return fmt.Errorf("%w: %s must be sent with Complete or Fail", ErrOutOfOrder, stage)
	}
	return p.send(stage, message, payload)
}

// Complete sends the success terminal carrying the analysis result and closes the stream
func (p *Publisher) Complete(result models.AnalysisResult) error {
	return p.send(models.StageComplete, "Analysis complete", result)
}

// Fail sends the error terminal and closes the stream
func (p *Publisher) Fail(message string) error {
	return p.send(models.StageError, message, models.ErrorPayload{Error: message})
}

// Close ends the stream, sending an error terminal first if none was sent. Safe to call repeatedly.
func (p *Publisher) Close() {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if !closed {
		if err := p.Fail("Scan ended without a result"); err != nil && !errors.Is(err, ErrClosed) {
			p.logger.Debug().Err(err).Str("job_id", p.jobID).Msg("Could not deliver closing error event")
		}
	}
	p.closeChannel()
}

func (p *Publisher) send(stage models.Stage, message string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	rank := stage.Rank()
	if rank == 0 || rank <= p.lastRank {
		return fmt.Errorf("%w: %s after rank %d", ErrOutOfOrder, stage, p.lastRank)
	}
	p.lastRank = rank

	event := models.StreamEvent{
		JobID:     p.jobID,
		Stage:     stage,
		Message:   message,
		Payload:   payload,
		Timestamp: p.now(),
	}

	var err error
	select {
	case p.events <- event:
		p.logger.Debug().Str("job_id", p.jobID).Str("stage", string(stage)).Msg("Stream event published")
	case <-p.ctx.Done():
		err = fmt.Errorf("consumer gone before %s: %w", stage, p.ctx.Err())
	}

	if stage.IsTerminal() || err != nil {
		p.closed = true
		p.closeChannel()
	}
	return err
}

func (p *Publisher) closeChannel() {
	p.closeOnce.Do(func() {
		close(p.events)
	})
}
