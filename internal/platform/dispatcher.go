package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/logging"
	"github.com/dmitrijs2005/gophdiary/internal/notify"
)

// Sink delivers a due job to the user.
type Sink interface {
	Deliver(ctx context.Context, job notify.Job) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, job notify.Job) error

func (f SinkFunc) Deliver(ctx context.Context, job notify.Job) error {
	return f(ctx, job)
}

// LogSink "delivers" jobs by logging them.
type LogSink struct {
	Logger logging.Logger
}

func (s LogSink) Deliver(ctx context.Context, job notify.Job) error {
	s.Logger.Info(ctx, "reminder",
		"job_id", job.ID,
		"title", job.Title,
		"body", job.Body,
		"payload", job.Payload,
		"channel_id", job.ChannelID,
		"sound", job.Sound,
		"fire_at", job.FireAt,
	)
	return nil
}

// Recoverer purges corrupted platform state. notify.Gateway implements it.
type Recoverer interface {
	RecoverFromCorruption(ctx context.Context) error
}

// Dispatcher polls a Local platform for due jobs and delivers them.
type Dispatcher struct {
	platform  *Local
	sink      Sink
	poll      time.Duration
	now       func() time.Time
	recoverer Recoverer
	logger    logging.Logger
}

// NewDispatcher creates a Dispatcher. If pollInterval is <= 0, it defaults
// to one second.
func NewDispatcher(p *Local, sink Sink, pollInterval time.Duration, logger logging.Logger) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Dispatcher{
		platform: p,
		sink:     sink,
		poll:     pollInterval,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the dispatcher's notion of now.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// SetRecoverer makes the dispatcher start recovery when the job list no
// longer decodes. Without one a corrupt list is only logged on every poll.
func (d *Dispatcher) SetRecoverer(r Recoverer) {
	d.recoverer = r
}

// Run polls for due jobs until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := d.RunOnce(ctx); err != nil {
			d.logger.Error(ctx, "dispatch iteration failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.poll):
		}
	}
}

// RunOnce delivers every job that is due now and returns how many were
// handed to the sink. A job whose delivery fails is dropped, like a
// notification the system could not display.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	due, err := d.platform.TakeDue(ctx, d.now())
	if err != nil {
		if d.recoverer != nil && notify.IsCorruption(err) {
			d.logger.Error(ctx, "job list corrupted, recovering", "error", err)
			if rerr := d.recoverer.RecoverFromCorruption(ctx); rerr != nil {
				d.logger.Error(ctx, "corruption recovery incomplete", "error", rerr)
			}
		}
		return 0, fmt.Errorf("taking due jobs: %w", err)
	}

	delivered := 0
	for _, job := range due {
		if err := d.sink.Deliver(ctx, job); err != nil {
			d.logger.Warn(ctx, "delivery failed", "job_id", job.ID, "error", err)
			continue
		}
		delivered++
	}
	return delivered, nil
}
