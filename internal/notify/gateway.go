package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/dmitrijs2005/gophdiary/internal/logging"
)

// Options configures a Gateway.
type Options struct {
	Channel Channel

	// Zone is the IANA zone reminders are interpreted in. Empty selects the
	// process's local zone; an unknown name falls back to UTC.
	Zone string

	// Namespace prefixes the platform's persisted schedule keys.
	Namespace string

	SettleDelay time.Duration

	// CallTimeout bounds every platform call. Zero disables the bound.
	CallTimeout time.Duration

	// Now is the clock used to reject past fire times.
	Now func() time.Time
}

// Gateway is the single owner of a Platform. Schedule, cancel and enumerate
// calls run concurrently; Initialize and ResetSystem are exclusive.
type Gateway struct {
	platform Platform
	state    StateStore
	opts     Options
	logger   logging.Logger

	mu     sync.RWMutex
	loc    *time.Location
	closed bool

	// sleep waits for the settle delay; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGateway(platform Platform, state StateStore, opts Options, logger logging.Logger) *Gateway {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		platform: platform,
		state:    state,
		opts:     opts,
		logger:   logger,
		loc:      time.UTC,
		sleep:    sleepContext,
	}
}

// Location returns the zone resolved by the last Initialize (UTC before).
func (g *Gateway) Location() *time.Location {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loc
}

// Initialize registers the channel, resolves the zone and asks for the
// notification and exact-timing permissions. Every step runs even if an
// earlier one failed; the step errors are joined into the result, which the
// caller is expected to log rather than treat as fatal.
func (g *Gateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialize(ctx)
}

func (g *Gateway) initialize(ctx context.Context) error {
	var errs []error
	step := func(name string, err error) {
		if err == nil {
			return
		}
		g.logger.Warn(ctx, "initialization step failed", "step", name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	step("register channel", g.call(ctx, func(ctx context.Context) error {
		return g.platform.Initialize(ctx, g.opts.Channel)
	}))

	loc, err := resolveZone(g.opts.Zone)
	step("resolve zone", err)
	g.loc = loc

	step("notification permission", g.ensure(ctx, "notifications",
		g.platform.NotificationsAllowed, g.platform.RequestNotifications))
	step("exact timing permission", g.ensure(ctx, "exact timing",
		g.platform.ExactTimingAllowed, g.platform.RequestExactTiming))

	if len(errs) == 0 {
		g.logger.Info(ctx, "notification gateway initialized",
			"channel_id", g.opts.Channel.ID, "zone", g.loc.String())
	}
	return errors.Join(errs...)
}

// ensure queries a permission and requests it when missing.
func (g *Gateway) ensure(ctx context.Context, what string, query, request func(context.Context) (bool, error)) error {
	ok, err := callValue(ctx, g.opts.CallTimeout, query)
	if err != nil {
		return fmt.Errorf("%w: query %s: %w", ErrPlatform, what, err)
	}
	if ok {
		return nil
	}

	ok, err = callValue(ctx, g.opts.CallTimeout, request)
	if err != nil {
		return fmt.Errorf("%w: request %s: %w", ErrPlatform, what, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPermission, what)
	}
	return nil
}

// ScheduleOne posts one job. A fire time at or before now yields ErrPastTime
// and nothing is scheduled. Platform failures are returned wrapped in
// ErrPlatformCorruption (after recovery has run), ErrPermission or
// ErrPlatform.
func (g *Gateway) ScheduleOne(ctx context.Context, n Notification) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return ErrClosed
	}

	if !n.FireAt.After(g.opts.Now()) {
		return fmt.Errorf("%w: %s", ErrPastTime, n.FireAt.Format(time.RFC3339))
	}

	loc := n.Zone
	if loc == nil {
		loc = g.loc
	}
	if loc == nil {
		loc = time.UTC
	}

	job := Job{
		ID:        normalizeID(n.ID),
		FireAt:    n.FireAt.In(loc),
		Title:     n.Title,
		Body:      n.Body,
		Payload:   n.Payload,
		ChannelID: g.opts.Channel.ID,
		Sound:     n.Sound,
	}
	if job.ID != n.ID {
		g.logger.Warn(ctx, "job id normalized", "requested_id", n.ID, "job_id", job.ID)
	}

	err := g.call(ctx, func(ctx context.Context) error {
		return g.platform.ScheduleAt(ctx, job)
	})
	if err == nil {
		g.logger.Debug(ctx, "job scheduled", "job_id", job.ID, "fire_at", job.FireAt)
		return nil
	}

	switch {
	case IsCorruption(err):
		g.logger.Error(ctx, "platform state corrupted, recovering", "job_id", job.ID, "error", err)
		if rerr := g.recoverFromCorruption(ctx); rerr != nil {
			g.logger.Error(ctx, "corruption recovery incomplete", "error", rerr)
		}
		return fmt.Errorf("%w: job %d: %w", ErrPlatformCorruption, job.ID, err)
	case IsPermission(err):
		return fmt.Errorf("%w: job %d: %w", ErrPermission, job.ID, err)
	default:
		return fmt.Errorf("%w: job %d: %w", ErrPlatform, job.ID, err)
	}
}

// CancelOne cancels a job. Non-positive ids are a no-op. A failure is logged
// and returned for aggregation; callers must not abort on it.
func (g *Gateway) CancelOne(ctx context.Context, id int64) error {
	if id <= 0 {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	err := g.call(ctx, func(ctx context.Context) error {
		return g.platform.Cancel(ctx, id)
	})
	if err != nil {
		g.logger.Warn(ctx, "cancel failed", "job_id", id, "error", err)
		return fmt.Errorf("%w: cancel job %d: %w", ErrPlatform, id, err)
	}
	return nil
}

// CancelMany cancels every id and reports how many cancels succeeded. All
// ids are attempted regardless of failures.
func (g *Gateway) CancelMany(ctx context.Context, ids []int64) (int, error) {
	var (
		ok   int
		errs []error
	)
	for _, id := range ids {
		if err := g.CancelOne(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		ok++
	}
	return ok, errors.Join(errs...)
}

// CancelAll cancels every job on the platform, best effort.
func (g *Gateway) CancelAll(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cancelAll(ctx)
}

func (g *Gateway) cancelAll(ctx context.Context) error {
	err := g.call(ctx, g.platform.CancelAll)
	if err != nil {
		g.logger.Warn(ctx, "cancel all failed", "error", err)
		return fmt.Errorf("%w: cancel all: %w", ErrPlatform, err)
	}
	return nil
}

// Pending enumerates jobs that have not fired yet. On failure it returns an
// empty, non-nil slice together with the error so callers that only want a
// best-effort listing can ignore the error.
func (g *Gateway) Pending(ctx context.Context) ([]PendingJob, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	jobs, err := callValue(ctx, g.opts.CallTimeout, g.platform.Pending)
	if err != nil {
		g.logger.Warn(ctx, "listing pending jobs failed", "error", err)
		return []PendingJob{}, fmt.Errorf("%w: pending: %w", ErrPlatform, err)
	}
	if jobs == nil {
		jobs = []PendingJob{}
	}
	return jobs, nil
}

// RecoverFromCorruption deletes the platform's persisted schedule keys and
// cancels all jobs. Running it again on clean state is harmless.
func (g *Gateway) RecoverFromCorruption(ctx context.Context) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.recoverFromCorruption(ctx)
}

func (g *Gateway) recoverFromCorruption(ctx context.Context) error {
	var errs []error

	keys, err := callValue(ctx, g.opts.CallTimeout, g.state.Keys)
	if err != nil {
		errs = append(errs, fmt.Errorf("listing state keys: %w", err))
	}

	keeper, _ := g.platform.(StateKeeper)

	purged := 0
	for _, key := range keys {
		if !shouldPurge(key, g.opts.Namespace) {
			continue
		}
		if keeper != nil && keeper.KeepsState(key) {
			continue
		}
		err := g.call(ctx, func(ctx context.Context) error {
			return g.state.Delete(ctx, key)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("deleting state key %q: %w", key, err))
			continue
		}
		purged++
	}

	if err := g.cancelAll(ctx); err != nil {
		errs = append(errs, err)
	}

	g.logger.Info(ctx, "platform state purged", "keys", purged)
	return errors.Join(errs...)
}

// ResetSystem is the manual last-resort recovery: cancel everything, purge
// persisted state, wait for the platform to settle and initialize again. No
// other gateway call runs until it returns. Only the initialization result is
// returned.
func (g *Gateway) ResetSystem(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info(ctx, "resetting notification system")

	if err := g.cancelAll(ctx); err != nil {
		g.logger.Warn(ctx, "reset: cancel all failed", "error", err)
	}
	if err := g.recoverFromCorruption(ctx); err != nil {
		g.logger.Warn(ctx, "reset: recovery failed", "error", err)
	}
	if err := g.sleep(ctx, g.opts.SettleDelay); err != nil {
		return err
	}
	return g.initialize(ctx)
}

// Permissions reports the current permission state without prompting.
func (g *Gateway) Permissions(ctx context.Context) (Permissions, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var p Permissions
	var err1, err2 error
	p.Notifications, err1 = callValue(ctx, g.opts.CallTimeout, g.platform.NotificationsAllowed)
	p.ExactTiming, err2 = callValue(ctx, g.opts.CallTimeout, g.platform.ExactTimingAllowed)
	if err := errors.Join(err1, err2); err != nil {
		return p, fmt.Errorf("%w: permissions: %w", ErrPlatform, err)
	}
	return p, nil
}

// RequestPermissions asks for both permissions and returns the outcome.
func (g *Gateway) RequestPermissions(ctx context.Context) (Permissions, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var p Permissions
	var err1, err2 error
	p.Notifications, err1 = callValue(ctx, g.opts.CallTimeout, g.platform.RequestNotifications)
	p.ExactTiming, err2 = callValue(ctx, g.opts.CallTimeout, g.platform.RequestExactTiming)
	if err := errors.Join(err1, err2); err != nil {
		return p, fmt.Errorf("%w: request permissions: %w", ErrPlatform, err)
	}
	return p, nil
}

// Close makes further schedule calls fail with ErrClosed. Cancels still go
// through so shutdown paths can clean up.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *Gateway) call(ctx context.Context, fn func(context.Context) error) error {
	_, err := callValue(ctx, g.opts.CallTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func callValue[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

func resolveZone(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, fmt.Errorf("unknown zone %q, using UTC: %w", name, err)
	}
	return loc, nil
}

// normalizeID maps a non-positive id onto a positive one: absolute value,
// then 1 if it is still zero.
func normalizeID(id int64) int64 {
	if id == math.MinInt64 {
		return math.MaxInt64
	}
	if id < 0 {
		id = -id
	}
	if id == 0 {
		id = 1
	}
	return id
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
