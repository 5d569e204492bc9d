// Package platform implements a notification platform on top of the
// metadata key/value table. Jobs are kept as one JSON document; a Dispatcher
// polls for due jobs and hands them to a Sink.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/notify"
	"github.com/dmitrijs2005/gophdiary/internal/repositories/metadata"
)

// Persisted keys. Only JobsKey is schedule state; channel and permission
// keys are reported by KeepsState so a corruption purge leaves them alone.
const (
	JobsKey              = notify.DefaultNamespace + ".scheduled_notifications"
	channelKeyPrefix     = "channel."
	PermNotificationsKey = "perm.post_alerts"
	PermExactTimingKey   = "perm.exact_timing"
)

var ErrUnknownChannel = errors.New("unknown channel")

type jobRecord struct {
	ID        int64     `json:"id"`
	FireAt    time.Time `json:"fire_at"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	ChannelID string    `json:"channel_id"`
	Sound     string    `json:"sound,omitempty"`
}

// Local is a notify.Platform persisted in a metadata repository.
type Local struct {
	mu        sync.Mutex
	repo      metadata.Repository
	autoGrant bool
}

// Option customises a Local platform.
type Option func(*Local)

// WithAutoGrant makes permission requests succeed. Without it a request
// only reports the stored state.
func WithAutoGrant(grant bool) Option {
	return func(l *Local) { l.autoGrant = grant }
}

func NewLocal(repo metadata.Repository, opts ...Option) *Local {
	l := &Local{repo: repo}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Local) Initialize(ctx context.Context, ch notify.Channel) error {
	if ch.ID == "" {
		return fmt.Errorf("%w: empty channel id", ErrUnknownChannel)
	}
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.repo.Set(ctx, channelKeyPrefix+ch.ID, data)
}

// ScheduleAt stores job, replacing a job with the same id.
func (l *Local) ScheduleAt(ctx context.Context, job notify.Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowed, err := l.flag(ctx, PermNotificationsKey)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("posting job %d: %w", job.ID, notify.ErrPermissionDenied)
	}

	ch, err := l.repo.Get(ctx, channelKeyPrefix+job.ChannelID)
	if err != nil {
		return err
	}
	if ch == nil {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, job.ChannelID)
	}

	jobs, err := l.load(ctx)
	if err != nil {
		return err
	}
	jobs = removeID(jobs, job.ID)
	jobs = append(jobs, jobRecord{
		ID:        job.ID,
		FireAt:    job.FireAt,
		Title:     job.Title,
		Body:      job.Body,
		Payload:   job.Payload,
		ChannelID: job.ChannelID,
		Sound:     job.Sound,
	})
	return l.save(ctx, jobs)
}

// Cancel removes a job. Unknown ids are ignored.
func (l *Local) Cancel(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	jobs, err := l.load(ctx)
	if err != nil {
		return err
	}
	kept := removeID(jobs, id)
	if len(kept) == len(jobs) {
		return nil
	}
	return l.save(ctx, kept)
}

// CancelAll drops the whole job list without decoding it, so it also clears
// a corrupt list.
func (l *Local) CancelAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.repo.Delete(ctx, JobsKey)
}

func (l *Local) Pending(ctx context.Context) ([]notify.PendingJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	jobs, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]notify.PendingJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, notify.PendingJob{ID: j.ID, Title: j.Title, FireAt: j.FireAt})
	}
	return out, nil
}

// TakeDue removes and returns the jobs whose fire time is at or before now,
// earliest first.
func (l *Local) TakeDue(ctx context.Context, now time.Time) ([]notify.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	jobs, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	var due []notify.Job
	rest := jobs[:0]
	for _, j := range jobs {
		if j.FireAt.After(now) {
			rest = append(rest, j)
			continue
		}
		due = append(due, notify.Job{
			ID:        j.ID,
			FireAt:    j.FireAt,
			Title:     j.Title,
			Body:      j.Body,
			Payload:   j.Payload,
			ChannelID: j.ChannelID,
			Sound:     j.Sound,
		})
	}
	if len(due) == 0 {
		return nil, nil
	}
	if err := l.save(ctx, rest); err != nil {
		return nil, err
	}
	return due, nil
}

func (l *Local) NotificationsAllowed(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flag(ctx, PermNotificationsKey)
}

func (l *Local) RequestNotifications(ctx context.Context) (bool, error) {
	return l.request(ctx, PermNotificationsKey)
}

func (l *Local) ExactTimingAllowed(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flag(ctx, PermExactTimingKey)
}

func (l *Local) RequestExactTiming(ctx context.Context) (bool, error) {
	return l.request(ctx, PermExactTimingKey)
}

// KeepsState reports the channel and permission records.
func (l *Local) KeepsState(key string) bool {
	return strings.HasPrefix(key, channelKeyPrefix) ||
		key == PermNotificationsKey ||
		key == PermExactTimingKey
}

// SetPermission records a permission decision, as a user toggling it in the
// system settings would.
func (l *Local) SetPermission(ctx context.Context, key string, granted bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.setFlag(ctx, key, granted)
}

func (l *Local) request(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.autoGrant {
		if err := l.setFlag(ctx, key, true); err != nil {
			return false, err
		}
		return true, nil
	}
	return l.flag(ctx, key)
}

func (l *Local) flag(ctx context.Context, key string) (bool, error) {
	v, err := l.repo.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return string(v) == "1", nil
}

func (l *Local) setFlag(ctx context.Context, key string, on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return l.repo.Set(ctx, key, []byte(v))
}

func (l *Local) load(ctx context.Context) ([]jobRecord, error) {
	data, err := l.repo.Get(ctx, JobsKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var jobs []jobRecord
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", notify.ErrCorruptState, JobsKey, err)
	}
	return jobs, nil
}

func (l *Local) save(ctx context.Context, jobs []jobRecord) error {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].FireAt.Equal(jobs[k].FireAt) {
			return jobs[i].ID < jobs[k].ID
		}
		return jobs[i].FireAt.Before(jobs[k].FireAt)
	})
	data, err := json.Marshal(jobs)
	if err != nil {
		return err
	}
	return l.repo.Set(ctx, JobsKey, data)
}

func removeID(jobs []jobRecord, id int64) []jobRecord {
	out := make([]jobRecord, 0, len(jobs))
	for _, j := range jobs {
		if j.ID != id {
			out = append(out, j)
		}
	}
	return out
}
