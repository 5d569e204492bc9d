package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/notify"
)

type fakeGateway struct {
	mu sync.Mutex

	now  time.Time
	loc  *time.Location
	jobs map[int64]notify.Notification

	cancelRequests []int64
	cancelErr      error
	scheduleErr    func(n notify.Notification) error
	pendingErr     error
}

func newFakeGateway(now time.Time) *fakeGateway {
	return &fakeGateway{now: now, loc: time.UTC, jobs: map[int64]notify.Notification{}}
}

func (f *fakeGateway) ScheduleOne(ctx context.Context, n notify.Notification) error {
	if !n.FireAt.After(f.now) {
		return notify.ErrPastTime
	}
	if f.scheduleErr != nil {
		if err := f.scheduleErr(n); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[n.ID] = n
	return nil
}

func (f *fakeGateway) CancelMany(ctx context.Context, ids []int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelRequests = append(f.cancelRequests, ids...)
	if f.cancelErr != nil {
		return 0, errors.Join(f.cancelErr)
	}
	for _, id := range ids {
		delete(f.jobs, id)
	}
	return len(ids), nil
}

func (f *fakeGateway) Pending(ctx context.Context) ([]notify.PendingJob, error) {
	if f.pendingErr != nil {
		return []notify.PendingJob{}, f.pendingErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.PendingJob, 0, len(f.jobs))
	for _, n := range f.jobs {
		out = append(out, notify.PendingJob{ID: n.ID, Title: n.Title, FireAt: n.FireAt})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (f *fakeGateway) Location() *time.Location {
	return f.loc
}

// JobIDs returns the scheduled ids in ascending order.
func (f *fakeGateway) JobIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.jobs))
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	return ids
}

func (f *fakeGateway) Jobs() map[int64]notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]notify.Notification, len(f.jobs))
	for id, n := range f.jobs {
		out[id] = n
	}
	return out
}

func (f *fakeGateway) Drop(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
}

func (f *fakeGateway) Add(n notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[n.ID] = n
}
