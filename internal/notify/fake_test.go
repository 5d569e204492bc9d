package notify

import (
	"context"
	"sort"
	"sync"
)

type fakePlatform struct {
	mu sync.Mutex

	jobs  map[int64]Job
	calls []string

	initErr      error
	scheduleErr  func(Job) error
	cancelErr    error
	cancelAllErr error
	pendingErr   error

	notifications, exactTiming bool
	grantOnRequest             bool

	block func(ctx context.Context) error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{jobs: map[int64]Job{}, notifications: true, exactTiming: true, grantOnRequest: true}
}

func (f *fakePlatform) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePlatform) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlatform) Initialize(ctx context.Context, ch Channel) error {
	f.record("init")
	return f.initErr
}

func (f *fakePlatform) ScheduleAt(ctx context.Context, job Job) error {
	f.record("schedule")
	if f.block != nil {
		if err := f.block(ctx); err != nil {
			return err
		}
	}
	if f.scheduleErr != nil {
		if err := f.scheduleErr(job); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakePlatform) Cancel(ctx context.Context, id int64) error {
	f.record("cancel")
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
	return nil
}

func (f *fakePlatform) CancelAll(ctx context.Context) error {
	f.record("cancel_all")
	if f.cancelAllErr != nil {
		return f.cancelAllErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = map[int64]Job{}
	return nil
}

func (f *fakePlatform) Pending(ctx context.Context) ([]PendingJob, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PendingJob, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, PendingJob{ID: j.ID, Title: j.Title, FireAt: j.FireAt})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (f *fakePlatform) Job(id int64) (Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	return j, ok
}

func (f *fakePlatform) NotificationsAllowed(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notifications, nil
}

func (f *fakePlatform) RequestNotifications(ctx context.Context) (bool, error) {
	f.record("request_notifications")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantOnRequest {
		f.notifications = true
	}
	return f.notifications, nil
}

func (f *fakePlatform) ExactTimingAllowed(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exactTiming, nil
}

func (f *fakePlatform) RequestExactTiming(ctx context.Context) (bool, error) {
	f.record("request_exact_timing")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantOnRequest {
		f.exactTiming = true
	}
	return f.exactTiming, nil
}

type fakeState struct {
	mu      sync.Mutex
	keys    map[string]bool
	deleted []string
	keysErr error
}

func newFakeState(keys ...string) *fakeState {
	s := &fakeState{keys: map[string]bool{}}
	for _, k := range keys {
		s.keys[k] = true
	}
	return s
}

func (s *fakeState) Keys(ctx context.Context) ([]string, error) {
	if s.keysErr != nil {
		return nil, s.keysErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeState) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeState) Remaining() []string {
	keys, _ := s.Keys(context.Background())
	return keys
}
