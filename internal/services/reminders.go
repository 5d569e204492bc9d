// Package services holds the reminder synchronizer: the orchestration that
// keeps platform jobs in line with the entries and reminders in the store.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/jobid"
	"github.com/dmitrijs2005/gophdiary/internal/logging"
	"github.com/dmitrijs2005/gophdiary/internal/models"
	"github.com/dmitrijs2005/gophdiary/internal/notify"
	"github.com/dmitrijs2005/gophdiary/internal/recurrence"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the synchronizer needs.
type Store interface {
	SaveEntry(ctx context.Context, e *models.Entry) (bool, error)
	GetEntry(ctx context.Context, id string) (*models.Entry, error)
	GetAllEntries(ctx context.Context) ([]models.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	GetReminder(ctx context.Context, id int64) (*models.Reminder, error)
	UpdateReminder(ctx context.Context, r *models.Reminder) error
	GetRemindersForEntry(ctx context.Context, entryID string) ([]models.Reminder, error)
	ReplaceReminders(ctx context.Context, entryID string, desired []models.Reminder) ([]models.Reminder, error)
}

// Gateway is the delivery side of the synchronizer.
type Gateway interface {
	ScheduleOne(ctx context.Context, n notify.Notification) error
	CancelMany(ctx context.Context, ids []int64) (int, error)
	Pending(ctx context.Context) ([]notify.PendingJob, error)
	Location() *time.Location
}

// Options tunes a ReminderService.
type Options struct {
	Horizon           int
	MaxAttempts       int
	ResyncConcurrency int
	Now               func() time.Time
}

// ReminderService turns saved entries into platform jobs. Callers must not
// run two passes for the same entry concurrently; passes for different
// entries are independent.
type ReminderService struct {
	store    Store
	gateway  Gateway
	expander recurrence.Expander
	opts     Options
	logger   logging.Logger
}

func NewReminderService(store Store, gateway Gateway, opts Options, logger logging.Logger) *ReminderService {
	exp := recurrence.New(opts.Horizon, opts.MaxAttempts)
	opts.Horizon, opts.MaxAttempts = exp.Horizon, exp.MaxAttempts
	if opts.ResyncConcurrency <= 0 {
		opts.ResyncConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ReminderService{
		store:    store,
		gateway:  gateway,
		expander: exp,
		opts:     opts,
		logger:   logger,
	}
}

// OnEntrySaved persists entry and makes desired its reminder set, cancelling
// the jobs of the previous set and scheduling the jobs of the new one. Only
// store failures are returned as an error; scheduling problems are counted
// in the report.
func (s *ReminderService) OnEntrySaved(ctx context.Context, entry *models.Entry, desired []models.Reminder) (SyncReport, error) {
	var report SyncReport

	created, err := s.store.SaveEntry(ctx, entry)
	if err != nil {
		return report, fmt.Errorf("saving entry: %w", err)
	}

	previous, err := s.store.GetRemindersForEntry(ctx, entry.ID)
	if err != nil {
		return report, fmt.Errorf("loading reminders of entry %s: %w", entry.ID, err)
	}
	report.Cancelled += s.cancelJobs(ctx, previous)

	saved, err := s.store.ReplaceReminders(ctx, entry.ID, desired)
	if err != nil {
		return report, fmt.Errorf("saving reminders of entry %s: %w", entry.ID, err)
	}

	s.scheduleEntry(ctx, *entry, saved, &report)

	s.logger.Info(ctx, "entry synchronized",
		"entry_id", entry.ID, "created", created, "reminders", len(saved), "report", report.String())
	return report, nil
}

// OnEntryDeleted cancels every job of the entry's reminders and deletes the
// entry with its reminders. Deletion goes ahead even when cancels fail.
func (s *ReminderService) OnEntryDeleted(ctx context.Context, entryID string) (SyncReport, error) {
	var report SyncReport

	rs, err := s.store.GetRemindersForEntry(ctx, entryID)
	if err != nil {
		return report, fmt.Errorf("loading reminders of entry %s: %w", entryID, err)
	}
	report.Cancelled += s.cancelJobs(ctx, rs)

	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		return report, fmt.Errorf("deleting entry %s: %w", entryID, err)
	}

	s.logger.Info(ctx, "entry deleted", "entry_id", entryID, "reminders", len(rs), "cancelled", report.Cancelled)
	return report, nil
}

// OnReminderToggled switches a reminder on or off. Switching off cancels its
// jobs and keeps the row; switching on re-expands from the stored anchor.
func (s *ReminderService) OnReminderToggled(ctx context.Context, reminder models.Reminder, active bool) (SyncReport, error) {
	var report SyncReport

	stored, err := s.store.GetReminder(ctx, reminder.ID)
	if err != nil {
		return report, fmt.Errorf("loading reminder %d: %w", reminder.ID, err)
	}

	report.Cancelled += s.cancelJobs(ctx, []models.Reminder{*stored})

	stored.Active = active
	if err := s.store.UpdateReminder(ctx, stored); err != nil {
		return report, fmt.Errorf("updating reminder %d: %w", stored.ID, err)
	}

	if active {
		entry, err := s.store.GetEntry(ctx, stored.EntryID)
		if err != nil {
			return report, fmt.Errorf("loading entry %s: %w", stored.EntryID, err)
		}
		s.scheduleEntry(ctx, *entry, []models.Reminder{*stored}, &report)
	}

	s.logger.Info(ctx, "reminder toggled", "reminder_id", stored.ID, "active", active, "report", report.String())
	return report, nil
}

// ResyncAll cancels and reschedules the jobs of every entry. Entries are
// processed concurrently, bounded by Options.ResyncConcurrency. A store
// failure stops the pass and is returned.
func (s *ReminderService) ResyncAll(ctx context.Context) (SyncReport, error) {
	var (
		mu    sync.Mutex
		total SyncReport
	)

	entries, err := s.store.GetAllEntries(ctx)
	if err != nil {
		return total, fmt.Errorf("loading entries: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ResyncConcurrency)

	for _, e := range entries {
		g.Go(func() error {
			rs, err := s.store.GetRemindersForEntry(gctx, e.ID)
			if err != nil {
				return fmt.Errorf("loading reminders of entry %s: %w", e.ID, err)
			}

			var report SyncReport
			report.Cancelled += s.cancelJobs(gctx, rs)
			s.scheduleEntry(gctx, e, rs, &report)

			mu.Lock()
			total.Merge(report)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return total, err
	}

	s.logger.Info(ctx, "resync finished", "entries", len(entries), "report", total.String())
	return total, nil
}

// Audit compares the future jobs the active reminders imply with what the
// platform reports as pending.
func (s *ReminderService) Audit(ctx context.Context) (AuditReport, error) {
	var report AuditReport

	entries, err := s.store.GetAllEntries(ctx)
	if err != nil {
		return report, fmt.Errorf("loading entries: %w", err)
	}

	loc := s.gateway.Location()
	now := s.opts.Now()
	expected := map[int64]bool{}
	for _, e := range entries {
		rs, err := s.store.GetRemindersForEntry(ctx, e.ID)
		if err != nil {
			return report, fmt.Errorf("loading reminders of entry %s: %w", e.ID, err)
		}
		for _, r := range rs {
			if !r.Active {
				continue
			}
			for _, id := range s.expectedJobs(r, loc, now) {
				expected[id] = true
			}
		}
	}

	pending, perr := s.gateway.Pending(ctx)
	if perr != nil {
		s.logger.Warn(ctx, "audit could not enumerate platform", "error", perr)
		report.Incomplete = true
	}

	have := make(map[int64]bool, len(pending))
	for _, p := range pending {
		have[p.ID] = true
		if !expected[p.ID] {
			report.Stale = append(report.Stale, p.ID)
		}
	}
	for id := range expected {
		if !have[id] {
			report.Missing = append(report.Missing, id)
		}
	}
	slices.Sort(report.Missing)
	slices.Sort(report.Stale)

	report.Expected = len(expected)
	report.Pending = len(pending)
	return report, nil
}

// expectedJobs lists the job ids a fresh pass would schedule for r.
func (s *ReminderService) expectedJobs(r models.Reminder, loc *time.Location, now time.Time) []int64 {
	var ids []int64
	times, _ := s.occurrences(r, loc, now)
	for i, at := range times {
		if !at.After(now) {
			continue
		}
		if id, err := jobid.Allocate(r.ID, i); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// occurrences returns the fire times of r in order. Non-recurring reminders
// yield their anchor even when it is past.
func (s *ReminderService) occurrences(r models.Reminder, loc *time.Location, now time.Time) ([]time.Time, error) {
	anchor := r.At(loc)
	if !r.Recurrence.IsRecurring() {
		return []time.Time{anchor}, nil
	}
	seq, err := s.expander.Expand(anchor, r.Recurrence, now)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// scheduleEntry schedules the jobs of every active reminder in rs.
func (s *ReminderService) scheduleEntry(ctx context.Context, entry models.Entry, rs []models.Reminder, report *SyncReport) {
	loc := s.gateway.Location()
	now := s.opts.Now()
	for _, r := range rs {
		if !r.Active {
			continue
		}
		s.scheduleReminder(ctx, entry, r, loc, now, report)
	}
}

func (s *ReminderService) scheduleReminder(ctx context.Context, entry models.Entry, r models.Reminder, loc *time.Location, now time.Time, report *SyncReport) {
	log := s.logger.With("entry_id", entry.ID, "reminder_id", r.ID)

	if !jobid.CollisionFree(r.ID) {
		log.Warn(ctx, "reminder id outside the collision-free range", "max_reminder_id", jobid.MaxReminderID)
	}

	times, err := s.occurrences(r, loc, now)
	if err != nil {
		log.Error(ctx, "reminder not scheduled", "recurrence", string(r.Recurrence), "error", err)
		report.fail(fmt.Errorf("reminder %d: %w", r.ID, err))
		return
	}

	for i, at := range times {
		if !at.After(now) {
			report.SkippedPast++
			log.Debug(ctx, "occurrence in the past", "fire_at", at)
			continue
		}

		id, err := jobid.Allocate(r.ID, i)
		if err != nil {
			log.Error(ctx, "no job id for occurrence", "index", i, "error", err)
			report.fail(fmt.Errorf("reminder %d occurrence %d: %w", r.ID, i, err))
			continue
		}

		report.Attempted++
		err = s.gateway.ScheduleOne(ctx, notify.Notification{
			ID:      id,
			Title:   entry.Title,
			Body:    entry.NotificationBody(),
			FireAt:  at,
			Payload: entry.ID,
			Sound:   r.Sound,
			Zone:    loc,
		})
		switch {
		case err == nil:
			report.Scheduled++
		case errors.Is(err, notify.ErrPastTime):
			report.SkippedPast++
		case errors.Is(err, notify.ErrPlatformCorruption):
			// recovery cancelled every job, including the ones counted above
			log.Error(ctx, "scheduling stopped for reminder", "job_id", id, "error", err)
			report.fail(err)
			report.ResyncNeeded = true
			return
		case errors.Is(err, notify.ErrPermission):
			log.Error(ctx, "scheduling stopped for reminder", "job_id", id, "error", err)
			report.fail(err)
			return
		default:
			log.Warn(ctx, "occurrence not scheduled", "job_id", id, "error", err)
			report.fail(err)
		}
	}
}

// cancelJobs cancels every job of rs and returns how many cancels
// succeeded. Failures are only logged. Jobs may have been scheduled under a
// larger horizon than the current one, so the derived ids are extended with
// every pending job the reminder owns; when the platform cannot be
// enumerated the sweep covers jobid.MaxHorizon indices instead.
func (s *ReminderService) cancelJobs(ctx context.Context, rs []models.Reminder) int {
	if len(rs) == 0 {
		return 0
	}

	sweep := s.opts.Horizon
	pending, err := s.gateway.Pending(ctx)
	if err != nil {
		s.logger.Warn(ctx, "pending jobs unavailable, cancelling the full index range",
			"max_horizon", jobid.MaxHorizon, "error", err)
		sweep = max(sweep, jobid.MaxHorizon)
		pending = nil
	}

	cancelled := 0
	for _, r := range rs {
		ids, err := jobid.Derive(r.ID, sweep)
		if err != nil {
			continue
		}
		for _, p := range pending {
			if jobid.Owns(r.ID, p.ID) && !slices.Contains(ids, p.ID) {
				ids = append(ids, p.ID)
			}
		}

		n, err := s.gateway.CancelMany(ctx, ids)
		cancelled += n
		if err != nil {
			s.logger.Warn(ctx, "some jobs could not be cancelled",
				"reminder_id", r.ID, "cancelled", n, "requested", len(ids), "error", err)
		}
	}
	return cancelled
}
