package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/common"
	"github.com/dmitrijs2005/gophdiary/internal/dbx"
	"github.com/dmitrijs2005/gophdiary/internal/jobid"
	"github.com/dmitrijs2005/gophdiary/internal/logging"
	"github.com/dmitrijs2005/gophdiary/internal/models"
	"github.com/dmitrijs2005/gophdiary/internal/notify"
	"github.com/dmitrijs2005/gophdiary/internal/recurrence"
	"github.com/dmitrijs2005/gophdiary/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), dbx.DriverSQLite, ":memory:",
		store.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newService(t *testing.T) (*ReminderService, *store.Store, *fakeGateway) {
	t.Helper()
	st := newStore(t)
	gw := newFakeGateway(now)
	svc := NewReminderService(st, gw, Options{
		Horizon:           recurrence.DefaultHorizon,
		MaxAttempts:       recurrence.DefaultMaxAttempts,
		ResyncConcurrency: 2,
		Now:               func() time.Time { return now },
	}, logging.Discard())
	return svc, st, gw
}

func wall(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func expectedIDs(reminderID int64, n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = reminderID + int64(i)*jobid.Stride
	}
	return ids
}

// schedule projects the fake's jobs onto comparable values.
func schedule(gw *fakeGateway) map[int64]string {
	out := map[int64]string{}
	for id, n := range gw.Jobs() {
		out[id] = n.FireAt.UTC().Format(time.RFC3339) + " " + n.Title + " " + n.Payload
	}
	return out
}

func TestOnEntrySaved_BuyMilkDaily(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "Buy milk"}
	report, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{{
		FireAt:     wall(2025, 3, 10, 9, 0),
		Active:     true,
		Recurrence: models.RecurrenceDaily,
	}})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)

	assert.Equal(t, 30, report.Scheduled)
	assert.Equal(t, 30, report.Attempted)
	assert.Zero(t, report.Failed)

	rs, err := st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	rid := rs[0].ID

	assert.Equal(t, expectedIDs(rid, 30), gw.JobIDs())

	jobs := gw.Jobs()
	for i := 0; i < 30; i++ {
		n := jobs[rid+int64(i)*jobid.Stride]
		assert.True(t, n.FireAt.Equal(wall(2025, 3, 10, 9, 0).AddDate(0, 0, i)), "occurrence %d", i)
		assert.Equal(t, "Buy milk", n.Title)
		assert.Equal(t, "Buy milk", n.Body)
		assert.Equal(t, entry.ID, n.Payload)
	}
	for i := 1; i < 30; i++ {
		prev := jobs[rid+int64(i-1)*jobid.Stride].FireAt
		cur := jobs[rid+int64(i)*jobid.Stride].FireAt
		assert.Equal(t, 24*time.Hour, cur.Sub(prev))
	}
}

func TestOnEntrySaved_ResaveIsIdempotent(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "Stretch", Content: "10 minutes"}
	_, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{{
		FireAt: wall(2025, 3, 11, 7, 30), Active: true, Recurrence: models.RecurrenceWeekly,
	}})
	require.NoError(t, err)
	first := schedule(gw)
	require.Len(t, first, 30)

	rs, err := st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)
	_, err = svc.OnEntrySaved(ctx, entry, rs)
	require.NoError(t, err)

	if diff := cmp.Diff(first, schedule(gw)); diff != "" {
		t.Fatalf("job set changed on resave (-first +second):\n%s", diff)
	}
	assert.Equal(t, "10 minutes", gw.Jobs()[rs[0].ID].Body)
}

func TestOnEntrySaved_EditReplacesJobs(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "Water plants"}
	_, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{
		{FireAt: wall(2025, 3, 10, 9, 0), Active: true, Recurrence: models.RecurrenceDaily},
		{FireAt: wall(2025, 3, 20, 9, 0), Active: true},
	})
	require.NoError(t, err)
	rs, err := st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, rs, 2)

	// Keep the first reminder as weekly, drop the one-off.
	edited := rs[0]
	edited.Recurrence = models.RecurrenceWeekly
	report, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{edited})
	require.NoError(t, err)
	assert.Equal(t, 60, report.Cancelled, "every derivable id of both previous reminders")
	assert.Equal(t, 30, report.Scheduled)

	assert.Equal(t, expectedIDs(edited.ID, 30), gw.JobIDs())
	jobs := gw.Jobs()
	last := jobs[edited.ID+29*jobid.Stride].FireAt
	assert.True(t, last.Equal(wall(2025, 3, 10, 9, 0).AddDate(0, 0, 7*29)))
}

func TestOnEntrySaved_SkipsPastAndInactive(t *testing.T) {
	svc, _, gw := newService(t)

	report, err := svc.OnEntrySaved(context.Background(), &models.Entry{Title: "old"}, []models.Reminder{
		{FireAt: wall(2025, 3, 9, 9, 0), Active: true},
		{FireAt: wall(2025, 3, 12, 9, 0), Active: false, Recurrence: models.RecurrenceDaily},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.SkippedPast)
	assert.Zero(t, report.Attempted)
	assert.Zero(t, report.Failed)
	assert.Empty(t, gw.JobIDs())
}

func TestOnEntrySaved_SkippedPastCountsOnlyAnchorsAndGatewayRejections(t *testing.T) {
	svc, _, gw := newService(t)

	// Past occurrences of a recurring reminder never reach the report.
	report, err := svc.OnEntrySaved(context.Background(), &models.Entry{Title: "Pills"}, []models.Reminder{
		{FireAt: wall(2025, 3, 1, 9, 0), Active: true, Recurrence: models.RecurrenceDaily},
	})
	require.NoError(t, err)
	assert.Zero(t, report.SkippedPast)
	assert.Equal(t, 30, report.Scheduled)

	// The gateway's clock is ahead: its ErrPastTime rejections are counted.
	gw.now = now.Add(48 * time.Hour)
	report, err = svc.OnEntrySaved(context.Background(), &models.Entry{Title: "Walk"}, []models.Reminder{
		{FireAt: wall(2025, 3, 10, 9, 0), Active: true, Recurrence: models.RecurrenceDaily},
	})
	require.NoError(t, err)
	assert.Equal(t, 30, report.Attempted)
	assert.Equal(t, 2, report.SkippedPast)
	assert.Equal(t, 28, report.Scheduled)
}

func TestOnEntrySaved_UnknownRuleFailsOnlyThatReminder(t *testing.T) {
	svc, _, gw := newService(t)

	report, err := svc.OnEntrySaved(context.Background(), &models.Entry{Title: "x"}, []models.Reminder{
		{FireAt: wall(2025, 3, 12, 9, 0), Active: true, Recurrence: "hourly"},
		{FireAt: wall(2025, 3, 12, 9, 0), Active: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	require.ErrorIs(t, report.Err(), recurrence.ErrConfiguration)
	assert.Equal(t, 1, report.Scheduled)
	assert.Len(t, gw.JobIDs(), 1)
}

func TestOnEntrySaved_UnrecoverableErrorStopsReminder(t *testing.T) {
	for _, sentinel := range []error{notify.ErrPlatformCorruption, notify.ErrPermission} {
		t.Run(sentinel.Error(), func(t *testing.T) {
			svc, st, gw := newService(t)
			ctx := context.Background()

			entry := &models.Entry{Title: "x"}
			require.NoError(t, st.CreateEntry(ctx, entry))
			saved, err := st.ReplaceReminders(ctx, entry.ID, []models.Reminder{
				{FireAt: wall(2025, 3, 12, 9, 0), Active: true, Recurrence: models.RecurrenceDaily},
				{FireAt: wall(2025, 3, 12, 9, 0), Active: true, Recurrence: models.RecurrenceDaily},
			})
			require.NoError(t, err)
			broken := saved[0].ID

			gw.scheduleErr = func(n notify.Notification) error {
				if r, _ := jobid.Split(n.ID); r == broken {
					return fmt.Errorf("%w: boom", sentinel)
				}
				return nil
			}

			report, err := svc.OnEntrySaved(ctx, entry, saved)
			require.NoError(t, err)
			assert.Equal(t, 1, report.Failed, "stops after the first failure")
			assert.Equal(t, 30, report.Scheduled)
			assert.Equal(t, 31, report.Attempted)
			require.ErrorIs(t, report.Err(), sentinel)
			assert.Equal(t, sentinel == notify.ErrPlatformCorruption, report.ResyncNeeded,
				"only a recovery wipes jobs already counted as scheduled")
		})
	}
}

func TestOnEntrySaved_TransientFailuresContinue(t *testing.T) {
	svc, _, gw := newService(t)

	calls := 0
	gw.scheduleErr = func(n notify.Notification) error {
		calls++
		if calls%2 == 0 {
			return fmt.Errorf("%w: busy", notify.ErrPlatform)
		}
		return nil
	}

	report, err := svc.OnEntrySaved(context.Background(), &models.Entry{Title: "x"}, []models.Reminder{
		{FireAt: wall(2025, 3, 12, 9, 0), Active: true, Recurrence: models.RecurrenceDaily},
	})
	require.NoError(t, err)
	assert.Equal(t, 30, report.Attempted)
	assert.Equal(t, 15, report.Scheduled)
	assert.Equal(t, 15, report.Failed)
	assert.Len(t, report.Errors, 15)
}

func TestOnEntrySaved_StoreErrorIsReturned(t *testing.T) {
	svc, st, _ := newService(t)
	require.NoError(t, st.Close())

	_, err := svc.OnEntrySaved(context.Background(), &models.Entry{Title: "x"}, nil)
	require.Error(t, err)
}

func TestOnEntryDeleted_CancelsEveryWeeklyIDEvenIfCancelsFail(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "Team sync"}
	_, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{{
		FireAt: wall(2025, 3, 11, 10, 0), Active: true, Recurrence: models.RecurrenceWeekly,
	}})
	require.NoError(t, err)
	rs, err := st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)
	rid := rs[0].ID

	gw.mu.Lock()
	gw.cancelRequests = nil
	gw.cancelErr = errors.New("platform unavailable")
	gw.mu.Unlock()

	report, err := svc.OnEntryDeleted(ctx, entry.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Cancelled)
	assert.Equal(t, expectedIDs(rid, 30), gw.cancelRequests)

	_, err = st.GetEntry(ctx, entry.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	rs, err = st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func withHorizon(t *testing.T, st *store.Store, gw *fakeGateway, horizon int) *ReminderService {
	t.Helper()
	return NewReminderService(st, gw, Options{
		Horizon:     horizon,
		MaxAttempts: recurrence.DefaultMaxAttempts,
		Now:         func() time.Time { return now },
	}, logging.Discard())
}

func TestOnEntryDeleted_AfterHorizonShrinkCancelsEverything(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "Buy milk"}
	_, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{{
		FireAt: wall(2025, 3, 11, 9, 0), Active: true, Recurrence: models.RecurrenceDaily,
	}})
	require.NoError(t, err)
	require.Len(t, gw.JobIDs(), 30)

	report, err := withHorizon(t, st, gw, 10).OnEntryDeleted(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, report.Cancelled)
	assert.Empty(t, gw.JobIDs())
}

func TestOnEntrySaved_AfterHorizonShrinkDropsJobsBeyondIt(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "Stretch"}
	_, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{{
		FireAt: wall(2025, 3, 11, 7, 0), Active: true, Recurrence: models.RecurrenceDaily,
	}})
	require.NoError(t, err)
	rs, err := st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)

	report, err := withHorizon(t, st, gw, 10).OnEntrySaved(ctx, entry, rs)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Scheduled)
	assert.Equal(t, expectedIDs(rs[0].ID, 10), gw.JobIDs())
}

func TestOnEntryDeleted_PendingUnavailableSweepsFullRange(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "Team sync"}
	_, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{{
		FireAt: wall(2025, 3, 11, 10, 0), Active: true, Recurrence: models.RecurrenceWeekly,
	}})
	require.NoError(t, err)
	rs, err := st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)

	gw.mu.Lock()
	gw.cancelRequests = nil
	gw.pendingErr = errors.New("no binder")
	gw.mu.Unlock()

	_, err = withHorizon(t, st, gw, 10).OnEntryDeleted(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, expectedIDs(rs[0].ID, jobid.MaxHorizon), gw.cancelRequests)
	assert.Empty(t, gw.JobIDs())
}

func TestOnEntryDeleted_UnknownEntry(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.OnEntryDeleted(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestOnReminderToggled(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "Pills"}
	_, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{{
		FireAt: wall(2025, 3, 10, 21, 0), Active: true, Recurrence: models.RecurrenceDaily,
	}})
	require.NoError(t, err)
	rs, err := st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)
	r := rs[0]

	report, err := svc.OnReminderToggled(ctx, r, false)
	require.NoError(t, err)
	assert.Equal(t, 30, report.Cancelled)
	assert.Empty(t, gw.JobIDs())

	stored, err := st.GetReminder(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active, "row is kept, only deactivated")

	report, err = svc.OnReminderToggled(ctx, r, true)
	require.NoError(t, err)
	assert.Equal(t, 30, report.Scheduled)
	assert.Equal(t, expectedIDs(r.ID, 30), gw.JobIDs())
}

func TestResyncAll_RestoresAndIsIdempotent(t *testing.T) {
	svc, _, gw := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.OnEntrySaved(ctx, &models.Entry{Title: fmt.Sprintf("e%d", i)}, []models.Reminder{
			{FireAt: wall(2025, 3, 11+i, 9, 0), Active: true, Recurrence: models.RecurrenceMonthly},
			{FireAt: wall(2025, 3, 11+i, 9, 0), Active: true},
		})
		require.NoError(t, err)
	}
	want := schedule(gw)
	require.Len(t, want, 3*31)

	for _, id := range gw.JobIDs()[:10] {
		gw.Drop(id)
	}

	report, err := svc.ResyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 93, report.Scheduled)
	assert.Empty(t, cmp.Diff(want, schedule(gw)))

	_, err = svc.ResyncAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, schedule(gw)))
}

func TestAudit(t *testing.T) {
	svc, st, gw := newService(t)
	ctx := context.Background()

	entry := &models.Entry{Title: "x"}
	_, err := svc.OnEntrySaved(ctx, entry, []models.Reminder{
		{FireAt: wall(2025, 3, 12, 9, 0), Active: true, Recurrence: models.RecurrenceWeekly},
		{FireAt: wall(2025, 3, 1, 9, 0), Active: true},
	})
	require.NoError(t, err)

	report, err := svc.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 30, report.Expected)

	rs, err := st.GetRemindersForEntry(ctx, entry.ID)
	require.NoError(t, err)
	missing := rs[0].ID + 3*jobid.Stride
	gw.Drop(missing)
	gw.Add(notify.Notification{ID: 777, FireAt: now.Add(time.Hour)})

	report, err = svc.Audit(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, []int64{missing}, report.Missing)
	assert.Equal(t, []int64{777}, report.Stale)

	gw.pendingErr = errors.New("no binder")
	report, err = svc.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Incomplete)
	assert.Len(t, report.Missing, 30)
}
