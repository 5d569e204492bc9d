package store

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/common"
	"github.com/dmitrijs2005/gophdiary/internal/dbx"
	"github.com/dmitrijs2005/gophdiary/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), dbx.DriverSQLite, ":memory:", WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func reminderAt(day int, rule models.Recurrence) models.Reminder {
	return models.Reminder{
		FireAt:     time.Date(2025, 7, day, 9, 0, 0, 0, time.UTC),
		Active:     true,
		Recurrence: rule,
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	require.ErrorIs(t, err, common.ErrUnsupportedDriver)
}

func TestCreateEntry_AssignsUUIDAndTimestamps(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &models.Entry{Title: "Buy milk"}
	require.NoError(t, s.CreateEntry(ctx, e))

	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, e.CreatedAt)
	assert.Equal(t, fixedNow, e.UpdatedAt)

	got, err := s.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Title)
}

func TestSaveEntry_CreatesThenUpdates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &models.Entry{ID: "given-id", Title: "v1"}
	created, err := s.SaveEntry(ctx, e)
	require.NoError(t, err)
	assert.True(t, created, "unknown id is created")

	e.Title = "v2"
	created, err = s.SaveEntry(ctx, e)
	require.NoError(t, err)
	assert.False(t, created)

	all, err := s.GetAllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "v2", all[0].Title)
}

func TestReplaceReminders_KeepsOwnedIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &models.Entry{Title: "gym"}
	require.NoError(t, s.CreateEntry(ctx, e))

	first, err := s.ReplaceReminders(ctx, e.ID, []models.Reminder{
		reminderAt(1, models.RecurrenceWeekly),
		reminderAt(2, models.RecurrenceNone),
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Keep the first, drop the second, add a new one.
	kept := first[0]
	kept.FireAt = kept.FireAt.Add(time.Hour)
	second, err := s.ReplaceReminders(ctx, e.ID, []models.Reminder{kept, reminderAt(3, models.RecurrenceDaily)})
	require.NoError(t, err)
	require.Len(t, second, 2)

	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[1].ID, second[1].ID)
	assert.Greater(t, second[1].ID, first[1].ID, "ids are never reused")

	stored, err := s.GetRemindersForEntry(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 10, stored[0].FireAt.Hour())

	_, err = s.GetReminder(ctx, first[1].ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestReplaceReminders_IsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &models.Entry{Title: "pills"}
	require.NoError(t, s.CreateEntry(ctx, e))

	first, err := s.ReplaceReminders(ctx, e.ID, []models.Reminder{reminderAt(1, models.RecurrenceDaily)})
	require.NoError(t, err)
	second, err := s.ReplaceReminders(ctx, e.ID, first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReplaceReminders_ForeignIDGetsFreshID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := &models.Entry{Title: "a"}
	b := &models.Entry{Title: "b"}
	require.NoError(t, s.CreateEntry(ctx, a))
	require.NoError(t, s.CreateEntry(ctx, b))

	ofA, err := s.ReplaceReminders(ctx, a.ID, []models.Reminder{reminderAt(1, models.RecurrenceNone)})
	require.NoError(t, err)

	ofB, err := s.ReplaceReminders(ctx, b.ID, ofA)
	require.NoError(t, err)
	assert.NotEqual(t, ofA[0].ID, ofB[0].ID)
	assert.Equal(t, b.ID, ofB[0].EntryID)

	stillA, err := s.GetRemindersForEntry(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, stillA, 1)
}

func TestReplaceReminders_RejectsMissingFireTime(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &models.Entry{Title: "x"}
	require.NoError(t, s.CreateEntry(ctx, e))

	_, err := s.ReplaceReminders(ctx, e.ID, []models.Reminder{{Active: true}})
	require.ErrorIs(t, err, common.ErrInvalidReminder)
}

func TestDeleteEntry_RemovesReminders(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &models.Entry{Title: "trip"}
	require.NoError(t, s.CreateEntry(ctx, e))
	_, err := s.ReplaceReminders(ctx, e.ID, []models.Reminder{reminderAt(1, models.RecurrenceNone), reminderAt(2, models.RecurrenceNone)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntry(ctx, e.ID))

	rs, err := s.GetRemindersForEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, rs)
	require.ErrorIs(t, s.DeleteEntry(ctx, e.ID), common.ErrNotFound)
}

func TestReminderCRUD(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &models.Entry{Title: "x"}
	require.NoError(t, s.CreateEntry(ctx, e))

	r := reminderAt(5, "")
	r.EntryID = e.ID
	require.NoError(t, s.CreateReminder(ctx, &r))
	assert.Equal(t, models.RecurrenceNone, r.Recurrence)

	r.Active = false
	require.NoError(t, s.UpdateReminder(ctx, &r))

	active, err := s.GetActiveReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.ErrorIs(t, s.UpdateReminder(ctx, &models.Reminder{FireAt: fixedNow}), common.ErrInvalidReminder)

	n, err := s.DeleteRemindersForEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetStatistics(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := &models.Entry{Title: "x"}
	require.NoError(t, s.CreateEntry(ctx, e))
	require.NoError(t, s.CreateEntry(ctx, &models.Entry{Title: "y"}))

	inactive := reminderAt(2, models.RecurrenceNone)
	inactive.Active = false
	_, err := s.ReplaceReminders(ctx, e.ID, []models.Reminder{reminderAt(1, models.RecurrenceMonthly), inactive})
	require.NoError(t, err)

	stats, err := s.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		models.StatEntries:            2,
		models.StatReminders:          2,
		models.StatActiveReminders:    1,
		models.StatRecurringReminders: 1,
	}, stats)
}
