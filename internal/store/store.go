// Package store is the entry/reminder persistence facade the synchronizer
// works against. It hides the driver-specific repositories behind one type
// and runs multi-row changes in a single transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/common"
	"github.com/dmitrijs2005/gophdiary/internal/dbx"
	"github.com/dmitrijs2005/gophdiary/internal/models"
	"github.com/dmitrijs2005/gophdiary/internal/repositories/repomanager"
	"github.com/google/uuid"
)

type Store struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New wraps an open, migrated database.
func New(db *sql.DB, repos repomanager.RepositoryManager, opts ...Option) *Store {
	s := &Store{db: db, repos: repos, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open connects to the database selected by driver, applies migrations and
// returns a ready Store. The caller owns Close.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	repos, err := repomanager.New(driver)
	if err != nil {
		return nil, err
	}

	db, err := dbx.Open(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return New(db, repos, opts...), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) GetAllEntries(ctx context.Context) ([]models.Entry, error) {
	return s.repos.Entries(s.db).GetAll(ctx)
}

func (s *Store) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	return s.repos.Entries(s.db).GetByID(ctx, id)
}

// CreateEntry inserts e, assigning a UUID when e.ID is empty and filling
// missing timestamps.
func (s *Store) CreateEntry(ctx context.Context, e *models.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	return s.repos.Entries(s.db).Create(ctx, e)
}

// UpdateEntry overwrites e and bumps its UpdatedAt.
func (s *Store) UpdateEntry(ctx context.Context, e *models.Entry) error {
	e.UpdatedAt = s.now().UTC()
	return s.repos.Entries(s.db).Update(ctx, e)
}

// SaveEntry creates e when it has no id or its id is unknown, and updates it
// otherwise. It reports whether a new row was created.
func (s *Store) SaveEntry(ctx context.Context, e *models.Entry) (bool, error) {
	if e.ID == "" {
		return true, s.CreateEntry(ctx, e)
	}

	existing, err := s.GetEntry(ctx, e.ID)
	if errors.Is(err, common.ErrNotFound) {
		return true, s.CreateEntry(ctx, e)
	}
	if err != nil {
		return false, err
	}

	e.CreatedAt = existing.CreatedAt
	return false, s.UpdateEntry(ctx, e)
}

// DeleteEntry removes the entry together with its reminders.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Reminders(tx).DeleteByEntryID(ctx, id); err != nil {
			return err
		}
		return s.repos.Entries(tx).DeleteByID(ctx, id)
	})
}

func (s *Store) CreateReminder(ctx context.Context, r *models.Reminder) error {
	if err := validateReminder(r); err != nil {
		return err
	}
	return s.repos.Reminders(s.db).Create(ctx, r)
}

func (s *Store) UpdateReminder(ctx context.Context, r *models.Reminder) error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: reminder has no id", common.ErrInvalidReminder)
	}
	if err := validateReminder(r); err != nil {
		return err
	}
	return s.repos.Reminders(s.db).Update(ctx, r)
}

func (s *Store) GetReminder(ctx context.Context, id int64) (*models.Reminder, error) {
	return s.repos.Reminders(s.db).GetByID(ctx, id)
}

func (s *Store) GetRemindersForEntry(ctx context.Context, entryID string) ([]models.Reminder, error) {
	return s.repos.Reminders(s.db).GetByEntryID(ctx, entryID)
}

func (s *Store) GetActiveReminders(ctx context.Context) ([]models.Reminder, error) {
	return s.repos.Reminders(s.db).GetAllActive(ctx)
}

func (s *Store) DeleteRemindersForEntry(ctx context.Context, entryID string) (int64, error) {
	return s.repos.Reminders(s.db).DeleteByEntryID(ctx, entryID)
}

// ReplaceReminders makes desired the complete reminder set of the entry in
// one transaction. Reminders whose id the entry already owns are updated in
// place and keep their id; any other reminder is inserted with a fresh id;
// previous reminders missing from desired are deleted. The persisted set is
// returned in the order of desired.
func (s *Store) ReplaceReminders(ctx context.Context, entryID string, desired []models.Reminder) ([]models.Reminder, error) {
	for i := range desired {
		if err := validateReminder(&desired[i]); err != nil {
			return nil, fmt.Errorf("reminder %d: %w", i, err)
		}
	}

	return dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) ([]models.Reminder, error) {
		repo := s.repos.Reminders(tx)

		previous, err := repo.GetByEntryID(ctx, entryID)
		if err != nil {
			return nil, err
		}
		owned := make(map[int64]bool, len(previous))
		for _, p := range previous {
			owned[p.ID] = true
		}

		saved := make([]models.Reminder, 0, len(desired))
		kept := make(map[int64]bool, len(desired))
		for _, d := range desired {
			d.EntryID = entryID
			if d.ID > 0 && owned[d.ID] && !kept[d.ID] {
				if err := repo.Update(ctx, &d); err != nil {
					return nil, err
				}
			} else {
				d.ID = 0
				if err := repo.Create(ctx, &d); err != nil {
					return nil, err
				}
			}
			kept[d.ID] = true
			saved = append(saved, d)
		}

		for _, p := range previous {
			if kept[p.ID] {
				continue
			}
			if err := repo.DeleteByID(ctx, p.ID); err != nil {
				return nil, err
			}
		}
		return saved, nil
	})
}

// GetStatistics reports entry and reminder counts keyed by the models.Stat*
// constants.
func (s *Store) GetStatistics(ctx context.Context) (map[string]int, error) {
	n, err := s.repos.Entries(s.db).Count(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.repos.Reminders(s.db).Counts(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		models.StatEntries:            n,
		models.StatReminders:          c.Total,
		models.StatActiveReminders:    c.Active,
		models.StatRecurringReminders: c.Recurring,
	}, nil
}

// validateReminder checks what the store needs to persist r. Unknown
// recurrence rules are stored as is and rejected by the scheduler.
func validateReminder(r *models.Reminder) error {
	if r.FireAt.IsZero() {
		return fmt.Errorf("%w: fire time is required", common.ErrInvalidReminder)
	}
	if r.Recurrence == "" {
		r.Recurrence = models.RecurrenceNone
	}
	return nil
}
