package reminders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophdiary/internal/common"
	"github.com/dmitrijs2005/gophdiary/internal/dbx"
	"github.com/dmitrijs2005/gophdiary/internal/models"
)

const selectColumns = `SELECT id, entry_id, fire_at, active, recurrence, sound FROM reminders`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, rem *models.Reminder) error {
	var (
		res sql.Result
		err error
	)
	if rem.ID != 0 {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO reminders (id, entry_id, fire_at, active, recurrence, sound) VALUES (?, ?, ?, ?, ?, ?)`,
			rem.ID, rem.EntryID, rem.WallClock(), rem.Active, string(recurrenceOf(rem)), rem.Sound)
	} else {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO reminders (entry_id, fire_at, active, recurrence, sound) VALUES (?, ?, ?, ?, ?)`,
			rem.EntryID, rem.WallClock(), rem.Active, string(recurrenceOf(rem)), rem.Sound)
	}
	if err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}

	if rem.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get reminder id: %w", err)
		}
		rem.ID = id
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rem *models.Reminder) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET fire_at = ?, active = ?, recurrence = ?, sound = ? WHERE id = ?`,
		rem.WallClock(), rem.Active, string(recurrenceOf(rem)), rem.Sound, rem.ID)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Reminder, error) {
	rem, err := scanReminder(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return rem, nil
}

func (r *SQLiteRepository) GetByEntryID(ctx context.Context, entryID string) ([]models.Reminder, error) {
	return r.list(ctx, selectColumns+` WHERE entry_id = ? ORDER BY id`, entryID)
}

func (r *SQLiteRepository) GetAllActive(ctx context.Context) ([]models.Reminder, error) {
	return r.list(ctx, selectColumns+` WHERE active = 1 ORDER BY id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select reminders: %w", err)
	}
	defer rows.Close()

	var result []models.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return expectOne(res)
}

func (r *SQLiteRepository) DeleteByEntryID(ctx context.Context, entryID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE entry_id = ?`, entryID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reminders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN active = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN recurrence <> 'none' THEN 1 ELSE 0 END), 0)
		FROM reminders`).Scan(&c.Total, &c.Active, &c.Recurring)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count reminders: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReminder(s scanner) (*models.Reminder, error) {
	var (
		rem        models.Reminder
		fireAt     string
		recurrence string
	)
	if err := s.Scan(&rem.ID, &rem.EntryID, &fireAt, &rem.Active, &recurrence, &rem.Sound); err != nil {
		return nil, err
	}

	t, err := models.ParseWallClock(fireAt)
	if err != nil {
		return nil, fmt.Errorf("parsing fire_at of reminder %d: %w", rem.ID, err)
	}
	rem.FireAt = t
	// Unknown rules are kept so the scheduler can report them.
	rem.Recurrence, _ = models.ParseRecurrence(recurrence)
	return &rem, nil
}

func recurrenceOf(rem *models.Reminder) models.Recurrence {
	if rem.Recurrence == "" {
		return models.RecurrenceNone
	}
	return rem.Recurrence
}

func expectOne(res sql.Result) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}
