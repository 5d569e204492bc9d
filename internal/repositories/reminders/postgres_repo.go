package reminders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophdiary/internal/common"
	"github.com/dmitrijs2005/gophdiary/internal/dbx"
	"github.com/dmitrijs2005/gophdiary/internal/models"
)

// PostgresRepository implements Repository on PostgreSQL (pgx stdlib driver).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rem *models.Reminder) error {
	var row *sql.Row
	if rem.ID != 0 {
		row = r.db.QueryRowContext(ctx,
			`INSERT INTO reminders (id, entry_id, fire_at, active, recurrence, sound)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			rem.ID, rem.EntryID, wallClock(rem), rem.Active, string(recurrenceOf(rem)), rem.Sound)
	} else {
		row = r.db.QueryRowContext(ctx,
			`INSERT INTO reminders (entry_id, fire_at, active, recurrence, sound)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			rem.EntryID, wallClock(rem), rem.Active, string(recurrenceOf(rem)), rem.Sound)
	}

	if err := row.Scan(&rem.ID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rem *models.Reminder) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET fire_at = $1, active = $2, recurrence = $3, sound = $4 WHERE id = $5`,
		wallClock(rem), rem.Active, string(recurrenceOf(rem)), rem.Sound, rem.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Reminder, error) {
	rem, err := scanPostgresReminder(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rem, nil
}

func (r *PostgresRepository) GetByEntryID(ctx context.Context, entryID string) ([]models.Reminder, error) {
	return r.list(ctx, selectColumns+` WHERE entry_id = $1 ORDER BY id`, entryID)
}

func (r *PostgresRepository) GetAllActive(ctx context.Context) ([]models.Reminder, error) {
	return r.list(ctx, selectColumns+` WHERE active ORDER BY id`)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]models.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Reminder
	for rows.Next() {
		rem, err := scanPostgresReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, *rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) DeleteByEntryID(ctx context.Context, entryID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE entry_id = $1`, entryID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE active),
		       COUNT(*) FILTER (WHERE recurrence <> 'none')
		FROM reminders`).Scan(&c.Total, &c.Active, &c.Recurring)
	if err != nil {
		return Counts{}, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func scanPostgresReminder(s scanner) (*models.Reminder, error) {
	var (
		rem        models.Reminder
		recurrence string
	)
	if err := s.Scan(&rem.ID, &rem.EntryID, &rem.FireAt, &rem.Active, &recurrence, &rem.Sound); err != nil {
		return nil, err
	}
	rem.FireAt = rem.At(time.UTC)
	rem.Recurrence, _ = models.ParseRecurrence(recurrence)
	return &rem, nil
}

// wallClock drops the location so TIMESTAMP columns receive the wall time.
func wallClock(rem *models.Reminder) time.Time {
	return rem.At(time.UTC)
}
