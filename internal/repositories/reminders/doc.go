// Package reminders persists the logical reminders attached to diary entries.
//
// Reminder ids are assigned by the database (AUTOINCREMENT on SQLite, an
// identity column on PostgreSQL) and are never reused, which keeps the job
// identifiers derived from them stable. Create honours a non-zero id so that a
// reminder re-saved with its entry keeps the id it already had.
//
// Fire times are wall-clock values without a zone: SQLite stores them as
// "2006-01-02T15:04:05" text, PostgreSQL as TIMESTAMP WITHOUT TIME ZONE.
package reminders
