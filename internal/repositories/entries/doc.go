// Package entries provides the persistence layer for diary entries.
//
// # Overview
//
// The package defines a Repository interface for CRUD operations on
// models.Entry. Two implementations exist: SQLiteRepository for the embedded
// on-device store and PostgresRepository for a server-hosted one. Both work
// over a dbx.DBTX, so they can be bound either to a *sql.DB or to a *sql.Tx.
//
// # Data Model
//
// Entries are hard-deleted; their reminders disappear with them through the
// reminders.entry_id foreign key (ON DELETE CASCADE). Timestamps are stored in
// UTC.
//
// Typical Usage
//
//	repo := entries.NewSQLiteRepository(db)
//	_ = repo.Create(ctx, entry)
//	list, _ := repo.GetAll(ctx)
//	one, _ := repo.GetByID(ctx, id)
//	_ = repo.DeleteByID(ctx, id)
package entries
