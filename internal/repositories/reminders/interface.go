package reminders

import (
	"context"

	"github.com/dmitrijs2005/gophdiary/internal/models"
)

// Counts summarises the reminders table.
type Counts struct {
	Total     int
	Active    int
	Recurring int
}

// Repository describes persistence operations for reminders.
type Repository interface {
	// Create inserts r and stores the assigned id back into r.ID. A non-zero
	// r.ID is inserted as is.
	Create(ctx context.Context, r *models.Reminder) error

	// Update overwrites every column except the id and the owning entry.
	// Returns common.ErrNotFound when no reminder has the id.
	Update(ctx context.Context, r *models.Reminder) error

	GetByID(ctx context.Context, id int64) (*models.Reminder, error)

	// GetByEntryID returns the entry's reminders ordered by id.
	GetByEntryID(ctx context.Context, entryID string) ([]models.Reminder, error)

	DeleteByID(ctx context.Context, id int64) error

	// DeleteByEntryID removes every reminder of the entry and returns how many
	// rows were deleted.
	DeleteByEntryID(ctx context.Context, entryID string) (int64, error)

	// GetAllActive returns active reminders of all entries ordered by id.
	GetAllActive(ctx context.Context) ([]models.Reminder, error)

	Counts(ctx context.Context) (Counts, error)
}
