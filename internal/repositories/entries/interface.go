package entries

import (
	"context"

	"github.com/dmitrijs2005/gophdiary/internal/models"
)

// Repository describes CRUD operations for Entry objects.
type Repository interface {
	// Create inserts a new entry. The caller assigns the id.
	Create(ctx context.Context, entry *models.Entry) error

	// Update overwrites title, content, event date and updated_at.
	// Returns common.ErrNotFound when no entry has the id.
	Update(ctx context.Context, entry *models.Entry) error

	// GetByID returns an entry or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Entry, error)

	// GetAll returns every entry, most recently updated first.
	GetAll(ctx context.Context) ([]models.Entry, error)

	// DeleteByID removes an entry. Returns common.ErrNotFound when absent.
	DeleteByID(ctx context.Context, id string) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
}
