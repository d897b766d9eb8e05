package export

import "context"

// Repository defines the interface for export record persistence.
type Repository interface {
	// Create stores a new record.
	Create(ctx context.Context, record *Record) error

	// Update overwrites an existing record.
	// Returns ErrRecordNotFound if the record doesn't exist.
	Update(ctx context.Context, record *Record) error

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// List retrieves the most recent records, newest first.
	List(ctx context.Context, limit int) ([]*Record, error)
}
