package repository

import (
	"context"

	"github.com/and161185/notekeeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UpdateFunc mutates a loaded note in place. Returning an error aborts the update.
type UpdateFunc func(n *model.Note) error

// NoteRepository provides user-scoped access to notes.
type NoteRepository interface {
	// ListByUser returns the user's notes in storage order.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Note, error)

	// Get returns a note owned by userID.
	Get(ctx context.Context, userID, id uuid.UUID) (*model.Note, error)

	// Create inserts a new note.
	Create(ctx context.Context, n *model.Note) error

	// Update loads the note owned by userID, applies fn and persists the result
	// as one atomic step. Version and UpdatedAt are maintained by the caller's fn.
	Update(ctx context.Context, userID, id uuid.UUID, fn UpdateFunc) (*model.Note, error)

	// Delete removes a note owned by userID and reports whether anything was removed.
	Delete(ctx context.Context, userID, id uuid.UUID) (bool, error)

	// GetShared returns a note by id regardless of owner, only if it is shared.
	GetShared(ctx context.Context, id uuid.UUID) (*model.Note, error)
}
