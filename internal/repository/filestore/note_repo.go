package filestore

import (
	"context"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/and161185/notekeeper/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// NoteRepo implements NoteRepository over the JSON files.
type NoteRepo struct{ s *Store }

func toModel(rec noteRecord) model.Note {
	return model.Note{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Title:     rec.Title,
		Content:   rec.Content,
		Shared:    rec.Shared,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func toRecord(n model.Note) noteRecord {
	return noteRecord{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		UserID:    n.UserID,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		Shared:    n.Shared,
		Version:   n.Version,
	}
}

// ListByUser returns the user's notes in file order.
func (r *NoteRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Note, error) {
	out := []model.Note{}
	err := r.s.view(ctx, func(c *collections) error {
		for _, rec := range c.notes {
			if rec.UserID == userID {
				out = append(out, toModel(rec))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a note owned by userID.
func (r *NoteRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Note, error) {
	var out *model.Note
	err := r.s.view(ctx, func(c *collections) error {
		i := indexOwned(c.notes, userID, id)
		if i < 0 {
			return errs.ErrNotFound
		}
		n := toModel(c.notes[i])
		out = &n
		return nil
	})
	return out, err
}

// Create appends a note.
func (r *NoteRepo) Create(ctx context.Context, n *model.Note) error {
	return r.s.update(ctx, func(c *collections) error {
		for _, rec := range c.notes {
			if rec.ID == n.ID {
				return errs.ErrAlreadyExists
			}
		}
		c.notes = append(c.notes, toRecord(*n))
		return nil
	})
}

// Update applies fn to the owned note and rewrites the files.
func (r *NoteRepo) Update(ctx context.Context, userID, id uuid.UUID, fn repository.UpdateFunc) (*model.Note, error) {
	var out *model.Note
	err := r.s.update(ctx, func(c *collections) error {
		i := indexOwned(c.notes, userID, id)
		if i < 0 {
			return errs.ErrNotFound
		}
		n := toModel(c.notes[i])
		if err := fn(&n); err != nil {
			return err
		}
		c.notes[i] = toRecord(n)
		out = &n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the owned note. The files are rewritten even when nothing matched.
func (r *NoteRepo) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	removed := false
	err := r.s.update(ctx, func(c *collections) error {
		kept := c.notes[:0]
		for _, rec := range c.notes {
			if rec.ID == id && rec.UserID == userID {
				removed = true
				continue
			}
			kept = append(kept, rec)
		}
		c.notes = kept
		return nil
	})
	return removed, err
}

// GetShared returns the note with id if it is shared, whoever owns it.
func (r *NoteRepo) GetShared(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	var out *model.Note
	err := r.s.view(ctx, func(c *collections) error {
		for _, rec := range c.notes {
			if rec.ID == id && rec.Shared {
				n := toModel(rec)
				out = &n
				return nil
			}
		}
		return errs.ErrNotFound
	})
	return out, err
}

func indexOwned(notes []noteRecord, userID, id uuid.UUID) int {
	for i, rec := range notes {
		if rec.ID == id && rec.UserID == userID {
			return i
		}
	}
	return -1
}
