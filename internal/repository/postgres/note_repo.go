package postgres

import (
	"context"
	"errors"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/and161185/notekeeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// NoteRepo implements NoteRepository using PostgreSQL.
type NoteRepo struct{ db *DB }

// NewNoteRepo constructs a note repository.
func NewNoteRepo(db *DB) *NoteRepo { return &NoteRepo{db: db} }

const noteCols = `id, user_id, title, content, shared, ver, created_at, updated_at`

func scanNote(row pgx.Row) (*model.Note, error) {
	var n model.Note
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.Shared, &n.Version, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// ListByUser returns the user's notes in insertion order.
func (r *NoteRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Note, error) {
	const q = `SELECT ` + noteCols + ` FROM notes WHERE user_id=$1 ORDER BY seq ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// Get returns a note owned by userID.
func (r *NoteRepo) Get(ctx context.Context, userID, id uuid.UUID) (*model.Note, error) {
	const q = `SELECT ` + noteCols + ` FROM notes WHERE id=$1 AND user_id=$2`
	return scanNote(r.db.Pool.QueryRow(ctx, q, id, userID))
}

// Create inserts a note row.
func (r *NoteRepo) Create(ctx context.Context, n *model.Note) error {
	const q = `
INSERT INTO notes (id, user_id, title, content, shared, ver, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Pool.Exec(ctx, q, n.ID, n.UserID, n.Title, n.Content, n.Shared, n.Version, n.CreatedAt, n.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Update locks the owned row, applies fn and writes the result in one transaction.
func (r *NoteRepo) Update(ctx context.Context, userID, id uuid.UUID, fn repository.UpdateFunc) (*model.Note, error) {
	const sel = `SELECT ` + noteCols + ` FROM notes WHERE id=$1 AND user_id=$2 FOR UPDATE`
	const upd = `
UPDATE notes SET title=$3, content=$4, shared=$5, ver=$6, updated_at=$7
WHERE id=$1 AND user_id=$2`

	var out *model.Note
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		n, err := scanNote(tx.QueryRow(ctx, sel, id, userID))
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upd, id, userID, n.Title, n.Content, n.Shared, n.Version, n.UpdatedAt); err != nil {
			return err
		}
		out = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the owned note.
func (r *NoteRepo) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	const q = `DELETE FROM notes WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetShared returns a shared note by id regardless of owner.
func (r *NoteRepo) GetShared(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	const q = `SELECT ` + noteCols + ` FROM notes WHERE id=$1 AND shared`
	return scanNote(r.db.Pool.QueryRow(ctx, q, id))
}
