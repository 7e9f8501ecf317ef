package filestore

import (
	"context"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// UserRepo implements UserRepository over the JSON files.
type UserRepo struct{ s *Store }

// Create appends a new user unless the email is already present.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	return r.s.update(ctx, func(c *collections) error {
		for _, rec := range c.users {
			if rec.Email == u.Email {
				return errs.ErrAlreadyExists
			}
		}
		c.users = append(c.users, userRecord{
			ID:        u.ID,
			Email:     u.Email,
			PwdHash:   u.PwdHash,
			Salt:      u.Salt,
			CreatedAt: u.CreatedAt,
		})
		return nil
	})
}

// GetByID finds a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.find(ctx, func(rec userRecord) bool { return rec.ID == id })
}

// GetByEmail finds a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.find(ctx, func(rec userRecord) bool { return rec.Email == email })
}

func (r *UserRepo) find(ctx context.Context, match func(userRecord) bool) (*model.User, error) {
	var out *model.User
	err := r.s.view(ctx, func(c *collections) error {
		for _, rec := range c.users {
			if match(rec) {
				out = &model.User{
					ID:        rec.ID,
					Email:     rec.Email,
					PwdHash:   rec.PwdHash,
					Salt:      rec.Salt,
					CreatedAt: rec.CreatedAt,
				}
				return nil
			}
		}
		return errs.ErrNotFound
	})
	return out, err
}
