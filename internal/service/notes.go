package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/and161185/notekeeper/internal/repository"
)

// NoteService defines user-scoped note operations. A uuid.Nil user means "no session".
type NoteService interface {
	// List returns the user's notes in storage order; empty without a session.
	List(ctx context.Context, userID uuid.UUID) ([]model.Note, error)
	// Create stores a new unshared note.
	Create(ctx context.Context, userID uuid.UUID, title, content string) (*model.Note, error)
	// Update merges the supplied fields into an owned note.
	Update(ctx context.Context, userID, id uuid.UUID, patch model.NotePatch) (*model.Note, error)
	// Delete removes an owned note; a foreign or unknown id is a silent no-op.
	Delete(ctx context.Context, userID, id uuid.UUID) error
	// ToggleSharing flips the shared flag of an owned note.
	ToggleSharing(ctx context.Context, userID, id uuid.UUID) (*model.Note, error)
	// SetSharing sets the shared flag of an owned note.
	SetSharing(ctx context.Context, userID, id uuid.UUID, shared bool) (*model.Note, error)
	// GetShared returns a shared note to anyone.
	GetShared(ctx context.Context, id uuid.UUID) (*model.Note, error)
	// ShareURL returns the public link of a note.
	ShareURL(id uuid.UUID) string
}

type NoteServiceImpl struct {
	repo   repository.NoteRepository
	origin string
	now    func() time.Time
}

// NewNoteService constructs NoteService. origin is the public base URL used in share links.
func NewNoteService(repo repository.NoteRepository, origin string) *NoteServiceImpl {
	return &NoteServiceImpl{repo: repo, origin: strings.TrimRight(origin, "/"), now: time.Now}
}

// List returns the notes owned by userID.
func (s *NoteServiceImpl) List(ctx context.Context, userID uuid.UUID) ([]model.Note, error) {
	if userID == uuid.Nil {
		return []model.Note{}, nil
	}
	return s.repo.ListByUser(ctx, userID)
}

// Create appends a new note with Shared=false and Version=1.
func (s *NoteServiceImpl) Create(ctx context.Context, userID uuid.UUID, title, content string) (*model.Note, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthenticated
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	n := &model.Note{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Content:   content,
		Shared:    false,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Update applies patch atomically. With patch.BaseVersion set, a stale version
// yields errs.ErrVersionConflict and nothing is written.
func (s *NoteServiceImpl) Update(ctx context.Context, userID, id uuid.UUID, patch model.NotePatch) (*model.Note, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthenticated
	}
	return s.repo.Update(ctx, userID, id, func(n *model.Note) error {
		if patch.BaseVersion != nil && *patch.BaseVersion != n.Version {
			return fmt.Errorf("%w: have %d, base %d", errs.ErrVersionConflict, n.Version, *patch.BaseVersion)
		}
		patch.Apply(n)
		s.touch(n)
		return nil
	})
}

// Delete removes the note if the user owns it.
func (s *NoteServiceImpl) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil {
		return errs.ErrUnauthenticated
	}
	_, err := s.repo.Delete(ctx, userID, id)
	return err
}

// ToggleSharing flips Shared.
func (s *NoteServiceImpl) ToggleSharing(ctx context.Context, userID, id uuid.UUID) (*model.Note, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthenticated
	}
	return s.repo.Update(ctx, userID, id, func(n *model.Note) error {
		n.Shared = !n.Shared
		s.touch(n)
		return nil
	})
}

// SetSharing sets Shared to the given value.
func (s *NoteServiceImpl) SetSharing(ctx context.Context, userID, id uuid.UUID, shared bool) (*model.Note, error) {
	return s.Update(ctx, userID, id, model.NotePatch{Shared: &shared})
}

// GetShared returns the note only while it is shared. No session is required.
func (s *NoteServiceImpl) GetShared(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	if id == uuid.Nil {
		return nil, errs.ErrNotFound
	}
	n, err := s.repo.GetShared(ctx, id)
	if err != nil {
		return nil, err
	}
	if !n.Shared {
		return nil, errs.ErrNotFound
	}
	return n, nil
}

// ShareURL builds <origin>/share/<id>.
func (s *NoteServiceImpl) ShareURL(id uuid.UUID) string {
	return s.origin + "/share/" + id.String()
}

func (s *NoteServiceImpl) touch(n *model.Note) {
	n.Version++
	n.UpdatedAt = s.now().UTC()
}
