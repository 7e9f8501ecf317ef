// Package convert maps domain models to and from the JSON wire format.
package convert

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// --- server -> client ---

// Note is the wire form of a note. Field names match the stored JSON records.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Shared    bool      `json:"shared"`
	Version   int64     `json:"version"`
}

// User is the public view of an account; hashes never leave the server.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is returned by sign-up and sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// SharedNote pairs a note with its public link.
type SharedNote struct {
	Note     Note   `json:"note"`
	ShareURL string `json:"share_url"`
}

// RenderedNote is the sanitized HTML view of a shared note.
type RenderedNote struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// ToNote converts domain Note to its wire form.
func ToNote(n model.Note) Note {
	return Note{
		ID:        n.ID.String(),
		Title:     n.Title,
		Content:   n.Content,
		UserID:    n.UserID.String(),
		CreatedAt: n.CreatedAt.UTC(),
		UpdatedAt: n.UpdatedAt.UTC(),
		Shared:    n.Shared,
		Version:   n.Version,
	}
}

// ToNotes converts a slice of notes; the result is never nil so it encodes as [].
func ToNotes(ns []model.Note) []Note {
	out := make([]Note, 0, len(ns))
	for _, n := range ns {
		out = append(out, ToNote(n))
	}
	return out
}

// ToUser converts domain User, dropping credentials.
func ToUser(u model.User) User {
	return User{ID: u.ID.String(), Email: u.Email, CreatedAt: u.CreatedAt.UTC()}
}

// ToSession converts a session and its user.
func ToSession(s model.Session, u model.User) Session {
	return Session{Token: s.Token, ExpiresAt: s.ExpiresAt.UTC(), User: ToUser(u)}
}

// --- client -> server ---

// Credentials is the sign-up / sign-in body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateNote is the body of POST /api/notes.
type CreateNote struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	UserID  string `json:"userId,omitempty"`
}

// UpdateNote is the body of PUT /api/notes. Absent fields are left unchanged.
type UpdateNote struct {
	ID      string  `json:"id"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Version *int64  `json:"version,omitempty"`
}

// RenderRequest is the body of POST /api/render.
type RenderRequest struct {
	Content string `json:"content"`
}

// ParseID parses a note or user id, reporting errs.ErrValidation on bad input.
func ParseID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: id is required", errs.ErrValidation)
	}
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id", errs.ErrValidation)
	}
	return id, nil
}

// FromUpdateNote converts the update body to a note id and patch.
func FromUpdateNote(in UpdateNote) (uuid.UUID, model.NotePatch, error) {
	id, err := ParseID(in.ID)
	if err != nil {
		return uuid.Nil, model.NotePatch{}, err
	}
	return id, model.NotePatch{Title: in.Title, Content: in.Content, BaseVersion: in.Version}, nil
}

// ParseSharedFlag extracts the "shared" member of body. Anything other than a
// JSON boolean is a validation error; strings such as "true" are rejected.
func ParseSharedFlag(body []byte) (bool, error) {
	var in struct {
		Shared json.RawMessage `json:"shared"`
	}
	if err := json.Unmarshal(body, &in); err != nil {
		return false, fmt.Errorf("%w: malformed body", errs.ErrValidation)
	}
	switch strings.TrimSpace(string(in.Shared)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: shared must be a boolean", errs.ErrValidation)
	}
}
