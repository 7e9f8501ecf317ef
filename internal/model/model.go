// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// User represents an account. The password is never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique, compared exactly
	PwdHash   []byte    // Argon2id(password, Salt)
	Salt      []byte    // per-user salt
	CreatedAt time.Time
}

// Note is a single Markdown note owned by one user.
type Note struct {
	ID        uuid.UUID
	UserID    uuid.UUID // FK -> users.id
	Title     string
	Content   string // Markdown source
	Shared    bool   // readable by anyone through the share path
	Version   int64  // starts at 1, bumped by every mutation
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotePatch is a partial update. Nil fields are left unchanged.
type NotePatch struct {
	Title   *string
	Content *string
	Shared  *bool

	// BaseVersion, when set, must equal the stored version or the update
	// fails with errs.ErrVersionConflict.
	BaseVersion *int64
}

// Apply merges supplied fields into n. It does not touch version or timestamps.
func (p NotePatch) Apply(n *Note) {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Shared != nil {
		n.Shared = *p.Shared
	}
}

// Session is an issued, revocable sign-in.
type Session struct {
	ID        uuid.UUID // jti of the token
	UserID    uuid.UUID
	Token     string // signed HS256 JWT
	ExpiresAt time.Time
}
