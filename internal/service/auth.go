// Package service contains application services for accounts, sessions and notes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/notekeeper/internal/crypto"
	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/limiter"
	"github.com/and161185/notekeeper/internal/model"
	"github.com/and161185/notekeeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// AuthService defines sign-up, sign-in and session operations.
type AuthService interface {
	// SignUp creates a user and opens a session for it.
	SignUp(ctx context.Context, email, password string) (model.Session, model.User, error)
	// SignIn applies rate limiting, checks the password and opens a session.
	SignIn(ctx context.Context, email, password, ip string) (model.Session, model.User, error)
	// SignOut revokes the session behind token.
	SignOut(ctx context.Context, token string) error
	// Authenticate resolves a bearer token to a live session.
	Authenticate(ctx context.Context, token string) (model.Session, error)
}

type AuthServiceImpl struct {
	users    repository.UserRepository
	sessions SessionStore
	signKey  []byte
	ttl      time.Duration
	lim      limiter.Limiter
	now      func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	users repository.UserRepository, sessions SessionStore, signKey []byte, ttl time.Duration, lim limiter.Limiter,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:    users,
		sessions: sessions,
		signKey:  signKey,
		ttl:      ttl,
		lim:      lim,
		now:      time.Now,
	}
}

func validateCredentials(email, password string) error {
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", errs.ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: malformed email", errs.ErrValidation)
	}
	return nil
}

// SignUp creates a new user record with a salted password hash.
func (s *AuthServiceImpl) SignUp(ctx context.Context, email, password string) (model.Session, model.User, error) {
	if err := validateCredentials(email, password); err != nil {
		return model.Session{}, model.User{}, err
	}
	// cheap pre-check before paying for argon2; Create still enforces uniqueness
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return model.Session{}, model.User{}, errs.ErrAlreadyExists
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.Session{}, model.User{}, err
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	hash, salt, err := pkgcrypto.NewPasswordHash(password)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	u := model.User{
		ID:        uid,
		Email:     email,
		PwdHash:   hash,
		Salt:      salt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, &u); err != nil {
		return model.Session{}, model.User{}, err
	}

	sess, err := s.openSession(ctx, u.ID)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	return sess, u, nil
}

// SignIn authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) SignIn(ctx context.Context, email, password, ip string) (model.Session, model.User, error) {
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	if !allowed {
		return model.Session{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Session{}, model.User{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.Salt, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Session{}, model.User{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.Session{}, model.User{}, errs.ErrUnauthorized
	}

	// best-effort reset
	_ = s.lim.Success(ctx, email, ipHash)

	sess, err := s.openSession(ctx, u.ID)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	return sess, *u, nil
}

// SignOut revokes the session. Signing out twice is not an error.
func (s *AuthServiceImpl) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	sid, err := uuid.FromString(claims.ID)
	if err != nil {
		return fmt.Errorf("%w: bad session id", errs.ErrUnauthenticated)
	}
	return s.sessions.Delete(ctx, sid)
}

// Authenticate verifies the token and checks the session has not been revoked.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (model.Session, error) {
	claims, err := s.parse(token)
	if err != nil {
		return model.Session{}, err
	}
	uid, err := uuid.FromString(claims.Subject)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: bad subject", errs.ErrUnauthenticated)
	}
	sid, err := uuid.FromString(claims.ID)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: bad session id", errs.ErrUnauthenticated)
	}

	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Session{}, fmt.Errorf("%w: session revoked", errs.ErrUnauthenticated)
		}
		return model.Session{}, err
	}
	if sess.UserID != uid {
		return model.Session{}, fmt.Errorf("%w: session subject mismatch", errs.ErrUnauthenticated)
	}
	sess.Token = token
	return sess, nil
}

// openSession issues a signed HS256 JWT and registers its session id.
func (s *AuthServiceImpl) openSession(ctx context.Context, userID uuid.UUID) (model.Session, error) {
	sid, err := uuid.NewV4()
	if err != nil {
		return model.Session{}, err
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        sid.String(),
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Session{}, err
	}
	sess := model.Session{ID: sid, UserID: userID, Token: signed, ExpiresAt: exp}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

func (s *AuthServiceImpl) parse(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no token", errs.ErrUnauthenticated)
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", errs.ErrUnauthenticated)
	}
	return &claims, nil
}
