package service

import (
	"context"
	"time"

	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"
	"p2p-desk/pkg/apperror"
)

// Session is one desk session: up to three backend tokens, one per role,
// kept in the token store under the session id.
//
// Session implements ports.Credentials and only offers read and clear.
// Tokens are written by SessionService login flows through the unexported
// save method.
type Session struct {
	id    string
	store ports.TokenStore
}

// NewSession binds a session id to the token store.
func NewSession(id string, store ports.TokenStore) *Session {
	return &Session{id: id, store: store}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Token returns the backend token of role, or "" if that role is signed out.
func (s *Session) Token(ctx context.Context, role domain.Role) (string, error) {
	token, err := s.store.Load(ctx, s.id, role)
	if err != nil {
		return "", apperror.ErrStorage(err)
	}
	return token, nil
}

// Clear forgets the token of role. Other roles are untouched.
func (s *Session) Clear(ctx context.Context, role domain.Role) error {
	if err := s.store.Delete(ctx, s.id, role); err != nil {
		return apperror.ErrStorage(err)
	}
	return nil
}

// HasRole reports whether role currently holds a token.
func (s *Session) HasRole(ctx context.Context, role domain.Role) (bool, error) {
	token, err := s.Token(ctx, role)
	return token != "", err
}

// Roles lists the roles currently signed in.
func (s *Session) Roles(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	for _, role := range domain.Roles {
		ok, err := s.HasRole(ctx, role)
		if err != nil {
			return nil, err
		}
		if ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (s *Session) save(ctx context.Context, role domain.Role, token string, ttl time.Duration) error {
	if err := s.store.Save(ctx, s.id, role, token, ttl); err != nil {
		return apperror.ErrStorage(err)
	}
	return nil
}

// credsOf avoids handing a typed nil to the gateway.
func credsOf(s *Session) ports.Credentials {
	if s == nil {
		return nil
	}
	return s
}
