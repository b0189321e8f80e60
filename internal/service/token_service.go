package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrUnknownScope  = errors.New("unknown scope")
)

// TokenService manages a user's API tokens through the control surface.
type TokenService struct {
	tokens repository.TokenRepository
	scopes repository.ScopeRepository
}

func NewTokenService(tokens repository.TokenRepository, scopes repository.ScopeRepository) *TokenService {
	return &TokenService{tokens: tokens, scopes: scopes}
}

func (s *TokenService) ListForUser(userID uuid.UUID) ([]domain.Token, error) {
	return s.tokens.ListByUserID(userID)
}

// Create issues a new token for the user with the named scopes attached.
// Scope names must already exist; the authenticator registers the ones the
// server itself requires, anything else is a caller mistake.
func (s *TokenService) Create(userID uuid.UUID, name string, scopeNames []string, expiresAt *time.Time) (*domain.Token, error) {
	scopes, err := s.scopes.FindByNames(scopeNames)
	if err != nil {
		return nil, err
	}
	if len(scopes) != len(dedupe(scopeNames)) {
		return nil, fmt.Errorf("%w: requested %v", ErrUnknownScope, scopeNames)
	}
	token := &domain.Token{
		UserID:    userID,
		Name:      name,
		ExpiresAt: expiresAt,
	}
	if err := s.tokens.Create(token); err != nil {
		return nil, err
	}
	if len(scopes) > 0 {
		if err := s.tokens.SetScopes(token, scopes); err != nil {
			return nil, err
		}
	}
	return token, nil
}

// Get fetches a single token, hiding other users' tokens behind the same
// not-found error.
func (s *TokenService) Get(id, userID uuid.UUID) (*domain.Token, error) {
	token, err := s.tokens.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if token.UserID != userID {
		return nil, ErrTokenNotFound
	}
	return token, nil
}

// Delete removes the token if it belongs to the user.
func (s *TokenService) Delete(id, userID uuid.UUID) error {
	deleted, err := s.tokens.DeleteByIDForUser(userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
