package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/repository"
	"github.com/casimir/freon/internal/security"

	"golang.org/x/sync/singleflight"
)

// ErrUnauthorized covers every authentication failure mode: missing,
// malformed, unknown or expired credentials and insufficient scopes. Callers
// must not be able to tell these apart; any detail wrapped around this error
// is for server-side logs only.
var ErrUnauthorized = errors.New("unauthorized")

// ScopeRequirement declares a scope a route needs, together with the
// description used if the scope record has to be created.
type ScopeRequirement struct {
	Name        string
	Description string
}

// TokenAuthenticator resolves opaque bearer credentials into tokens and
// enforces a static required-scope set. The required scopes are registered
// lazily on first use: concurrent first callers share a single in-flight
// registration, and the scope check never runs before registration finished.
type TokenAuthenticator struct {
	tokenRepo repository.TokenRepository
	scopeRepo repository.ScopeRepository
	required  []ScopeRequirement

	initGroup singleflight.Group
	initDone  atomic.Bool
}

func NewTokenAuthenticator(tokenRepo repository.TokenRepository, scopeRepo repository.ScopeRepository, required ...ScopeRequirement) *TokenAuthenticator {
	return &TokenAuthenticator{
		tokenRepo: tokenRepo,
		scopeRepo: scopeRepo,
		required:  required,
	}
}

// Authenticate validates the presented credential. The credential lookup and
// the one-time scope registration run concurrently; both must have completed
// before the scope-membership check.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, credential string) (*domain.Token, error) {
	initErr := make(chan error, 1)
	go func() { initErr <- a.ensureScopes(ctx) }()

	// A credential that does not parse as a UUID is handled exactly like an
	// unknown token: the parse failure never reaches the caller.
	var token *domain.Token
	if id, ok := security.ParseTokenID(credential); ok {
		found, err := a.tokenRepo.FindByID(id)
		if err != nil && !errors.Is(err, repository.ErrTokenNotFound) {
			<-initErr
			return nil, err
		}
		token = found
	}

	if err := <-initErr; err != nil {
		return nil, err
	}

	if token != nil && token.IsExpired(time.Now()) {
		observability.RecordTokenValidation(ctx, "expired")
		return nil, fmt.Errorf("%w: token expired since %s", ErrUnauthorized, token.ExpiresAt.UTC().Format(time.RFC3339))
	}

	if !a.matchesScopes(token) {
		outcome := "unknown"
		if token != nil {
			outcome = "scope_mismatch"
		}
		observability.RecordTokenValidation(ctx, outcome)
		return nil, ErrUnauthorized
	}

	observability.RecordTokenValidation(ctx, "valid")
	return token, nil
}

func (a *TokenAuthenticator) ensureScopes(ctx context.Context) error {
	if a.initDone.Load() {
		return nil
	}
	_, err, _ := a.initGroup.Do("scopes", func() (any, error) {
		if a.initDone.Load() {
			return nil, nil
		}
		for _, req := range a.required {
			created, err := a.scopeRepo.Ensure(req.Name, req.Description)
			if err != nil {
				return nil, fmt.Errorf("ensure scope %s: %w", req.Name, err)
			}
			outcome := "exists"
			if created {
				outcome = "created"
				slog.InfoContext(ctx, "created token scope", "scope", req.Name)
			}
			observability.RecordScopeRegistration(ctx, req.Name, outcome)
		}
		a.initDone.Store(true)
		return nil, nil
	})
	return err
}

// matchesScopes implements the count-based superset check: the number of the
// token's scopes whose name appears in the required set must equal the number
// of required scopes. Partial matches fail.
func (a *TokenAuthenticator) matchesScopes(token *domain.Token) bool {
	if token == nil {
		return false
	}
	if len(a.required) == 0 {
		return true
	}
	names := make(map[string]struct{}, len(a.required))
	for _, req := range a.required {
		names[req.Name] = struct{}{}
	}
	matched := 0
	for _, scope := range token.Scopes {
		if _, ok := names[scope.Name]; ok {
			matched++
		}
	}
	return matched == len(a.required)
}
