package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/repository"
)

// ScopeWallabag guards the forwarding surface.
var ScopeWallabag = ScopeRequirement{Name: "wallabag", Description: "Wallabag API access"}

// WallabagAuthenticator is the token authenticator specialized for the proxy:
// after the token validates it additionally resolves the user's wallabag
// credentials. A user without credentials gets the same generic unauthorized
// result as a bad token.
type WallabagAuthenticator struct {
	*TokenAuthenticator
	credsRepo repository.WallabagCredentialsRepository
}

func NewWallabagAuthenticator(tokenRepo repository.TokenRepository, scopeRepo repository.ScopeRepository, credsRepo repository.WallabagCredentialsRepository) *WallabagAuthenticator {
	return &WallabagAuthenticator{
		TokenAuthenticator: NewTokenAuthenticator(tokenRepo, scopeRepo, ScopeWallabag),
		credsRepo:          credsRepo,
	}
}

// AuthenticateCredentials runs the base token authentication and then looks
// up the wallabag credentials of the token's owner.
func (a *WallabagAuthenticator) AuthenticateCredentials(ctx context.Context, credential string) (*domain.Token, *domain.WallabagCredentials, error) {
	token, err := a.Authenticate(ctx, credential)
	if err != nil {
		return nil, nil, err
	}
	creds, err := a.credsRepo.FindByUserID(token.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialsNotFound) {
			slog.InfoContext(ctx, "no wallabag credentials configured", "user_id", token.UserID)
			return nil, nil, ErrUnauthorized
		}
		return nil, nil, err
	}
	return token, creds, nil
}
