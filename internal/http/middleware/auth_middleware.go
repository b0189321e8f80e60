package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/http/response"
	"github.com/casimir/freon/internal/security"
	"github.com/casimir/freon/internal/service"
)

type contextKey string

const (
	TokenContextKey       contextKey = "token"
	CredentialsContextKey contextKey = "wallabag_credentials"
)

// TokenAuth guards routes that only need a valid token. Every failure mode
// collapses into the same 401 so a probing caller learns nothing.
func TokenAuth(authenticator *service.TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := authenticator.Authenticate(r.Context(), security.BearerToken(r))
			if err != nil {
				writeAuthError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), TokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WallabagAuth guards the relay: besides the token it resolves the owner's
// wallabag credentials and puts both on the context.
func WallabagAuth(authenticator *service.WallabagAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, creds, err := authenticator.AuthenticateCredentials(r.Context(), security.BearerToken(r))
			if err != nil {
				writeAuthError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), TokenContextKey, token)
			ctx = context.WithValue(ctx, CredentialsContextKey, creds)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrUnauthorized) {
		// The reason stays server-side.
		slog.InfoContext(r.Context(), "rejected token", "path", r.URL.Path, "reason", err.Error())
		response.Unauthorized(w, r)
		return
	}
	slog.ErrorContext(r.Context(), "token validation failed", "path", r.URL.Path, "error", err)
	response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func TokenFromContext(ctx context.Context) (*domain.Token, bool) {
	t, ok := ctx.Value(TokenContextKey).(*domain.Token)
	return t, ok
}

func CredentialsFromContext(ctx context.Context) (*domain.WallabagCredentials, bool) {
	c, ok := ctx.Value(CredentialsContextKey).(*domain.WallabagCredentials)
	return c, ok
}
