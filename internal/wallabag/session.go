package wallabag

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/observability"
	"github.com/casimir/freon/internal/repository"

	"golang.org/x/sync/singleflight"
)

type grantRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

type grantResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// SessionManager keeps the upstream oauth session of each credentials record
// fresh. Refreshes always use the password grant; the upstream refresh-token
// grant is not reliable enough across wallabag versions to depend on.
type SessionManager struct {
	client *Client
	creds  repository.WallabagCredentialsRepository
	group  singleflight.Group
}

func NewSessionManager(client *Client, creds repository.WallabagCredentialsRepository) *SessionManager {
	return &SessionManager{client: client, creds: creds}
}

// EnsureSession makes sure creds carries a session that is valid right now,
// refreshing if needed. Concurrent callers for the same credentials share one
// refresh. A session expiring at exactly now counts as expired.
func (m *SessionManager) EnsureSession(ctx context.Context, creds *domain.WallabagCredentials) error {
	if creds.HasValidSession(time.Now()) {
		return nil
	}

	v, err, _ := m.group.Do(creds.UserID.String(), func() (any, error) {
		// The flight winner re-reads the credentials: a refresh that finished
		// while we were queued means there is nothing left to do.
		fresh, err := m.creds.FindByUserID(creds.UserID)
		if err != nil {
			return nil, err
		}
		if fresh.HasValidSession(time.Now()) {
			return fresh, nil
		}
		if err := m.refresh(ctx, fresh); err != nil {
			return nil, err
		}
		return fresh, nil
	})
	if err != nil {
		return err
	}

	fresh := v.(*domain.WallabagCredentials)
	creds.SessionID = fresh.SessionID
	creds.Session = fresh.Session
	return nil
}

// refresh obtains a new access token via the password grant and atomically
// replaces the stored session. On failure the stored session is untouched.
func (m *SessionManager) refresh(ctx context.Context, creds *domain.WallabagCredentials) error {
	resp, err := m.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/oauth/v2/token",
		JSON: grantRequest{
			GrantType:    "password",
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Username:     creds.Username,
			Password:     creds.Password,
		},
	})
	if err != nil {
		outcome := "error"
		if _, ok := err.(*APIError); ok {
			outcome = "upstream_rejected"
		}
		observability.RecordSessionRefresh(ctx, outcome)
		slog.ErrorContext(ctx, "wallabag session refresh failed", "user_id", creds.UserID, "error", err)
		return err
	}

	var grant grantResponse
	if err := resp.DecodeJSON(&grant); err != nil {
		observability.RecordSessionRefresh(ctx, "bad_response")
		return fmt.Errorf("decode token response: %w", err)
	}
	if grant.AccessToken == "" {
		observability.RecordSessionRefresh(ctx, "bad_response")
		return fmt.Errorf("token response carries no access token")
	}

	session := &domain.WallabagSession{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second),
	}
	if err := m.creds.ReplaceSession(creds, session); err != nil {
		observability.RecordSessionRefresh(ctx, "error")
		return err
	}

	observability.RecordSessionRefresh(ctx, "success")
	slog.InfoContext(ctx, "refreshed wallabag session",
		"user_id", creds.UserID,
		"expires_at", session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	return nil
}

// Forward runs one authenticated relay call: it ensures the session is valid
// unless the path is exempt, then executes the request.
func (m *SessionManager) Forward(ctx context.Context, creds *domain.WallabagCredentials, req Request) (*Response, error) {
	if !IsExemptPath(req.Path) {
		if err := m.EnsureSession(ctx, creds); err != nil {
			return nil, err
		}
	}
	return m.client.Do(ctx, creds, req)
}
