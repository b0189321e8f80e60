package wallabag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/repository"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestCredsRepo(t *testing.T) repository.WallabagCredentialsRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.WallabagSession{},
		&domain.WallabagCredentials{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewWallabagCredentialsRepository(db)
}

func storeTestCredentials(t *testing.T, repo repository.WallabagCredentialsRepository, serverURL string) *domain.WallabagCredentials {
	t.Helper()
	creds := &domain.WallabagCredentials{
		UserID:       uuid.New(),
		ServerURL:    serverURL,
		ClientID:     "cid",
		ClientSecret: "cs",
		Username:     "wb-alice",
		Password:     "wb-pass",
	}
	if err := repo.Save(creds); err != nil {
		t.Fatalf("save credentials: %v", err)
	}
	return creds
}

// upstream is a fake wallabag server counting token grants.
type upstream struct {
	t          *testing.T
	grants     atomic.Int64
	failGrants atomic.Bool
	lastAuth   atomic.Value
	expiresIn  int
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "" {
			u.t.Errorf("token grant carried Authorization header %q", auth)
		}
		var grant grantRequest
		if err := json.NewDecoder(r.Body).Decode(&grant); err != nil {
			u.t.Errorf("decode grant: %v", err)
		}
		if grant.GrantType != "password" || grant.ClientID != "cid" || grant.Username != "wb-alice" {
			u.t.Errorf("unexpected grant request: %+v", grant)
		}
		if u.failGrants.Load() {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		n := u.grants.Add(1)
		expiresIn := u.expiresIn
		if expiresIn == 0 {
			expiresIn = 3600
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":%d,"refresh_token":"refresh-%d","token_type":"bearer"}`, n, expiresIn, n)
	})
	mux.HandleFunc("/api/entries", func(w http.ResponseWriter, r *http.Request) {
		u.lastAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"_embedded":{"items":[]}}`)
	})
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		u.lastAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"appname":"wallabag","version":"2.6.9"}`)
	})
	return mux
}

func newTestManager(t *testing.T) (*SessionManager, *upstream, *domain.WallabagCredentials) {
	t.Helper()
	up := &upstream{t: t}
	server := httptest.NewServer(up.handler())
	t.Cleanup(server.Close)

	repo := newTestCredsRepo(t)
	creds := storeTestCredentials(t, repo, server.URL)
	return NewSessionManager(NewClient(5*time.Second), repo), up, creds
}

func TestForwardRefreshesOnFirstUse(t *testing.T) {
	mgr, up, creds := newTestManager(t)

	resp, err := mgr.Forward(context.Background(), creds, Request{Method: http.MethodGet, Path: "/api/entries"})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if got := up.grants.Load(); got != 1 {
		t.Fatalf("expected 1 grant, got %d", got)
	}
	if auth, _ := up.lastAuth.Load().(string); auth != "Bearer token-1" {
		t.Fatalf("expected bearer token-1, got %q", auth)
	}
	if resp.Elapsed <= 0 {
		t.Fatal("expected positive elapsed time")
	}
}

func TestForwardReusesValidSession(t *testing.T) {
	mgr, up, creds := newTestManager(t)

	for i := 0; i < 3; i++ {
		if _, err := mgr.Forward(context.Background(), creds, Request{Method: http.MethodGet, Path: "/api/entries"}); err != nil {
			t.Fatalf("forward %d: %v", i, err)
		}
	}
	if got := up.grants.Load(); got != 1 {
		t.Fatalf("expected a single grant across calls, got %d", got)
	}
}

func TestForwardExemptPathSkipsAuthAndRefresh(t *testing.T) {
	mgr, up, creds := newTestManager(t)

	resp, err := mgr.Forward(context.Background(), creds, Request{Method: http.MethodGet, Path: "/api/info"})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if got := up.grants.Load(); got != 0 {
		t.Fatalf("expected no grant for exempt path, got %d", got)
	}
	if auth, _ := up.lastAuth.Load().(string); auth != "" {
		t.Fatalf("expected no Authorization header, got %q", auth)
	}
}

func TestConcurrentForwardsShareOneRefresh(t *testing.T) {
	mgr, up, creds := newTestManager(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := *creds
			_, err := mgr.Forward(context.Background(), &c, Request{Method: http.MethodGet, Path: "/api/entries"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("forward: %v", err)
		}
	}
	if got := up.grants.Load(); got != 1 {
		t.Fatalf("expected concurrent callers to share one grant, got %d", got)
	}
}

func TestExpiredSessionTriggersRefresh(t *testing.T) {
	mgr, up, creds := newTestManager(t)
	up.expiresIn = 0 // default 3600

	if _, err := mgr.Forward(context.Background(), creds, Request{Method: http.MethodGet, Path: "/api/entries"}); err != nil {
		t.Fatalf("first forward: %v", err)
	}

	// Force the stored session past its expiry.
	expired := time.Now().Add(-time.Minute)
	if err := mgr.creds.ReplaceSession(creds, &domain.WallabagSession{
		AccessToken:  creds.Session.AccessToken,
		RefreshToken: creds.Session.RefreshToken,
		ExpiresAt:    expired,
	}); err != nil {
		t.Fatalf("expire session: %v", err)
	}

	if _, err := mgr.Forward(context.Background(), creds, Request{Method: http.MethodGet, Path: "/api/entries"}); err != nil {
		t.Fatalf("second forward: %v", err)
	}
	if got := up.grants.Load(); got != 2 {
		t.Fatalf("expected expired session to trigger a second grant, got %d", got)
	}
	if auth, _ := up.lastAuth.Load().(string); auth != "Bearer token-2" {
		t.Fatalf("expected bearer token-2, got %q", auth)
	}
}

func TestFailedRefreshLeavesSessionUntouched(t *testing.T) {
	mgr, up, creds := newTestManager(t)

	if _, err := mgr.Forward(context.Background(), creds, Request{Method: http.MethodGet, Path: "/api/entries"}); err != nil {
		t.Fatalf("first forward: %v", err)
	}

	expired := time.Now().Add(-time.Minute)
	if err := mgr.creds.ReplaceSession(creds, &domain.WallabagSession{
		AccessToken:  "stale-token",
		RefreshToken: "stale-refresh",
		ExpiresAt:    expired,
	}); err != nil {
		t.Fatalf("expire session: %v", err)
	}
	up.failGrants.Store(true)

	_, err := mgr.Forward(context.Background(), creds, Request{Method: http.MethodGet, Path: "/api/entries"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", apiErr.Status)
	}

	stored, err := mgr.creds.FindByUserID(creds.UserID)
	if err != nil {
		t.Fatalf("reload credentials: %v", err)
	}
	if stored.Session == nil || stored.Session.AccessToken != "stale-token" {
		t.Fatalf("expected stale session preserved, got %+v", stored.Session)
	}
}
