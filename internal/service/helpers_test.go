package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/casimir/freon/internal/domain"
	"github.com/casimir/freon/internal/repository"
	"github.com/casimir/freon/internal/security"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testRepos struct {
	db     *gorm.DB
	users  repository.UserRepository
	tokens repository.TokenRepository
	scopes repository.ScopeRepository
	creds  repository.WallabagCredentialsRepository
}

func newTestRepos(t *testing.T) *testRepos {
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
		&domain.Token{},
		&domain.TokenScope{},
		&domain.WallabagSession{},
		&domain.WallabagCredentials{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &testRepos{
		db:     db,
		users:  repository.NewUserRepository(db),
		tokens: repository.NewTokenRepository(db),
		scopes: repository.NewScopeRepository(db),
		creds:  repository.NewWallabagCredentialsRepository(db),
	}
}

func newTestSession(t *testing.T, r *testRepos, creds *domain.WallabagCredentials) *domain.WallabagSession {
	t.Helper()
	session := &domain.WallabagSession{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	if err := r.creds.ReplaceSession(creds, session); err != nil {
		t.Fatalf("replace session: %v", err)
	}
	return session
}

func createTestUser(t *testing.T, r *testRepos, username, password string) *domain.User {
	t.Helper()
	user := &domain.User{Username: username}
	if err := security.SetPassword(user, password); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := r.users.Create(user); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}
