package repository

import (
	"testing"
	"time"

	"github.com/casimir/freon/internal/domain"

	"github.com/google/uuid"
)

func TestTokenRepositoryFindByIDPreloadsUserAndScopes(t *testing.T) {
	db := newTestDB(t)
	repo := NewTokenRepository(db)
	user := createTestUser(t, db, "alice")

	scope := domain.TokenScope{Name: "wallabag", Description: "Wallabag API access"}
	if err := db.Create(&scope).Error; err != nil {
		t.Fatalf("create scope: %v", err)
	}
	token := &domain.Token{UserID: user.ID, Name: "cli", Scopes: []domain.TokenScope{scope}}
	if err := repo.Create(token); err != nil {
		t.Fatalf("create token: %v", err)
	}

	got, err := repo.FindByID(token.ID)
	if err != nil {
		t.Fatalf("find token: %v", err)
	}
	if got.User.Username != "alice" {
		t.Fatalf("expected preloaded user, got %+v", got.User)
	}
	if len(got.Scopes) != 1 || got.Scopes[0].Name != "wallabag" {
		t.Fatalf("expected preloaded scopes, got %+v", got.Scopes)
	}
	if got.ExpiresAt != nil {
		t.Fatalf("expected nil expiry, got %v", got.ExpiresAt)
	}
}

func TestTokenRepositoryFindByIDUnknown(t *testing.T) {
	repo := NewTokenRepository(newTestDB(t))
	if _, err := repo.FindByID(uuid.New()); err != ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestTokenRepositoryDeleteScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewTokenRepository(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	token := &domain.Token{UserID: alice.ID, Name: "reader"}
	if err := repo.Create(token); err != nil {
		t.Fatalf("create token: %v", err)
	}

	deleted, err := repo.DeleteByIDForUser(bob.ID, token.ID)
	if err != nil {
		t.Fatalf("delete as other user: %v", err)
	}
	if deleted {
		t.Fatal("bob must not be able to delete alice's token")
	}

	deleted, err = repo.DeleteByIDForUser(alice.ID, token.ID)
	if err != nil {
		t.Fatalf("delete as owner: %v", err)
	}
	if !deleted {
		t.Fatal("expected owner delete to succeed")
	}
	if _, err := repo.FindByID(token.ID); err != ErrTokenNotFound {
		t.Fatalf("expected token gone, got %v", err)
	}
}

func TestTokenRepositorySetScopesReplaces(t *testing.T) {
	db := newTestDB(t)
	repo := NewTokenRepository(db)
	user := createTestUser(t, db, "alice")

	a := domain.TokenScope{Name: "a", Description: "A"}
	b := domain.TokenScope{Name: "b", Description: "B"}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create scope a: %v", err)
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("create scope b: %v", err)
	}

	exp := time.Now().Add(time.Hour)
	token := &domain.Token{UserID: user.ID, ExpiresAt: &exp, Scopes: []domain.TokenScope{a}}
	if err := repo.Create(token); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := repo.SetScopes(token, []domain.TokenScope{b}); err != nil {
		t.Fatalf("set scopes: %v", err)
	}

	got, err := repo.FindByID(token.ID)
	if err != nil {
		t.Fatalf("find token: %v", err)
	}
	if len(got.Scopes) != 1 || got.Scopes[0].Name != "b" {
		t.Fatalf("expected scopes replaced with {b}, got %+v", got.Scopes)
	}
}
