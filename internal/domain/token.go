package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Token is an opaque bearer credential. The UUID itself is the secret: callers
// present it verbatim in the Authorization header.
type Token struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID    `gorm:"type:uuid;index;not null" json:"user_id"`
	User      User         `json:"-"`
	Name      string       `gorm:"size:255" json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	Scopes    []TokenScope `gorm:"many2many:token_scopes_assoc" json:"scopes"`
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the token has passed its expiry. A token without
// an expiry never expires.
func (t *Token) IsExpired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return t.ExpiresAt.Before(now)
}

// ScopeNames returns the names of the scopes attached to the token.
func (t *Token) ScopeNames() []string {
	names := make([]string, 0, len(t.Scopes))
	for _, s := range t.Scopes {
		names = append(names, s.Name)
	}
	return names
}

type TokenScope struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
}
