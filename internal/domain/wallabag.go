package domain

import (
	"time"

	"github.com/google/uuid"
)

// WallabagCredentials holds everything needed to talk to a user's wallabag
// server. The service username and password are stored in cleartext: wallabag's
// refresh-token grant is unreliable, so every session renewal re-runs the
// password grant and needs the original secrets. Encrypting them at rest is a
// known hardening opportunity.
type WallabagCredentials struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	UserID       uuid.UUID        `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	ServerURL    string           `gorm:"size:512;not null" json:"server_url"`
	ClientID     string           `gorm:"size:255;not null" json:"client_id"`
	ClientSecret string           `gorm:"size:255;not null" json:"-"`
	Username     string           `gorm:"size:255;not null" json:"username"`
	Password     string           `gorm:"size:255;not null" json:"-"`
	SessionID    *uint            `json:"-"`
	Session      *WallabagSession `gorm:"foreignKey:SessionID" json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// HasValidSession reports whether a session exists and has not expired yet.
// The comparison is strict: a session expiring exactly now is invalid.
func (c *WallabagCredentials) HasValidSession(now time.Time) bool {
	if c.Session == nil {
		return false
	}
	return c.Session.ExpiresAt.After(now)
}

// WallabagSession is the wallabag-side OAuth session owned by exactly one
// credentials row. It is replaced wholesale on refresh, never updated in
// place. The refresh token is kept for completeness but never exchanged.
type WallabagSession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccessToken  string    `gorm:"size:512;not null" json:"-"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
	RefreshToken string    `gorm:"size:512" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
