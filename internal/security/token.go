package security

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ParseTokenID parses a presented bearer credential into a token id. The
// second return value is false for anything that is not a UUID; the caller
// treats that exactly like an unknown token so malformed input is not
// distinguishable from a wrong credential.
func ParseTokenID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// GetCookie returns the named cookie value or the empty string.
func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
