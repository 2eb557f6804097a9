package auth

import (
	"time"
)

// AccessClaims are the claims carried in a PASETO access token.
// v4.local tokens are encrypted, so they are unreadable without the key.
type AccessClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Admin     bool   `json:"admin,omitempty"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// Principal is the caller a saga runs on behalf of. The session scopes the
// one pending action the caller may hold.
type Principal struct {
	UserID    string
	SessionID string
	Admin     bool
}

// Principal returns the user and session the token was issued for.
func (c *AccessClaims) Principal() Principal {
	return Principal{UserID: c.UserID, SessionID: c.SessionID, Admin: c.Admin}
}
