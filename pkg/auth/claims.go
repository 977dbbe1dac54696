package auth

import "github.com/golang-jwt/jwt/v5"

// SessionClaims identify an anonymous cart session. The session id is the
// JWT id; Audience pins the token to the subdomain that issued it.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionID is the opaque cart session identifier.
func (c *SessionClaims) SessionID() string {
	if c == nil {
		return ""
	}
	return c.ID
}
