package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the decoded view of the bearer token's claims. The client only
// reads the token; the server is the verifier, so no signature check happens
// here.
type Identity struct {
	SubjectID string
	ExpiresAt time.Time
}

// Expired reports whether the identity's expiry is at or before now.
func (id Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.After(now)
}

func decodeIdentity(token string) (Identity, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("session: decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return Identity{}, fmt.Errorf("session: token has no expiry")
	}
	return Identity{
		SubjectID: claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
