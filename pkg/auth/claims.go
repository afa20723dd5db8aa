package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the signed payload of every token
type Claims struct {
	jwt.RegisteredClaims
	Scope Scope `json:"scope"`
}

// NewClaims builds claims for subject valid from now until now+ttl.
// Each claim set gets a unique ID so two tokens issued in the same second differ.
func NewClaims(subject string, scope Scope, now time.Time, ttl time.Duration) (*Claims, error) {
	if subject == "" {
		return nil, fmt.Errorf("token subject is required")
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("invalid token scope: %q", scope)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %v", ttl)
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
	}, nil
}
