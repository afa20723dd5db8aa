package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the secrets and tuning knobs shared by the Hasher and TokenCodec
type Config struct {
	SecretKey string
	Algorithm string
	HashCost  int

	// Zero values fall back to Scope.DefaultTTL
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	EmailTTL   time.Duration
}

// DefaultConfig returns a config with the default algorithm and cost and no secret
func DefaultConfig() Config {
	return Config{
		Algorithm:  jwt.SigningMethodHS256.Alg(),
		HashCost:   bcrypt.DefaultCost,
		AccessTTL:  ScopeAccess.DefaultTTL(),
		RefreshTTL: ScopeRefresh.DefaultTTL(),
		EmailTTL:   ScopeEmailConfirm.DefaultTTL(),
	}
}

// Validate checks that the config can be used to sign tokens
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("secret key is required")
	}
	if _, err := signingMethod(c.Algorithm); err != nil {
		return err
	}
	if c.HashCost != 0 && (c.HashCost < bcrypt.MinCost || c.HashCost > bcrypt.MaxCost) {
		return fmt.Errorf("hash cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.HashCost)
	}
	return nil
}

func (c Config) ttl(scope Scope) time.Duration {
	var ttl time.Duration
	switch scope {
	case ScopeAccess:
		ttl = c.AccessTTL
	case ScopeRefresh:
		ttl = c.RefreshTTL
	case ScopeEmailConfirm:
		ttl = c.EmailTTL
	}
	if ttl <= 0 {
		return scope.DefaultTTL()
	}
	return ttl
}

// signingMethod resolves an HMAC algorithm name
func signingMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	if alg == "" {
		return jwt.SigningMethodHS256, nil
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %s (must be HS256, HS384 or HS512)", alg)
	}
	return method, nil
}
