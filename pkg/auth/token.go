package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is wrapped by every verification failure
	ErrInvalidToken = errors.New("invalid token")

	ErrInvalidSignature = fmt.Errorf("%w: signature verification failed", ErrInvalidToken)
	ErrExpired          = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrScopeMismatch    = fmt.Errorf("%w: scope mismatch", ErrInvalidToken)
)

// TokenCodec signs and verifies scoped JWTs with an HMAC secret
type TokenCodec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	config Config
	now    func() time.Time
}

// CodecOption customizes a TokenCodec
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and verifying tokens
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// NewTokenCodec creates a new token codec
func NewTokenCodec(cfg Config, opts ...CodecOption) (*TokenCodec, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	c := &TokenCodec{
		secret: []byte(cfg.SecretKey),
		method: method,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs a token for subject. A non-positive ttl uses the configured lifetime for scope.
func (c *TokenCodec) Issue(subject string, scope Scope, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.config.ttl(scope)
	}

	claims, err := NewClaims(subject, scope, c.now(), ttl)
	if err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueAccess issues an access token with the configured lifetime
func (c *TokenCodec) IssueAccess(subject string) (string, error) {
	return c.Issue(subject, ScopeAccess, 0)
}

// IssueRefresh issues a refresh token with the configured lifetime
func (c *TokenCodec) IssueRefresh(subject string) (string, error) {
	return c.Issue(subject, ScopeRefresh, 0)
}

// IssueEmail issues a token for confirmation and password reset links
func (c *TokenCodec) IssueEmail(subject string) (string, error) {
	return c.Issue(subject, ScopeEmailConfirm, 0)
}

// IssuePair issues a fresh access and refresh token for subject
func (c *TokenCodec) IssuePair(subject string) (*TokenPair, error) {
	access, err := c.IssueAccess(subject)
	if err != nil {
		return nil, err
	}
	refresh, err := c.IssueRefresh(subject)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
	}, nil
}

// Verify checks the signature, expiry and scope of token and returns its subject
func (c *TokenCodec) Verify(token string, expected Scope) (string, error) {
	claims, err := c.Parse(token)
	if err != nil {
		return "", err
	}
	if claims.Scope != expected {
		return "", ErrScopeMismatch
	}
	return claims.Subject, nil
}

// Parse validates token and returns its claims without checking the scope
func (c *TokenCodec) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSignature)
	}
	return claims, nil
}
