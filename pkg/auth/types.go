package auth

import (
	"time"
)

// User represents an account that can sign in to the API
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Password     string    `json:"-"` // bcrypt hash, never exposed
	Avatar       string    `json:"avatar,omitempty"`
	RefreshToken *string   `json:"-"`
	Confirmed    bool      `json:"confirmed"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasRefreshToken reports whether token is the refresh token currently stored for the user
func (u *User) HasRefreshToken(token string) bool {
	return u.RefreshToken != nil && *u.RefreshToken == token
}

// Scope restricts which operation may consume a token
type Scope string

const (
	ScopeAccess       Scope = "access_token"
	ScopeRefresh      Scope = "refresh_token"
	ScopeEmailConfirm Scope = "email_token"
)

// Valid reports whether s is a known scope
func (s Scope) Valid() bool {
	switch s {
	case ScopeAccess, ScopeRefresh, ScopeEmailConfirm:
		return true
	}
	return false
}

// DefaultTTL returns the lifetime used when a token is issued without an explicit ttl
func (s Scope) DefaultTTL() time.Duration {
	switch s {
	case ScopeAccess:
		return 15 * time.Minute
	case ScopeRefresh, ScopeEmailConfirm:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

func (s Scope) String() string {
	return string(s)
}

// TokenTypeBearer is the only token type handed out to clients
const TokenTypeBearer = "bearer"

// TokenPair is returned by login and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}
