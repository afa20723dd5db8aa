package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/cache"
	"github.com/platinummonkey/rolodex/pkg/mail"
	"github.com/platinummonkey/rolodex/pkg/observability"
	"github.com/platinummonkey/rolodex/pkg/storage"
)

// Mailer queues account emails for delivery
type Mailer interface {
	Enqueue(ctx context.Context, req mail.Request) error
}

// Options tune the session manager
type Options struct {
	// CacheTTL is how long a resolved identity is served from the cache
	CacheTTL time.Duration
	// BaseURL prefixes links in confirmation and reset emails
	BaseURL string
}

// Dependencies are the collaborators of a Manager. Cache, Metrics and Logger are optional.
type Dependencies struct {
	Users   storage.UserStore
	Cache   cache.IdentityCache
	Tokens  *auth.TokenCodec
	Hasher  *auth.Hasher
	Mailer  Mailer
	Metrics *observability.Metrics
	Logger  logrus.FieldLogger
}

// SignupInput is a validated signup request
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// Manager implements the account and session flows
type Manager struct {
	users   storage.UserStore
	cache   cache.IdentityCache
	tokens  *auth.TokenCodec
	hasher  *auth.Hasher
	mailer  Mailer
	opts    Options
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// NewManager creates a session manager
func NewManager(deps Dependencies, opts Options) *Manager {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = cache.DefaultTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return &Manager{
		users:   deps.Users,
		cache:   deps.Cache,
		tokens:  deps.Tokens,
		hasher:  deps.Hasher,
		mailer:  deps.Mailer,
		opts:    opts,
		metrics: deps.Metrics,
		logger:  logger.WithField("component", "session"),
	}
}

// Signup creates an unconfirmed user and queues a confirmation email
func (m *Manager) Signup(ctx context.Context, in SignupInput) (*auth.User, error) {
	existing, err := m.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		m.metrics.RecordAuth("signup", "conflict")
		return nil, newError(ErrConflict, MsgAccountExists)
	}

	hash, err := m.hashPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	user, err := m.users.CreateUser(ctx, &auth.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
	})
	if errors.Is(err, storage.ErrConflict) {
		m.metrics.RecordAuth("signup", "conflict")
		return nil, newError(ErrConflict, MsgAccountExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	m.metrics.RecordAuth("signup", "success")
	m.enqueue(ctx, mail.KindConfirmEmail, user)
	return user, nil
}

// Login checks credentials and issues a new token pair, replacing the stored refresh token
func (m *Manager) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		m.metrics.RecordAuth("login", "unknown_email")
		return nil, newError(ErrUnauthorized, MsgInvalidEmail)
	}
	if !user.Confirmed {
		m.metrics.RecordAuth("login", "unconfirmed")
		return nil, newError(ErrUnauthorized, MsgEmailNotConfirmed)
	}

	start := time.Now()
	ok := m.hasher.Verify(ctx, password, user.Password)
	m.metrics.ObservePasswordHash("verify", time.Since(start))
	if !ok {
		m.metrics.RecordAuth("login", "bad_password")
		return nil, newError(ErrUnauthorized, MsgInvalidPassword)
	}

	pair, err := m.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	m.metrics.RecordAuth("login", "success")
	return pair, nil
}

// ConfirmEmail marks the address named by an email token as confirmed
func (m *Manager) ConfirmEmail(ctx context.Context, token string) (string, error) {
	user, err := m.userFromEmailToken(ctx, token)
	if err != nil {
		return "", err
	}

	if user.Confirmed {
		return MsgAlreadyConfirmed, nil
	}

	if err := m.users.ConfirmEmail(ctx, user.Email); err != nil {
		return "", fmt.Errorf("failed to confirm email: %w", err)
	}

	m.metrics.RecordAuth("confirm_email", "success")
	return MsgEmailConfirmed, nil
}

// RequestConfirmation queues a new confirmation email for an unconfirmed user.
// The answer does not reveal whether the address is registered.
func (m *Manager) RequestConfirmation(ctx context.Context, email string) (string, error) {
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user != nil && user.Confirmed {
		return MsgAlreadyConfirmed, nil
	}
	if user != nil {
		m.enqueue(ctx, mail.KindConfirmEmail, user)
	}
	return MsgCheckEmail, nil
}

// RequestPasswordReset queues a reset email when the user exists
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user != nil {
		m.enqueue(ctx, mail.KindResetPassword, user)
	}
	return MsgCheckEmail, nil
}

// ResetPassword replaces the password of the user named by an email token.
// Mismatched passwords are reported as a message, not an error.
func (m *Manager) ResetPassword(ctx context.Context, token, password1, password2 string) (string, error) {
	user, err := m.userFromEmailToken(ctx, token)
	if err != nil {
		return "", err
	}

	if password1 != password2 {
		return MsgPasswordsDoNotMatch, nil
	}

	hash, err := m.hashPassword(ctx, password1)
	if err != nil {
		return "", err
	}

	if err := m.users.UpdatePassword(ctx, user, hash); err != nil {
		return "", fmt.Errorf("failed to update password: %w", err)
	}

	m.metrics.RecordAuth("reset_password", "success")
	return MsgPasswordReset, nil
}

// Refresh rotates the token pair. A refresh token that is valid but not the
// stored one clears the stored token, so both holders are logged out. Of two
// concurrent refreshes with the same token only one rotates; the other is
// treated as reuse.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	email, err := m.tokens.Verify(refreshToken, auth.ScopeRefresh)
	if err != nil {
		m.metrics.RecordAuth("refresh", "invalid_token")
		return nil, newError(ErrUnauthorized, MsgInvalidCredentials)
	}

	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		m.metrics.RecordAuth("refresh", "unknown_user")
		return nil, newError(ErrUnauthorized, MsgInvalidCredentials)
	}

	if !user.HasRefreshToken(refreshToken) {
		return nil, m.revokeReused(ctx, user)
	}

	pair, err := m.tokens.IssuePair(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	// A concurrent refresh with the same token may have rotated it since the read
	rotated, err := m.users.RotateRefreshToken(ctx, user, refreshToken, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	if !rotated {
		return nil, m.revokeReused(ctx, user)
	}

	m.metrics.RecordAuth("refresh", "success")
	return pair, nil
}

func (m *Manager) revokeReused(ctx context.Context, user *auth.User) error {
	if err := m.users.UpdateRefreshToken(ctx, user, nil); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	m.logger.WithField("user", user.Email).Warn("Refresh token reuse detected, session revoked")
	m.metrics.RecordAuth("refresh", "reused")
	return newError(ErrUnauthorized, MsgInvalidRefreshToken)
}

// Logout forgets the stored refresh token of user
func (m *Manager) Logout(ctx context.Context, user *auth.User) error {
	if err := m.users.UpdateRefreshToken(ctx, user, nil); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	m.metrics.RecordAuth("logout", "success")
	return nil
}

// CurrentUser resolves an access token into its user
func (m *Manager) CurrentUser(ctx context.Context, accessToken string) (*auth.User, error) {
	email, err := m.tokens.Verify(accessToken, auth.ScopeAccess)
	if err != nil {
		return nil, newError(ErrUnauthorized, MsgInvalidCredentials)
	}

	user, err := m.resolveIdentity(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, newError(ErrUnauthorized, MsgInvalidCredentials)
	}
	return user, nil
}

// UpdateAvatar stores a new avatar URL for user
func (m *Manager) UpdateAvatar(ctx context.Context, user *auth.User, url string) (*auth.User, error) {
	updated, err := m.users.UpdateAvatar(ctx, user.Email, url)
	if err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	if updated == nil {
		return nil, newError(ErrNotFound, MsgUserNotFound)
	}
	return updated, nil
}

// resolveIdentity reads through the identity cache. A missing user is
// returned as (nil, nil) and is not cached. Secrets are stripped on both paths.
func (m *Manager) resolveIdentity(ctx context.Context, email string) (*auth.User, error) {
	logger := observability.LoggerFromContext(ctx, m.logger)

	if m.cache != nil {
		user, err := m.cache.Get(ctx, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithError(err).Warn("Identity cache read failed, falling back to store")
		}
	}

	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if m.cache != nil {
		if err := m.cache.Put(ctx, user, m.opts.CacheTTL); err != nil {
			logger.WithError(err).Warn("Identity cache write failed")
		}
	}
	return cache.NewSnapshot(user).User(), nil
}

func (m *Manager) userFromEmailToken(ctx context.Context, token string) (*auth.User, error) {
	email, err := m.tokens.Verify(token, auth.ScopeEmailConfirm)
	if err != nil {
		return nil, newError(ErrUnprocessableToken, MsgInvalidEmailToken)
	}

	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, newError(ErrBadRequest, MsgVerificationError)
	}
	return user, nil
}

func (m *Manager) issuePair(ctx context.Context, user *auth.User) (*auth.TokenPair, error) {
	pair, err := m.tokens.IssuePair(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	refresh := pair.RefreshToken
	if err := m.users.UpdateRefreshToken(ctx, user, &refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}
	return pair, nil
}

func (m *Manager) hashPassword(ctx context.Context, password string) (string, error) {
	start := time.Now()
	hash, err := m.hasher.Hash(ctx, password)
	m.metrics.ObservePasswordHash("hash", time.Since(start))
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", newError(ErrBadRequest, err.Error())
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// enqueue queues an account email. Failures are logged and do not fail the caller.
func (m *Manager) enqueue(ctx context.Context, kind mail.Kind, user *auth.User) {
	if m.mailer == nil {
		return
	}
	err := m.mailer.Enqueue(ctx, mail.Request{
		Kind:     kind,
		Email:    user.Email,
		Username: user.Username,
		BaseURL:  m.opts.BaseURL,
	})
	if err != nil {
		observability.LoggerFromContext(ctx, m.logger).
			WithError(err).
			WithFields(logrus.Fields{"to": user.Email, "kind": string(kind)}).
			Warn("Failed to queue account email")
	}
}
