package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/storage"
)

const uniqueViolation = "23505"

const userColumns = `id, username, email, password, avatar, refresh_token, confirmed, created_at`

// Store implements storage.UserStore and storage.ContactStore on PostgreSQL
type Store struct {
	db *sql.DB
}

var (
	_ storage.UserStore     = (*Store)(nil)
	_ storage.ContactStore  = (*Store)(nil)
	_ storage.HealthChecker = (*Store)(nil)
)

// NewStore creates a new PostgreSQL store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		user         auth.User
		avatar       sql.NullString
		refreshToken sql.NullString
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password,
		&avatar, &refreshToken, &user.Confirmed, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	user.Avatar = avatar.String
	if refreshToken.Valid {
		token := refreshToken.String
		user.RefreshToken = &token
	}
	return &user, nil
}

// GetUserByEmail returns the user with the given email, or nil if none exists
func (s *Store) GetUserByEmail(ctx context.Context, email string) (user *auth.User, err error) {
	ctx, span := startSpan(ctx, "GetUserByEmail", "users")
	defer func() { endSpan(span, err) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err = scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// CreateUser inserts a new unconfirmed user and returns it with ID and creation time set
func (s *Store) CreateUser(ctx context.Context, user *auth.User) (created *auth.User, err error) {
	ctx, span := startSpan(ctx, "CreateUser", "users")
	defer func() { endSpan(span, err) }()

	var avatar sql.NullString
	if user.Avatar != "" {
		avatar = sql.NullString{String: user.Avatar, Valid: true}
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password, avatar, confirmed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.Username, user.Email, user.Password, avatar, user.Confirmed)

	created, err = scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// ConfirmEmail marks the user's email as confirmed
func (s *Store) ConfirmEmail(ctx context.Context, email string) (err error) {
	ctx, span := startSpan(ctx, "ConfirmEmail", "users")
	defer func() { endSpan(span, err) }()

	if _, err = s.db.ExecContext(ctx,
		`UPDATE users SET confirmed = TRUE WHERE email = $1`, email); err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	return nil
}

// UpdateRefreshToken stores token as the user's current refresh token. A nil token clears it.
func (s *Store) UpdateRefreshToken(ctx context.Context, user *auth.User, token *string) (err error) {
	ctx, span := startSpan(ctx, "UpdateRefreshToken", "users")
	defer func() { endSpan(span, err) }()

	var value sql.NullString
	if token != nil {
		value = sql.NullString{String: *token, Valid: true}
	}

	if _, err = s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $1 WHERE id = $2`, value, user.ID); err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}
	user.RefreshToken = token
	return nil
}

// RotateRefreshToken replaces current with next in a single compare-and-set update
func (s *Store) RotateRefreshToken(ctx context.Context, user *auth.User, current, next string) (rotated bool, err error) {
	ctx, span := startSpan(ctx, "RotateRefreshToken", "users")
	defer func() { endSpan(span, err) }()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET refresh_token = $1 WHERE id = $2 AND refresh_token = $3`, next, user.ID, current)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	user.RefreshToken = &next
	return true, nil
}

// UpdatePassword replaces the user's password hash
func (s *Store) UpdatePassword(ctx context.Context, user *auth.User, hash string) (err error) {
	ctx, span := startSpan(ctx, "UpdatePassword", "users")
	defer func() { endSpan(span, err) }()

	if _, err = s.db.ExecContext(ctx,
		`UPDATE users SET password = $1 WHERE id = $2`, hash, user.ID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	user.Password = hash
	return nil
}

// UpdateAvatar sets the avatar URL and returns the updated user, or nil if none exists
func (s *Store) UpdateAvatar(ctx context.Context, email, url string) (user *auth.User, err error) {
	ctx, span := startSpan(ctx, "UpdateAvatar", "users")
	defer func() { endSpan(span, err) }()

	row := s.db.QueryRowContext(ctx,
		`UPDATE users SET avatar = $1 WHERE email = $2 RETURNING `+userColumns, url, email)

	user, err = scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
