package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/rolodex/pkg/contacts"
	"github.com/platinummonkey/rolodex/pkg/storage"
)

const contactColumns = `id, first_name, last_name, email, phone_number, birthday, additional_info, user_id`

func scanContact(row rowScanner) (*contacts.Contact, error) {
	var (
		c        contacts.Contact
		birthday time.Time
		info     sql.NullString
	)
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
		&birthday, &info, &c.UserID)
	if err != nil {
		return nil, err
	}

	c.Birthday = contacts.NewDate(birthday.Year(), birthday.Month(), birthday.Day())
	if info.Valid {
		c.AdditionalInfo = &info.String
	}
	return &c, nil
}

func (s *Store) queryContacts(ctx context.Context, query string, args ...interface{}) ([]*contacts.Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*contacts.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ListContacts returns a page of the user's contacts ordered by ID
func (s *Store) ListContacts(ctx context.Context, userID int64, skip, limit int) (list []*contacts.Contact, err error) {
	ctx, span := startSpan(ctx, "ListContacts", "contacts")
	defer func() { endSpan(span, err) }()

	list, err = s.queryContacts(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE user_id = $1
		ORDER BY id
		OFFSET $2 LIMIT $3`, userID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return list, nil
}

// GetContact returns a single contact, or nil if the user has no such contact
func (s *Store) GetContact(ctx context.Context, userID, id int64) (c *contacts.Contact, err error) {
	ctx, span := startSpan(ctx, "GetContact", "contacts")
	defer func() { endSpan(span, err) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1 AND user_id = $2`, id, userID)

	c, err = scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// CreateContact inserts a contact owned by userID
func (s *Store) CreateContact(ctx context.Context, userID int64, in contacts.Input) (c *contacts.Contact, err error) {
	ctx, span := startSpan(ctx, "CreateContact", "contacts")
	defer func() { endSpan(span, err) }()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO contacts (first_name, last_name, email, phone_number, birthday, additional_info, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+contactColumns,
		in.FirstName, in.LastName, in.Email, in.PhoneNumber, in.Birthday.Time, nullString(in.AdditionalInfo), userID)

	c, err = scanContact(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return c, nil
}

// UpdateContact overwrites a contact, returning nil if the user has no such contact
func (s *Store) UpdateContact(ctx context.Context, userID, id int64, in contacts.Input) (c *contacts.Contact, err error) {
	ctx, span := startSpan(ctx, "UpdateContact", "contacts")
	defer func() { endSpan(span, err) }()

	row := s.db.QueryRowContext(ctx, `
		UPDATE contacts
		SET first_name = $1, last_name = $2, email = $3, phone_number = $4, birthday = $5, additional_info = $6
		WHERE id = $7 AND user_id = $8
		RETURNING `+contactColumns,
		in.FirstName, in.LastName, in.Email, in.PhoneNumber, in.Birthday.Time, nullString(in.AdditionalInfo), id, userID)

	c, err = scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return c, nil
}

// RemoveContact deletes a contact and returns it, or nil if the user has no such contact
func (s *Store) RemoveContact(ctx context.Context, userID, id int64) (c *contacts.Contact, err error) {
	ctx, span := startSpan(ctx, "RemoveContact", "contacts")
	defer func() { endSpan(span, err) }()

	row := s.db.QueryRowContext(ctx,
		`DELETE FROM contacts WHERE id = $1 AND user_id = $2 RETURNING `+contactColumns, id, userID)

	c, err = scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove contact: %w", err)
	}
	return c, nil
}

// SearchContacts returns the user's contacts matching every non-empty filter field
func (s *Store) SearchContacts(ctx context.Context, userID int64, filter contacts.SearchFilter) (list []*contacts.Contact, err error) {
	ctx, span := startSpan(ctx, "SearchContacts", "contacts")
	defer func() { endSpan(span, err) }()

	conditions := []string{"user_id = $1"}
	args := []interface{}{userID}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("first_name", filter.FirstName)
	add("last_name", filter.LastName)
	add("email", filter.Email)

	list, err = s.queryContacts(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE `+strings.Join(conditions, " AND ")+` ORDER BY id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	return list, nil
}

// AllContacts returns every contact owned by the user
func (s *Store) AllContacts(ctx context.Context, userID int64) (list []*contacts.Contact, err error) {
	ctx, span := startSpan(ctx, "AllContacts", "contacts")
	defer func() { endSpan(span, err) }()

	list, err = s.queryContacts(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}
	return list, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
