package contacts

import (
	"fmt"
	"net/mail"
	"regexp"
	"unicode/utf8"
)

var phonePattern = regexp.MustCompile(`^\+380\d{9}$`)

// ValidationError describes a single invalid field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the input against the contact field rules
func (in Input) Validate() error {
	if err := ValidateLength("first_name", in.FirstName, 3, 150); err != nil {
		return err
	}
	if err := ValidateLength("last_name", in.LastName, 3, 150); err != nil {
		return err
	}
	if err := ValidateEmail("email", in.Email); err != nil {
		return err
	}
	if !phonePattern.MatchString(in.PhoneNumber) {
		return &ValidationError{Field: "phone_number", Message: "must match +380XXXXXXXXX"}
	}
	if in.Birthday.IsZero() {
		return &ValidationError{Field: "birthday", Message: "is required"}
	}
	return nil
}

// ValidateLength checks that value has between min and max characters
func ValidateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %d and %d characters", min, max),
		}
	}
	return nil
}

// ValidateEmail checks that value is a bare email address
func ValidateEmail(field, value string) error {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return &ValidationError{Field: field, Message: "is not a valid email address"}
	}
	return nil
}
