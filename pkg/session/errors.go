package session

import (
	"errors"
)

// Error kinds surfaced to API clients
var (
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrBadRequest         = errors.New("bad request")
	ErrUnprocessableToken = errors.New("unprocessable token")
	ErrNotFound           = errors.New("not found")
)

// Messages returned to clients
const (
	MsgAccountExists       = "Account already exists"
	MsgInvalidEmail        = "Invalid email"
	MsgEmailNotConfirmed   = "Email not confirmed"
	MsgInvalidPassword     = "Invalid password"
	MsgInvalidEmailToken   = "Invalid token for email verification"
	MsgVerificationError   = "Verification error"
	MsgAlreadyConfirmed    = "Your email is already confirmed"
	MsgEmailConfirmed      = "Email confirmed"
	MsgCheckEmail          = "Check your email for confirmation."
	MsgPasswordsDoNotMatch = "Passwords do not match!"
	MsgPasswordReset       = "Password reset successfully"
	MsgInvalidCredentials  = "Could not validate credentials"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgUserNotFound        = "User not found"
)

// Error is a client-facing failure with a stable message
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap lets errors.Is match on Kind
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Message returns the client-facing message of err, or "" if err is not an *Error
func Message(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
