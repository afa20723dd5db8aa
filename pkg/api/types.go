package api

import (
	"time"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/contacts"
)

// SignupDetail is returned alongside a newly created user
const SignupDetail = "User successfully created. Check your email for confirmation."

// SignupRequest is the body of POST /api/auth/signup
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks field lengths and email syntax
func (r SignupRequest) Validate() error {
	if err := contacts.ValidateLength("username", r.Username, 3, 50); err != nil {
		return err
	}
	if err := contacts.ValidateEmail("email", r.Email); err != nil {
		return err
	}
	return contacts.ValidateLength("password", r.Password, 4, 12)
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
	}
}

// SignupResponse is the body of a successful signup
type SignupResponse struct {
	User   UserResponse `json:"user"`
	Detail string       `json:"detail"`
}

// RequestEmailRequest is the body of the request_email and request_reset_password routes
type RequestEmailRequest struct {
	Email string `json:"email"`
}

// Validate checks the email syntax
func (r RequestEmailRequest) Validate() error {
	return contacts.ValidateEmail("email", r.Email)
}

// ResetPasswordRequest is the body of POST /api/auth/reset_password/{token}
type ResetPasswordRequest struct {
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

// Validate checks the new password length
func (r ResetPasswordRequest) Validate() error {
	if err := contacts.ValidateLength("password1", r.Password1, 4, 12); err != nil {
		return err
	}
	return contacts.ValidateLength("password2", r.Password2, 4, 12)
}
