package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLink(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		baseURL  string
		expected string
	}{
		{"confirm", KindConfirmEmail, "http://localhost:8000", "http://localhost:8000/api/auth/confirmed_email/tok"},
		{"confirm trailing slash", KindConfirmEmail, "http://localhost:8000/", "http://localhost:8000/api/auth/confirmed_email/tok"},
		{"reset", KindResetPassword, "https://rolodex.example.com", "https://rolodex.example.com/api/auth/reset_password/tok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := Link(tt.kind, tt.baseURL, "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, link)
		})
	}

	_, err := Link(Kind("newsletter"), "http://x", "tok")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	msg, err := Render(Request{
		Kind:     KindConfirmEmail,
		Email:    "alice@example.com",
		Username: "alice",
		BaseURL:  "http://localhost:8000/",
	}, "tok")
	require.NoError(t, err)

	assert.Equal(t, KindConfirmEmail, msg.Kind)
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Confirm your email", msg.Subject)
	assert.Contains(t, msg.Body, "Hi alice,")
	assert.Contains(t, msg.Body, "http://localhost:8000/api/auth/confirmed_email/tok")

	msg, err = Render(Request{Kind: KindResetPassword, Email: "bob@example.com", Username: "bob", BaseURL: "http://h"}, "t2")
	require.NoError(t, err)
	assert.Equal(t, "Reset your password", msg.Subject)
	assert.Contains(t, msg.Body, "http://h/api/auth/reset_password/t2")

	_, err = Render(Request{Kind: "unknown"}, "tok")
	assert.Error(t, err)
}

func TestBuildMessage(t *testing.T) {
	data := string(buildMessage("noreply@example.com", "alice@example.com", "Hello", "line1\nline2"))

	assert.Contains(t, data, "From: noreply@example.com\r\n")
	assert.Contains(t, data, "To: alice@example.com\r\n")
	assert.Contains(t, data, "Subject: Hello\r\n")
	assert.Contains(t, data, "\r\n\r\nline1\r\nline2\r\n")
}

func TestHost(t *testing.T) {
	assert.Equal(t, "smtp.example.com", host("smtp.example.com:587"))
	assert.Equal(t, "smtp.example.com", host("smtp.example.com"))
}
