package mail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Kind identifies an email template
type Kind string

const (
	// KindConfirmEmail asks the user to confirm their address
	KindConfirmEmail Kind = "confirm_email"
	// KindResetPassword carries a password reset link
	KindResetPassword Kind = "reset_password"
)

// Message is a rendered plain text email
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

// Request describes an email to send
type Request struct {
	Kind     Kind
	Email    string
	Username string
	BaseURL  string
}

type templateData struct {
	Username string
	Link     string
}

var templates = map[Kind]struct {
	subject string
	path    string
	body    *template.Template
}{
	KindConfirmEmail: {
		subject: "Confirm your email",
		path:    "/api/auth/confirmed_email/",
		body: template.Must(template.New("confirm").Parse(`Hi {{.Username}},

Thanks for signing up. Please confirm your email address by opening the link below:

{{.Link}}

If you did not create an account, you can ignore this message.
`)),
	},
	KindResetPassword: {
		subject: "Reset your password",
		path:    "/api/auth/reset_password/",
		body: template.Must(template.New("reset").Parse(`Hi {{.Username}},

We received a request to reset your password. Use the link below to choose a new one:

{{.Link}}

If you did not ask for a reset, you can ignore this message.
`)),
	},
}

// Link builds the action URL for kind
func Link(kind Kind, baseURL, token string) (string, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", fmt.Errorf("unknown email kind %q", kind)
	}
	return strings.TrimRight(baseURL, "/") + tmpl.path + token, nil
}

// Render builds the message for req carrying token
func Render(req Request, token string) (Message, error) {
	tmpl, ok := templates[req.Kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", req.Kind)
	}

	link, err := Link(req.Kind, req.BaseURL, token)
	if err != nil {
		return Message{}, err
	}

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, templateData{Username: req.Username, Link: link}); err != nil {
		return Message{}, fmt.Errorf("failed to render %s email: %w", req.Kind, err)
	}

	return Message{
		Kind:    req.Kind,
		To:      req.Email,
		Subject: tmpl.subject,
		Body:    body.String(),
	}, nil
}
