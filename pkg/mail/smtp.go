package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Sender delivers a rendered message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Addr          string
	User          string
	Password      string
	From          string
	UseTLS        bool
	Timeout       time.Duration
	SubjectPrefix string
}

// SMTPSender sends mail through an SMTP relay
type SMTPSender struct {
	addr       string
	auth       smtp.Auth
	useTLS     bool
	timeout    time.Duration
	from       string
	subjPrefix string
	logger     logrus.FieldLogger
}

// NewSMTPSender creates an SMTP sender. PLAIN auth is used when credentials are set.
func NewSMTPSender(cfg SMTPConfig, logger logrus.FieldLogger) *SMTPSender {
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host(cfg.Addr))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SMTPSender{
		addr:       cfg.Addr,
		auth:       auth,
		useTLS:     cfg.UseTLS,
		timeout:    timeout,
		from:       cfg.From,
		subjPrefix: cfg.SubjectPrefix,
		logger:     logger.WithField("component", "mail.smtp"),
	}
}

// Send delivers msg, honoring ctx for the dial and the overall deadline
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	subject := strings.TrimSpace(s.subjPrefix + " " + msg.Subject)
	data := buildMessage(s.from, msg.To, subject, msg.Body)

	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{
		"smtp_addr": s.addr,
		"tls":       s.useTLS,
		"to":        msg.To,
		"kind":      msg.Kind,
	})

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if s.useTLS {
		conn = tls.Client(conn, &tls.Config{ServerName: host(s.addr)})
	}

	c, err := smtp.NewClient(conn, host(s.addr))
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = c.Close() }()

	if !s.useTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: host(s.addr)}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(s.auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(s.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err = w.Write(data); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	if err := c.Quit(); err != nil {
		log.WithError(err).Debug("smtp QUIT failed")
	}

	log.WithField("elapsed", time.Since(start)).Info("Email sent")
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(
		"From: " + from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" + strings.ReplaceAll(body, "\n", "\r\n") + "\r\n")
}

func host(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}

// LogSender logs messages instead of sending them, for development without an SMTP relay
type LogSender struct {
	logger logrus.FieldLogger
}

// NewLogSender creates a LogSender
func NewLogSender(logger logrus.FieldLogger) *LogSender {
	return &LogSender{logger: logger.WithField("component", "mail.log")}
}

// Send logs msg
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"kind":    msg.Kind,
		"subject": msg.Subject,
	}).Info(msg.Body)
	return nil
}
