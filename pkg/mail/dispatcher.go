package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/async"
	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/observability"
)

// ErrDropped is returned by Enqueue when the delivery queue is full or closed
var ErrDropped = errors.New("email dropped")

// TokenIssuer issues email scoped tokens
type TokenIssuer interface {
	IssueEmail(subject string) (string, error)
}

var _ TokenIssuer = (*auth.TokenCodec)(nil)

// DispatcherConfig sizes the delivery pool
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher renders account emails and delivers them in the background
type Dispatcher struct {
	sender  Sender
	tokens  TokenIssuer
	pool    *async.WorkerPool
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// NewDispatcher starts the delivery pool. Cancelling ctx does not stop delivery;
// Close drains the queue and owns cancellation.
func NewDispatcher(ctx context.Context, sender Sender, tokens TokenIssuer, cfg DispatcherConfig, metrics *observability.Metrics, logger logrus.FieldLogger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return &Dispatcher{
		sender:  sender,
		tokens:  tokens,
		pool:    async.NewWorkerPool(context.WithoutCancel(ctx), cfg.Workers, cfg.QueueSize, "email delivery", cfg.SendTimeout, logger),
		metrics: metrics,
		logger:  logger.WithField("component", "mail.dispatcher"),
	}
}

// Enqueue renders req with a fresh email token and queues it for delivery without blocking
func (d *Dispatcher) Enqueue(ctx context.Context, req Request) error {
	if req.Email == "" {
		return fmt.Errorf("email recipient is required")
	}

	token, err := d.tokens.IssueEmail(req.Email)
	if err != nil {
		return fmt.Errorf("failed to issue email token: %w", err)
	}

	msg, err := Render(req, token)
	if err != nil {
		return err
	}

	kind := string(req.Kind)
	err = d.pool.TrySubmit(func(ctx context.Context) error {
		if err := d.sender.Send(ctx, msg); err != nil {
			d.metrics.RecordEmail(kind, "failed")
			return fmt.Errorf("failed to send %s email to %s: %w", kind, msg.To, err)
		}
		d.metrics.RecordEmail(kind, "sent")
		return nil
	})
	if err != nil {
		d.metrics.RecordEmail(kind, "dropped")
		observability.LoggerFromContext(ctx, d.logger).
			WithError(err).
			WithFields(logrus.Fields{"to": req.Email, "kind": kind}).
			Warn("Email queue rejected message")
		return fmt.Errorf("%w: %v", ErrDropped, err)
	}

	d.metrics.RecordEmail(kind, "queued")
	return nil
}

// Close stops accepting messages and waits up to timeout for queued ones to be sent
func (d *Dispatcher) Close(timeout time.Duration) error {
	return d.pool.Shutdown(timeout)
}
