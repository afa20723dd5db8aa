package mail

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rolodex/pkg/auth"
	"github.com/platinummonkey/rolodex/pkg/observability"
)

type recordingSender struct {
	mu       sync.Mutex
	messages []Message
	err      error
	entered  chan struct{}
	block    chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSender) sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

func newTestCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	cfg := auth.DefaultConfig()
	cfg.SecretKey = "test-secret"
	codec, err := auth.NewTokenCodec(cfg)
	require.NoError(t, err)
	return codec
}

var tokenInLink = regexp.MustCompile(`/api/auth/confirmed_email/(\S+)`)

func TestDispatcher_Enqueue(t *testing.T) {
	sender := &recordingSender{}
	codec := newTestCodec(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	d := NewDispatcher(context.Background(), sender, codec, DispatcherConfig{Workers: 1, QueueSize: 4}, metrics, observability.NewNopLogger())

	err := d.Enqueue(context.Background(), Request{
		Kind:     KindConfirmEmail,
		Email:    "alice@example.com",
		Username: "alice",
		BaseURL:  "http://localhost:8000",
	})
	require.NoError(t, err)
	require.NoError(t, d.Close(time.Second))

	messages := sender.sent()
	require.Len(t, messages, 1)
	assert.Equal(t, "alice@example.com", messages[0].To)

	match := tokenInLink.FindStringSubmatch(messages[0].Body)
	require.Len(t, match, 2)

	subject, err := codec.Verify(match[1], auth.ScopeEmailConfirm)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EmailsTotal.WithLabelValues("confirm_email", "queued")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EmailsTotal.WithLabelValues("confirm_email", "sent")))
}

func TestDispatcher_DeliversAfterParentCancel(t *testing.T) {
	sender := &recordingSender{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(ctx, sender, newTestCodec(t), DispatcherConfig{Workers: 1, QueueSize: 4}, metrics, nil)

	// Signal context is gone while a signup is still being served
	cancel()

	require.NoError(t, d.Enqueue(context.Background(), Request{Kind: KindConfirmEmail, Email: "alice@example.com"}))
	require.NoError(t, d.Close(time.Second))

	messages := sender.sent()
	require.Len(t, messages, 1)
	assert.Equal(t, "alice@example.com", messages[0].To)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EmailsTotal.WithLabelValues("confirm_email", "sent")))
}

func TestDispatcher_SendFailureIsCounted(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay down")}
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	d := NewDispatcher(context.Background(), sender, newTestCodec(t), DispatcherConfig{Workers: 1, QueueSize: 1}, metrics, nil)

	require.NoError(t, d.Enqueue(context.Background(), Request{Kind: KindResetPassword, Email: "alice@example.com"}))
	require.NoError(t, d.Close(time.Second))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EmailsTotal.WithLabelValues("reset_password", "failed")))
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{entered: make(chan struct{}, 4), block: make(chan struct{})}
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	d := NewDispatcher(context.Background(), sender, newTestCodec(t), DispatcherConfig{Workers: 1, QueueSize: 1}, metrics, nil)
	req := Request{Kind: KindConfirmEmail, Email: "alice@example.com"}

	// The worker picks up the first message and blocks; the second waits in the queue
	require.NoError(t, d.Enqueue(context.Background(), req))
	select {
	case <-sender.entered:
	case <-time.After(time.Second):
		t.Fatal("worker never picked up the first message")
	}
	require.NoError(t, d.Enqueue(context.Background(), req))

	start := time.Now()
	err := d.Enqueue(context.Background(), req)
	assert.ErrorIs(t, err, ErrDropped)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "Enqueue must not block")

	close(sender.block)
	require.NoError(t, d.Close(time.Second))

	assert.Len(t, sender.sent(), 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EmailsTotal.WithLabelValues("confirm_email", "dropped")))
}

func TestDispatcher_EnqueueAfterClose(t *testing.T) {
	d := NewDispatcher(context.Background(), &recordingSender{}, newTestCodec(t), DispatcherConfig{}, nil, nil)
	require.NoError(t, d.Close(time.Second))

	err := d.Enqueue(context.Background(), Request{Kind: KindConfirmEmail, Email: "alice@example.com"})
	assert.ErrorIs(t, err, ErrDropped)
}

func TestDispatcher_InvalidRequest(t *testing.T) {
	d := NewDispatcher(context.Background(), &recordingSender{}, newTestCodec(t), DispatcherConfig{}, nil, nil)
	defer d.Close(time.Second)

	assert.Error(t, d.Enqueue(context.Background(), Request{Kind: KindConfirmEmail}))
	assert.Error(t, d.Enqueue(context.Background(), Request{Kind: "unknown", Email: "a@b.c"}))
}
