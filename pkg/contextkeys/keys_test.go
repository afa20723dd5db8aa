package contextkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestUserID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetUserID(ctx))

	ctx = WithUserID(ctx, "alice@example.com")
	assert.Equal(t, "alice@example.com", GetUserID(ctx))
}

func TestWithUser(t *testing.T) {
	type user struct{ name string }
	ctx := WithUser(context.Background(), &user{name: "alice"})

	u, ok := ctx.Value(UserKey).(*user)
	assert.True(t, ok)
	assert.Equal(t, "alice", u.name)
}
