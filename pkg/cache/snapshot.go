package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/rolodex/pkg/auth"
)

// SnapshotVersion is the current snapshot layout
const SnapshotVersion = 1

// Snapshot is the cached form of an identity
type Snapshot struct {
	Version   int       `json:"v"`
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSnapshot copies the non-secret fields of user
func NewSnapshot(user *auth.User) Snapshot {
	return Snapshot{
		Version:   SnapshotVersion,
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Confirmed: user.Confirmed,
		CreatedAt: user.CreatedAt,
	}
}

// User rebuilds an identity. Password and refresh token are left empty.
func (s Snapshot) User() *auth.User {
	return &auth.User{
		ID:        s.ID,
		Username:  s.Username,
		Email:     s.Email,
		Avatar:    s.Avatar,
		Confirmed: s.Confirmed,
		CreatedAt: s.CreatedAt,
	}
}

// EncodeSnapshot serializes user as a current version snapshot
func EncodeSnapshot(user *auth.User) ([]byte, error) {
	return json.Marshal(NewSnapshot(user))
}

// DecodeSnapshot parses data. Any version other than SnapshotVersion is an error.
func DecodeSnapshot(data []byte) (*auth.User, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Email == "" {
		return nil, fmt.Errorf("snapshot has no email")
	}
	return s.User(), nil
}
