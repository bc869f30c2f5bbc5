package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string        // file, sqlite
	DSN         string        // postgres
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one reaction-role action or setup.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At        time.Time `json:"at"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	GuildID   string    `json:"guild_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	RoleID    string    `json:"role_id,omitempty"`
	Emoji     string    `json:"emoji,omitempty"`
	Error     string    `json:"error,omitempty"`
	MetaJSON  string    `json:"meta,omitempty"`
}

// SessionRecord is a posted reaction-role session. Data is the owner's
// JSON encoding; storage does not interpret it.
type SessionRecord struct {
	ID        string    `json:"id"`
	GuildID   string    `json:"guild_id"`
	ChannelID string    `json:"channel_id"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Data      []byte    `json:"data"`
}

// Store is the persistence API used by the audit writer and reactionroles.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// SaveSession inserts or replaces the record with the same ID.
	SaveSession(ctx context.Context, r SessionRecord) error
	// LoadSessions returns every saved session, oldest first.
	LoadSessions(ctx context.Context) ([]SessionRecord, error)
	Close() error
}
