// Package audit records reaction-role activity from the event bus into
// storage. Stock cycles are not recorded.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"stockbot/internal/eventbus"
	"stockbot/internal/reactionroles"
	"stockbot/internal/storage"
	logx "stockbot/pkg/logx"
)

// Appender is the slice of storage.Store the writer needs.
type Appender interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

type Writer struct {
	bus   eventbus.Bus
	store Appender
	log   logx.Logger

	WriteTimeout time.Duration
}

func NewWriter(bus eventbus.Bus, store Appender, log logx.Logger) *Writer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Writer{bus: bus, store: store, log: log.With(logx.String("comp", "audit")), WriteTimeout: 5 * time.Second}
}

// Run subscribes and writes entries until ctx is done.
func (w *Writer) Run(ctx context.Context) error {
	ch, unsub := w.bus.Subscribe(256)
	defer unsub()
	w.log.Debug("audit writer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			entry, keep := Entry(ev)
			if !keep {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, w.WriteTimeout)
			err := w.store.AppendAudit(wctx, entry)
			cancel()
			if err != nil {
				w.log.Warn("audit write failed", logx.String("type", entry.Type), logx.Err(err))
			}
		}
	}
}

// Entry maps a bus event to an audit row. keep is false for events that
// are not audited.
func Entry(ev eventbus.Event) (e storage.AuditEntry, keep bool) {
	e = storage.AuditEntry{At: ev.Time.UTC(), Type: ev.Type}
	switch d := ev.Data.(type) {
	case reactionroles.RoleEvent:
		e.SessionID = d.SessionID
		e.GuildID = d.GuildID
		e.UserID = d.UserID
		e.RoleID = d.RoleID
		e.Emoji = d.Emoji
		e.Error = d.Error
	case reactionroles.SetupEvent:
		e.SessionID = d.SessionID
		e.GuildID = d.GuildID
		e.UserID = d.CreatedBy
		meta, _ := json.Marshal(struct {
			ChannelID string   `json:"channel_id"`
			Messages  []string `json:"messages"`
			Bindings  int      `json:"bindings"`
		}{d.ChannelID, d.Messages, d.Bindings})
		e.MetaJSON = string(meta)
	default:
		return storage.AuditEntry{}, false
	}
	return e, true
}
