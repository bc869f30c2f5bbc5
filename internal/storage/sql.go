package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	logx "stockbot/pkg/logx"
)

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqlStore backs both sqlite and postgres. Queries are written with "?"
// placeholders and rebound for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	log      logx.Logger
	numbered bool
}

func (s *sqlStore) rebind(q string) string {
	if !s.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) migrate(ctx context.Context, ddl string) error {
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO audit(at, type, session_id, guild_id, user_id, role_id, emoji, err, meta)
		 VALUES(?,?,?,?,?,?,?,?,?)`),
		e.At.UTC().Format(tsLayout), e.Type, nullStr(e.SessionID), nullStr(e.GuildID),
		nullStr(e.UserID), nullStr(e.RoleID), nullStr(e.Emoji), nullStr(e.Error), nullStr(e.MetaJSON),
	)
	return err
}

func (s *sqlStore) SaveSession(ctx context.Context, r SessionRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO sessions(id, guild_id, channel_id, created_by, created_at, data)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET guild_id=excluded.guild_id, channel_id=excluded.channel_id,
		   created_by=excluded.created_by, data=excluded.data`),
		r.ID, r.GuildID, r.ChannelID, nullStr(r.CreatedBy), r.CreatedAt.UTC().Format(tsLayout), string(r.Data),
	)
	return err
}

func (s *sqlStore) LoadSessions(ctx context.Context) ([]SessionRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, channel_id, COALESCE(created_by, ''), created_at, data FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			r       SessionRecord
			created string
			data    string
		)
		if err := rows.Scan(&r.ID, &r.GuildID, &r.ChannelID, &r.CreatedBy, &created, &data); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(tsLayout, created); perr == nil {
			r.CreatedAt = t
		} else {
			s.log.Debug("bad session timestamp", logx.String("id", r.ID), logx.Err(perr))
		}
		r.Data = []byte(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
