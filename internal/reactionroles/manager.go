// Package reactionroles binds emoji reactions on posted prompt messages to
// role grants and revocations.
package reactionroles

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stockbot/internal/eventbus"
	"stockbot/internal/stock"
	"stockbot/internal/storage"
	logx "stockbot/pkg/logx"
)

var (
	// ErrNoSession means the reaction is on a message no session owns.
	ErrNoSession = errors.New("reactionroles: no session for message")
	// ErrUnknownEmoji means the emoji is not bound on that message.
	ErrUnknownEmoji = errors.New("reactionroles: emoji not bound")
	// ErrActorNotFound is returned by Members when the user cannot be resolved.
	ErrActorNotFound = errors.New("reactionroles: member not found")
	// ErrMembership wraps a failed grant or revoke.
	ErrMembership = errors.New("reactionroles: membership change failed")
)

// Member is the part of a guild member the engine needs.
type Member struct {
	UserID string
	Bot    bool
	Roles  []stock.GroupID
}

func (m Member) Has(g stock.GroupID) bool {
	for _, r := range m.Roles {
		if r == g {
			return true
		}
	}
	return false
}

// Members is the membership collaborator (guild member API).
type Members interface {
	Member(ctx context.Context, guildID, userID string) (Member, error)
	AddRole(ctx context.Context, guildID, userID string, role stock.GroupID) error
	RemoveRole(ctx context.Context, guildID, userID string, role stock.GroupID) error
}

// Poster publishes prompt pages and attaches their reactions.
type Poster interface {
	GuildEmojis(ctx context.Context, guildID string) ([]Identity, error)
	PostPrompt(ctx context.Context, channelID string, p Page) (messageID string, err error)
	React(ctx context.Context, channelID, messageID string, e Identity) error
}

// Store persists sessions; storage.Store satisfies it.
type Store interface {
	SaveSession(ctx context.Context, r storage.SessionRecord) error
	LoadSessions(ctx context.Context) ([]storage.SessionRecord, error)
}

// Reaction is one incoming add or remove event.
type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     Identity
	// Bot is set when the transport already knows the actor is automated.
	Bot bool
}

// RoleEvent is the bus payload for grants, revokes and failures.
type RoleEvent struct {
	SessionID string `json:"session_id"`
	GuildID   string `json:"guild_id"`
	UserID    string `json:"user_id"`
	RoleID    string `json:"role_id"`
	Emoji     string `json:"emoji"`
	Error     string `json:"error,omitempty"`
}

// SetupEvent is the bus payload for a posted session.
type SetupEvent struct {
	SessionID string   `json:"session_id"`
	GuildID   string   `json:"guild_id"`
	ChannelID string   `json:"channel_id"`
	CreatedBy string   `json:"created_by"`
	Messages  []string `json:"messages"`
	Bindings  int      `json:"bindings"`
}

type Config struct {
	Bindings []stock.Binding
	Compose  ComposeOptions
	// ReactEvery paces reaction attachment during setup.
	ReactEvery time.Duration
}

type Manager struct {
	cfg     Config
	poster  Poster
	members Members
	store   Store
	bus     eventbus.Bus
	log     logx.Logger
	limiter *rate.Limiter

	mu        sync.RWMutex
	sessions  []*Session
	byMessage map[string]*Session
}

func NewManager(cfg Config, poster Poster, members Members, store Store, bus eventbus.Bus, log logx.Logger) *Manager {
	if cfg.ReactEvery <= 0 {
		cfg.ReactEvery = 300 * time.Millisecond
	}
	return &Manager{
		cfg:       cfg,
		poster:    poster,
		members:   members,
		store:     store,
		bus:       bus,
		log:       log.With(logx.String("comp", "reactionroles")),
		limiter:   rate.NewLimiter(rate.Every(cfg.ReactEvery), 1),
		byMessage: map[string]*Session{},
	}
}

// Setup composes the prompt, posts every page and attaches one reaction per
// binding. A reaction that fails to attach is logged; the binding still
// works if a user adds that emoji by hand. If a later page fails to post,
// the pages already posted stay active and the error is returned.
func (m *Manager) Setup(ctx context.Context, guildID, channelID, actorID string) (*Session, error) {
	emojis, err := m.poster.GuildEmojis(ctx, guildID)
	if err != nil {
		m.log.Warn("guild emoji lookup failed, using palette only", logx.String("guild", guildID), logx.Err(err))
		emojis = nil
	}
	pages, err := Compose(m.cfg.Bindings, LookupIn(emojis), m.cfg.Compose)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errors.New("reactionroles: no role bindings configured")
	}

	sess := &Session{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		ChannelID: channelID,
		CreatedBy: actorID,
		CreatedAt: time.Now().UTC(),
	}
	var postErr error
	for i, p := range pages {
		msgID, err := m.poster.PostPrompt(ctx, channelID, p)
		if err != nil {
			postErr = fmt.Errorf("post page %d/%d: %w", i+1, len(pages), err)
			break
		}
		for _, e := range p.Entries {
			if err := m.limiter.Wait(ctx); err != nil {
				postErr = err
				break
			}
			if err := m.poster.React(ctx, channelID, msgID, e.Emoji); err != nil {
				m.log.Warn("attach reaction failed",
					logx.String("message", msgID),
					logx.String("emoji", e.Emoji.String()),
					logx.Err(err),
				)
			}
		}
		sess.Messages = append(sess.Messages, PostedPage{MessageID: msgID, Entries: p.Entries})
		if postErr != nil {
			break
		}
	}
	if len(sess.Messages) == 0 {
		return nil, postErr
	}

	m.register(sess)
	m.persist(ctx, sess)

	ids := make([]string, 0, len(sess.Messages))
	for _, p := range sess.Messages {
		ids = append(ids, p.MessageID)
	}
	m.publish(eventbus.TypeSessionSetup, SetupEvent{
		SessionID: sess.ID,
		GuildID:   guildID,
		ChannelID: channelID,
		CreatedBy: actorID,
		Messages:  ids,
		Bindings:  sess.Bindings(),
	})
	m.log.Info("reaction-role session posted",
		logx.String("session", sess.ID),
		logx.String("channel", channelID),
		logx.Int("pages", len(sess.Messages)),
		logx.Int("bindings", sess.Bindings()),
	)
	return sess, postErr
}

// Restore re-attaches sessions saved by earlier runs.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	recs, err := m.store.LoadSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load sessions: %w", err)
	}
	n := 0
	for _, r := range recs {
		s, err := sessionFromRecord(r)
		if err != nil {
			m.log.Warn("skipping unreadable session", logx.String("session", r.ID), logx.Err(err))
			continue
		}
		m.register(s)
		n++
	}
	if n > 0 {
		m.log.Info("reaction-role sessions restored", logx.Int("count", n))
	}
	return n, nil
}

func (m *Manager) register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
	for _, p := range s.Messages {
		m.byMessage[p.MessageID] = s
	}
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	if m.store == nil {
		return
	}
	rec, err := s.record()
	if err == nil {
		err = m.store.SaveSession(ctx, rec)
	}
	if err != nil {
		m.log.Warn("session not persisted", logx.String("session", s.ID), logx.Err(err))
	}
}

// Sessions reports how many sessions are active.
func (m *Manager) Sessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// HandleAdd grants the bound role unless the actor already holds it.
func (m *Manager) HandleAdd(ctx context.Context, r Reaction) error {
	return m.handle(ctx, r, true)
}

// HandleRemove revokes the bound role if the actor holds it.
func (m *Manager) HandleRemove(ctx context.Context, r Reaction) error {
	return m.handle(ctx, r, false)
}

// handle returns ErrNoSession or ErrUnknownEmoji for events that are not
// ours, and a wrapped ErrMembership when the mutation fails. Every failure
// is already logged; callers only need the class.
func (m *Manager) handle(ctx context.Context, r Reaction, grant bool) error {
	if r.Bot {
		return nil
	}
	m.mu.RLock()
	sess := m.byMessage[r.MessageID]
	m.mu.RUnlock()
	if sess == nil {
		return ErrNoSession
	}
	entry, ok := sess.entry(r.MessageID, r.Emoji)
	if !ok {
		return ErrUnknownEmoji
	}

	log := m.log.With(
		logx.String("session", sess.ID),
		logx.String("user", r.UserID),
		logx.String("role", string(entry.Group)),
	)
	ev := RoleEvent{
		SessionID: sess.ID,
		GuildID:   sess.GuildID,
		UserID:    r.UserID,
		RoleID:    string(entry.Group),
		Emoji:     entry.Emoji.String(),
	}

	mem, err := m.members.Member(ctx, sess.GuildID, r.UserID)
	if errors.Is(err, ErrActorNotFound) {
		log.Debug("reaction from unresolved member dropped")
		return nil
	}
	if err != nil {
		return m.failed(log, ev, fmt.Errorf("%w: lookup: %w", ErrMembership, err))
	}
	if mem.Bot {
		return nil
	}

	has := mem.Has(entry.Group)
	switch {
	case grant && has, !grant && !has:
		log.Debug("membership already in desired state", logx.Bool("grant", grant))
		return nil
	case grant:
		if err := m.members.AddRole(ctx, sess.GuildID, r.UserID, entry.Group); err != nil {
			return m.failed(log, ev, fmt.Errorf("%w: grant: %w", ErrMembership, err))
		}
		log.Info("role granted", logx.String("item", entry.Key))
		m.publish(eventbus.TypeRoleGranted, ev)
	default:
		// Aliased bindings share one role. Removing any of their emoji
		// revokes it, even while another aliased reaction is still present.
		if err := m.members.RemoveRole(ctx, sess.GuildID, r.UserID, entry.Group); err != nil {
			return m.failed(log, ev, fmt.Errorf("%w: revoke: %w", ErrMembership, err))
		}
		log.Info("role revoked", logx.String("item", entry.Key))
		m.publish(eventbus.TypeRoleRevoked, ev)
	}
	return nil
}

func (m *Manager) failed(log logx.Logger, ev RoleEvent, err error) error {
	log.Warn("membership change failed", logx.Err(err))
	ev.Error = err.Error()
	m.publish(eventbus.TypeRoleFailed, ev)
	return err
}

func (m *Manager) publish(typ string, data any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
