package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/singleflight"

	rtsup "stockbot/internal/runtime/supervisor"
	kit "stockbot/internal/transport"
	logx "stockbot/pkg/logx"
)

type Config struct {
	Token     string
	GuildID   string // empty: first guild the bot is in
	ChannelID string
	// CacheTTL bounds how stale guild emoji and role lists may be.
	CacheTTL time.Duration
	// ReadyTimeout is how long Start waits for the gateway READY.
	ReadyTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger

	s       *discordgo.Session
	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool
	ready   chan struct{}
	once    sync.Once

	// sup owns adapter goroutines (drop reporter, close-on-cancel).
	// It is created on Start() and cancelled on Stop().
	sup *rtsup.Supervisor

	droppedUpdates uint64

	sf      singleflight.Group
	cacheMu sync.Mutex
	emojis  map[string]cached[[]*discordgo.Emoji]
	roles   map[string]cached[[]*discordgo.Role]
}

type cached[T any] struct {
	at  time.Time
	val T
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 20 * time.Second
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{
		cfg:    cfg,
		log:    log.With(logx.String("comp", "discord.adapter")),
		s:      s,
		ready:  make(chan struct{}),
		emojis: map[string]cached[[]*discordgo.Emoji]{},
		roles:  map[string]cached[[]*discordgo.Role]{},
	}
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

// Supervisor returns the adapter's internal supervisor (nil if not started).
func (a *Adapter) Supervisor() *rtsup.Supervisor {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.sup
}

func (a *Adapter) registerHandlers() {
	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		a.log.Info("gateway ready", logx.String("user", r.User.Username), logx.Int("guilds", len(r.Guilds)))
		a.once.Do(func() { close(a.ready) })
	})

	a.s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		a.sendUpdate(kit.Update{
			Kind: kit.UpdateMessage,
			Message: &kit.Message{
				ID:         m.ID,
				GuildID:    m.GuildID,
				ChannelID:  m.ChannelID,
				AuthorID:   m.Author.ID,
				AuthorName: m.Author.Username,
				AuthorBot:  m.Author.Bot,
				Text:       m.Content,
			},
		})
	})

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if r.MessageReaction == nil {
			return
		}
		up := reactionUpdate(kit.UpdateReactionAdd, r.MessageReaction, a.selfID(s))
		if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
			up.Reaction.Bot = true
		}
		a.sendUpdate(up)
	})

	a.s.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
		if r.MessageReaction == nil {
			return
		}
		a.sendUpdate(reactionUpdate(kit.UpdateReactionRemove, r.MessageReaction, a.selfID(s)))
	})
}

func reactionUpdate(kind kit.UpdateKind, r *discordgo.MessageReaction, self string) kit.Update {
	return kit.Update{
		Kind: kind,
		Reaction: &kit.Reaction{
			GuildID:   r.GuildID,
			ChannelID: r.ChannelID,
			MessageID: r.MessageID,
			UserID:    r.UserID,
			EmojiName: r.Emoji.Name,
			EmojiID:   r.Emoji.ID,
			Animated:  r.Emoji.Animated,
			Bot:       self != "" && r.UserID == self,
		},
	}
}

func (a *Adapter) selfID(s *discordgo.Session) string {
	if s == nil || s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

// Start opens the gateway and waits (bounded) for READY so the guild list
// is populated before the first delivery.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.out.Store(out)
	if err := a.s.Open(); err != nil {
		var nilOut chan<- kit.Update
		a.out.Store(nilOut)
		a.runMu.Unlock()
		return err
	}
	a.running = true
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		// adapter errors should not take down the whole app; treat as best-effort.
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDropped(cap(out))
				return
			case <-ticker.C:
				a.reportDropped(cap(out))
			}
		}
	})

	select {
	case <-a.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.cfg.ReadyTimeout):
		a.log.Warn("gateway READY not received yet; continuing", logx.Duration("waited", a.cfg.ReadyTimeout))
	}
	return nil
}

func (a *Adapter) reportDropped(capacity int) {
	if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", capacity))
	}
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	a.log.Info("stopping")
	if sup != nil {
		sup.Cancel()
	}
	err := a.s.Close()

	if sup != nil {
		wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if werr := sup.Wait(wctx); werr != nil && !errors.Is(werr, context.DeadlineExceeded) && !errors.Is(werr, context.Canceled) {
			a.log.Debug("adapter supervisor exited with error", logx.Err(werr))
		}
	}
	return err
}

// SendText posts plain text with every mention suppressed.
func (a *Adapter) SendText(ctx context.Context, channelID, text string) (string, error) {
	m, err := a.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         text,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// SendLog implements logx.Sender for the log channel sink.
func (a *Adapter) SendLog(ctx context.Context, channelID, text string) error {
	_, err := a.SendText(ctx, channelID, "```\n"+text+"\n```")
	return err
}
