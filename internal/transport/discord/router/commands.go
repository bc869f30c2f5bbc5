package router

import (
	"context"
	"errors"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"stockbot/internal/reactionroles"
	rtsup "stockbot/internal/runtime/supervisor"
	"stockbot/internal/status"
	kit "stockbot/internal/transport"
	logx "stockbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessAdminOnly
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Message *kit.Message
	Command string
	Args    []string
	ReqID   string

	Adapter  kit.Adapter
	Logger   logx.Logger
	Services *Services
	Prefix   string
}

// Reply sends text to the channel the command came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Message.ChannelID, text)
	return err
}

// ReactionRoles is the reaction-role engine as seen by the router.
type ReactionRoles interface {
	Setup(ctx context.Context, guildID, channelID, actorID string) (*reactionroles.Session, error)
	HandleAdd(ctx context.Context, r reactionroles.Reaction) error
	HandleRemove(ctx context.Context, r reactionroles.Reaction) error
}

type EmojiSource interface {
	GuildEmojis(ctx context.Context, guildID string) ([]reactionroles.Identity, error)
}

type Services struct {
	ReactionRoles ReactionRoles
	Emojis        EmojiSource
	Status        status.Provider
	Location      *time.Location
	// PromptChannelID is where !setuproles posts when no channel is given.
	PromptChannelID string
}

// CommandManager turns message updates into commands on a small worker
// pool, and feeds reaction updates one at a time to the reaction-role
// engine.
type CommandManager struct {
	mu       sync.RWMutex
	commands []Command
	index    map[string]int

	admins atomic.Value // []string

	log     logx.Logger
	adapter kit.Adapter
	serv    *Services
	prefix  string

	jobs      chan func()
	reactions chan kit.Update
	dropped   atomic.Uint64
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, serv *Services, prefix string, admins []string) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if prefix == "" {
		prefix = "!"
	}
	if serv == nil {
		serv = &Services{}
	}
	m := &CommandManager{
		index:     map[string]int{},
		log:       log.With(logx.String("comp", "discord.router")),
		adapter:   adapter,
		serv:      serv,
		prefix:    prefix,
		jobs:      make(chan func(), 64),
		reactions: make(chan kit.Update, 256),
	}
	m.SetAdmins(admins)
	return m
}

// SetAdmins replaces the admin allowlist.
func (m *CommandManager) SetAdmins(ids []string) {
	m.admins.Store(append([]string(nil), ids...))
}

func (m *CommandManager) isAdmin(id string) bool {
	list, _ := m.admins.Load().([]string)
	for _, a := range list {
		if a == id {
			return true
		}
	}
	return false
}

// SetRegistry installs cmds plus the built-in help command.
func (m *CommandManager) SetRegistry(cmds []Command) {
	helper := Command{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "show this help",
		Usage:       "help",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, m.helpText(req.Message.AuthorID))
		},
	}
	cmds = append(append([]Command(nil), cmds...), helper)

	index := map[string]int{}
	for i, c := range cmds {
		if c.Handle == nil {
			continue
		}
		index[strings.ToLower(c.Name)] = i
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				if _, taken := index[a]; !taken {
					index[a] = i
				}
			}
		}
	}
	m.mu.Lock()
	m.commands = cmds
	m.index = index
	m.mu.Unlock()
}

func (m *CommandManager) lookup(word string) (Command, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[strings.ToLower(word)]
	if !ok {
		return Command{}, false
	}
	return m.commands[i], true
}

func (m *CommandManager) helpText(userID string) string {
	m.mu.RLock()
	cmds := append([]Command(nil), m.commands...)
	m.mu.RUnlock()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	var b strings.Builder
	b.WriteString("📖 **Commands**\n")
	admin := m.isAdmin(userID)
	for _, c := range cmds {
		if c.Access == AccessAdminOnly && !admin {
			continue
		}
		usage := c.Usage
		if usage == "" {
			usage = c.Name
		}
		b.WriteString("`" + m.prefix + usage + "`")
		if c.Description != "" {
			b.WriteString(" - " + c.Description)
		}
		if c.Access == AccessAdminOnly {
			b.WriteString(" (admin)")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// DispatchLoop consumes updates until ctx is done or updates is closed.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	const workers = 2
	sup := rtsup.New(ctx,
		rtsup.WithLogger(m.log),
		rtsup.WithCancelOnError(false),
	)
	m.log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					m.runJob(idx, job)
				}
			}
		},
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			rtsup.WithStopOnCleanExit(true),
		)
	}

	// Reaction events are handled strictly one after another.
	sup.GoRestart("reactions.worker", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case up := <-m.reactions:
				m.handleReaction(c, up)
			}
		}
	},
		rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
		rtsup.WithStopOnCleanExit(true),
	)

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		if n := m.dropped.Load(); n > 0 {
			m.log.Warn("updates dropped (queue full)", logx.Uint64("count", n))
		}
		m.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.routeUpdate(ctx, up)
		}
	}
}

func (m *CommandManager) runJob(worker int, job func()) {
	if job == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (m *CommandManager) routeUpdate(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		m.routeMessage(ctx, up)
	case kit.UpdateReactionAdd, kit.UpdateReactionRemove:
		if up.Reaction == nil {
			return
		}
		select {
		case m.reactions <- up:
		default:
			m.dropped.Add(1)
		}
	}
}

func (m *CommandManager) handleReaction(ctx context.Context, up kit.Update) {
	rr := m.serv.ReactionRoles
	if rr == nil {
		return
	}
	r := up.Reaction
	ev := reactionroles.Reaction{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     reactionroles.FromReaction(r.EmojiName, r.EmojiID, r.Animated),
		Bot:       r.Bot,
	}
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var err error
	if up.Kind == kit.UpdateReactionAdd {
		err = rr.HandleAdd(cctx, ev)
	} else {
		err = rr.HandleRemove(cctx, ev)
	}
	switch {
	case err == nil:
	case errors.Is(err, reactionroles.ErrNoSession), errors.Is(err, reactionroles.ErrUnknownEmoji):
		m.log.Trace("reaction ignored", logx.String("message", r.MessageID), logx.Err(err))
	default:
		// Already logged by the engine.
	}
}

func (m *CommandManager) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil || msg.AuthorBot || msg.GuildID == "" {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, m.prefix) {
		return
	}
	parts := strings.Fields(strings.TrimPrefix(text, m.prefix))
	if len(parts) == 0 {
		return
	}
	cmd, ok := m.lookup(parts[0])
	if !ok {
		return
	}

	if cmd.Access == AccessAdminOnly && !m.isAdmin(msg.AuthorID) {
		_, _ = m.adapter.SendText(ctx, msg.ChannelID, "⛔ You are not allowed to use this command.")
		return
	}

	rid := uuid.NewString()[:8]
	req := &Request{
		Update:  up,
		Message: msg,
		Command: cmd.Name,
		Args:    parts[1:],
		ReqID:   rid,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.String("cmd", cmd.Name),
		),
		Services: m.serv,
		Prefix:   m.prefix,
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)

	select {
	case m.jobs <- func() { _ = final(ctx, req) }:
	default:
		m.dropped.Add(1)
		_, _ = m.adapter.SendText(ctx, msg.ChannelID, "busy, try again")
	}
}
