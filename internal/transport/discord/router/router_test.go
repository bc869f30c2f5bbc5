package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"stockbot/internal/reactionroles"
	"stockbot/internal/status"
	kit "stockbot/internal/transport"
	logx "stockbot/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) SendText(_ context.Context, _, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return fmt.Sprintf("m%d", len(f.sent)), nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeRoles struct {
	mu        sync.Mutex
	setupArgs []string
	adds      []reactionroles.Reaction
	removes   []reactionroles.Reaction
	err       error
}

func (f *fakeRoles) Setup(_ context.Context, guildID, channelID, actorID string) (*reactionroles.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupArgs = []string{guildID, channelID, actorID}
	return &reactionroles.Session{Messages: []reactionroles.PostedPage{{MessageID: "p1", Entries: make([]reactionroles.Entry, 3)}}}, nil
}

func (f *fakeRoles) HandleAdd(_ context.Context, r reactionroles.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, r)
	return f.err
}

func (f *fakeRoles) HandleRemove(_ context.Context, r reactionroles.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, r)
	return f.err
}

type fakeEmojis []reactionroles.Identity

func (f fakeEmojis) GuildEmojis(context.Context, string) ([]reactionroles.Identity, error) {
	return f, nil
}

func newTestManager(t *testing.T, serv *Services) (*CommandManager, *fakeAdapter) {
	t.Helper()
	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, serv, "!", []string{"admin"})
	m.SetRegistry(Builtins())
	return m, ad
}

func message(author, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ID: "1", GuildID: "g", ChannelID: "c", AuthorID: author, Text: text,
	}}
}

// run routes one message and executes the queued job, if any.
func run(m *CommandManager, up kit.Update) {
	m.routeMessage(context.Background(), up)
	select {
	case job := <-m.jobs:
		job()
	default:
	}
}

func TestSetupRolesAdminOnly(t *testing.T) {
	rr := &fakeRoles{}
	m, ad := newTestManager(t, &Services{ReactionRoles: rr, PromptChannelID: "roles"})

	run(m, message("someone", "!setuproles"))
	if rr.setupArgs != nil {
		t.Fatal("non-admin triggered setup")
	}
	if got := ad.texts(); len(got) != 1 || !strings.Contains(got[0], "not allowed") {
		t.Fatalf("replies = %q", got)
	}

	run(m, message("admin", "!setuproles"))
	if strings.Join(rr.setupArgs, ",") != "g,roles,admin" {
		t.Fatalf("setup args = %v", rr.setupArgs)
	}

	run(m, message("admin", "!SetupRoles <#555>"))
	if rr.setupArgs[1] != "555" {
		t.Fatalf("channel arg = %v", rr.setupArgs)
	}
	if got := ad.texts(); !strings.Contains(got[len(got)-1], "3 roles on 1 message") {
		t.Fatalf("reply = %q", got[len(got)-1])
	}
}

func TestRouteIgnores(t *testing.T) {
	rr := &fakeRoles{}
	m, ad := newTestManager(t, &Services{ReactionRoles: rr})

	bot := message("admin", "!setuproles")
	bot.Message.AuthorBot = true
	dm := message("admin", "!setuproles")
	dm.Message.GuildID = ""

	for _, up := range []kit.Update{bot, dm, message("admin", "setuproles"), message("admin", "!unknown"), message("admin", "!")} {
		run(m, up)
	}
	if rr.setupArgs != nil || len(ad.texts()) != 0 {
		t.Fatalf("expected silence, got setup=%v replies=%q", rr.setupArgs, ad.texts())
	}
}

func TestListEmojisChunks(t *testing.T) {
	var emojis fakeEmojis
	for i := 0; i < 60; i++ {
		emojis = append(emojis, reactionroles.CustomEmoji(fmt.Sprintf("emoji_number_%02d", i), fmt.Sprintf("12345678901234567%02d", i), i%2 == 0))
	}
	m, ad := newTestManager(t, &Services{Emojis: emojis})
	run(m, message("anyone", "!listemojis"))

	got := ad.texts()
	if len(got) < 2 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	lines := 0
	for _, msg := range got {
		if !strings.HasPrefix(msg, emojiListHeader+"\n") {
			t.Fatalf("chunk without header: %q", msg[:40])
		}
		if len([]rune(msg)) > 2000 {
			t.Fatalf("chunk too long: %d", len([]rune(msg)))
		}
		lines += strings.Count(msg, "\n")
	}
	if lines != 60 {
		t.Fatalf("lines = %d, want 60", lines)
	}
	if !strings.Contains(got[0], "• emoji_number_00 → <a:emoji_number_00:1234567890123456700> (ID: `1234567890123456700`, Animated)") {
		t.Fatalf("first chunk = %q", got[0])
	}
}

func TestListEmojisEmpty(t *testing.T) {
	m, ad := newTestManager(t, &Services{Emojis: fakeEmojis{}})
	run(m, message("anyone", "!listemojis"))
	if got := ad.texts(); len(got) != 1 || got[0] != "❌ No custom emojis found in this server." {
		t.Fatalf("replies = %q", got)
	}
}

func TestStatusAndHelp(t *testing.T) {
	snap := status.Snapshot{Uptime: "1m", SchedulerEnabled: true, Sessions: 2}
	snap.Scheduler.NextWake = time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	m, ad := newTestManager(t, &Services{
		Status:   status.ProviderFunc(func() status.Snapshot { return snap }),
		Location: time.UTC,
	})
	run(m, message("anyone", "!status"))
	run(m, message("anyone", "!help"))
	run(m, message("admin", "!h"))

	got := ad.texts()
	if len(got) != 3 {
		t.Fatalf("replies = %q", got)
	}
	if !strings.Contains(got[0], "Next check: 12:10:00") || !strings.Contains(got[0], "Reaction-role sessions: 2") {
		t.Fatalf("status = %q", got[0])
	}
	if strings.Contains(got[1], "setuproles") {
		t.Fatalf("admin command shown to non-admin: %q", got[1])
	}
	if !strings.Contains(got[2], "`!setuproles [#channel]`") {
		t.Fatalf("admin help = %q", got[2])
	}
}

func TestReactionsReachEngine(t *testing.T) {
	rr := &fakeRoles{err: reactionroles.ErrNoSession}
	m, _ := newTestManager(t, &Services{ReactionRoles: rr})
	ctx := context.Background()

	add := kit.Update{Kind: kit.UpdateReactionAdd, Reaction: &kit.Reaction{MessageID: "p1", UserID: "u", EmojiName: "carrot", EmojiID: "9"}}
	rem := kit.Update{Kind: kit.UpdateReactionRemove, Reaction: &kit.Reaction{MessageID: "p1", UserID: "u", EmojiName: "🌱"}}
	m.handleReaction(ctx, add)
	m.handleReaction(ctx, rem)

	if len(rr.adds) != 1 || !rr.adds[0].Emoji.Equal(reactionroles.CustomEmoji("carrot", "9", false)) {
		t.Fatalf("adds = %+v", rr.adds)
	}
	if len(rr.removes) != 1 || rr.removes[0].Emoji.Kind != reactionroles.KindUnicode {
		t.Fatalf("removes = %+v", rr.removes)
	}
}

func TestDispatchLoopStops(t *testing.T) {
	rr := &fakeRoles{err: errors.New("boom")}
	m, _ := newTestManager(t, &Services{ReactionRoles: rr})
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 1)
	done := make(chan error, 1)
	go func() { done <- m.DispatchLoop(ctx, updates) }()

	updates <- kit.Update{Kind: kit.UpdateReactionAdd, Reaction: &kit.Reaction{MessageID: "x", UserID: "u", EmojiName: "🌱"}}
	deadline := time.After(2 * time.Second)
	for {
		rr.mu.Lock()
		n := len(rr.adds)
		rr.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reaction never handled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("DispatchLoop = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("DispatchLoop did not stop")
	}
}
