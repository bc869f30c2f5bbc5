package logx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoggerFieldsAndWith(t *testing.T) {
	var buf bytes.Buffer
	log := FromZerolog(zerolog.New(&buf)).With(String("comp", "test"))
	log.Info("hello", Int("n", 3), Err(errors.New("boom")), Duration("took", time.Second))

	out := buf.String()
	for _, want := range []string{`"comp":"test"`, `"n":3`, `"message":"hello"`, `"level":"info"`, "boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Error("discarded")
	if Nop().IsZero() {
		t.Fatal("Nop is a configured logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace": zerolog.TraceLevel,
		"DEBUG": zerolog.DebugLevel,
		" warn": zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in, zerolog.InfoLevel); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestServiceFileSinkAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}, nil)
	defer svc.Close()

	log.Debug("hidden")
	log.Info("shown")
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	log.Debug("now visible")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(b)
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "now visible") {
		t.Fatalf("file contents:\n%s", out)
	}
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []string
	chs  []string
}

func (f *fakeSender) SendLog(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chs = append(f.chs, channelID)
	f.msgs = append(f.msgs, text)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestServiceDiscordSink(t *testing.T) {
	sender := &fakeSender{}
	svc, log := New(Config{
		Level:   "debug",
		Discord: DiscordConfig{Enabled: true, ChannelID: "1397255905007112200", MinLevel: "warn", RatePerSec: 50},
	}, nil)
	svc.SetSender(sender)

	log.Info("below threshold")
	log.Warn("fetch failed", String("url", "https://example.invalid"))

	deadline := time.Now().Add(2 * time.Second)
	for sender.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("warn line never reached the sender")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = svc.Close()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.msgs) != 1 {
		t.Fatalf("msgs = %q", sender.msgs)
	}
	if sender.chs[0] != "1397255905007112200" || !strings.HasPrefix(sender.msgs[0], "**[WARN]** fetch failed") ||
		!strings.Contains(sender.msgs[0], "url=https://example.invalid") {
		t.Fatalf("msg = %q", sender.msgs[0])
	}
}
