package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stockbot/internal/config"
	"stockbot/internal/stock"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Discord: config.DiscordConfig{
			Token:     "MTIzNDU2Nzg5.GhIjKl.abcdefghijklmnop",
			ChannelID: "1397255905007112200",
		},
		Roles: config.RolesConfig{
			Bindings: []config.RoleBinding{
				{Item: "Ember Lily", RoleID: "1397255905007112243"},
				{Item: " burning  bud ", RoleID: "1397255905007112243", Label: "Burning Bud"},
				{Item: "Carrot", RoleID: "1397255905007112244"},
			},
			ExcludedSeeds: []string{"Carrot"},
		},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestMapCheckerConfig(t *testing.T) {
	cfg := testConfig()
	cc, err := mapCheckerConfig(cfg)
	if err != nil {
		t.Fatalf("mapCheckerConfig: %v", err)
	}
	if g, ok := cc.Registry.Lookup("Burning Bud"); !ok || g != "1397255905007112243" {
		t.Fatalf("lookup burning bud = %q %v", g, ok)
	}
	if !cc.Exclusions.Excluded(stock.Seeds, "carrot") {
		t.Fatal("carrot should be excluded from seeds")
	}
	if !cc.EmojiPrefix || cc.Render.Title != config.DefaultTitle {
		t.Fatalf("checker config = %+v", cc)
	}

	off := false
	cfg.Notification.EmojiPrefix = &off
	cfg.Roles.Bindings = append(cfg.Roles.Bindings, config.RoleBinding{Item: "carrot", RoleID: "1397255905007112299"})
	if _, err := mapCheckerConfig(cfg); err == nil || !strings.Contains(err.Error(), "roles.bindings") {
		t.Fatalf("conflicting binding accepted: %v", err)
	}
}

func TestMapReactionRolesConfig(t *testing.T) {
	cfg := testConfig()
	cc, err := mapCheckerConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	rc := mapReactionRolesConfig(cfg, cc.Registry)
	if len(rc.Bindings) != 3 || rc.Bindings[1].Key != "burning bud" || rc.Bindings[1].Label != "Burning Bud" {
		t.Fatalf("bindings = %+v", rc.Bindings)
	}
	if rc.Compose.PerMessage != 20 || rc.Compose.PageChars != 1900 || len(rc.Compose.Palette) == 0 {
		t.Fatalf("compose = %+v", rc.Compose)
	}
}

func TestMapStorageConfig(t *testing.T) {
	cases := []struct {
		name    string
		in      *config.StorageConfig
		enabled bool
		driver  string
		wantErr bool
	}{
		{"absent", nil, false, "", false},
		{"none", &config.StorageConfig{Driver: "None"}, false, "", false},
		{"sqlite", &config.StorageConfig{Driver: "SQLite", Path: "x.db", BusyTimeout: "2s"}, true, "sqlite", false},
		{"bad timeout", &config.StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "soon"}, false, "", true},
	}
	for _, tc := range cases {
		cfg := testConfig()
		cfg.Storage = tc.in
		sc, enabled, err := mapStorageConfig(cfg)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
		if enabled != tc.enabled || sc.Driver != tc.driver {
			t.Fatalf("%s: got %+v enabled=%v", tc.name, sc, enabled)
		}
	}
}

func TestSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Interval = "10m"
	cfg.Scheduler.Offset = "30s"
	cfg.Scheduler.Timezone = "UTC"
	s, err := Schedule(cfg)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 3, 0, 0, time.UTC)
	if got := s.Next(now); !got.Equal(time.Date(2026, 1, 1, 12, 10, 30, 0, time.UTC)) {
		t.Fatalf("Next = %v", got)
	}

	cfg.Scheduler.Timezone = "Mars/Olympus"
	if _, err := Schedule(cfg); err == nil {
		t.Fatal("bad timezone accepted")
	}
}

func TestNewWiresComponents(t *testing.T) {
	t.Setenv("TOKEN", "")
	t.Setenv("CHANNEL_ID", "")
	t.Setenv("PORT", "")

	dir := t.TempDir()
	body := `{
  "discord": {"token": "MTIzNDU2Nzg5.GhIjKl.abcdefghijklmnop", "channel_id": "1397255905007112200"},
  "roles": {"bindings": [{"item": "Ember Lily", "role_id": "1397255905007112243"}]},
  "scheduler": {"interval": "5m"},
  "health": {"addr": "127.0.0.1:0"},
  "storage": {"driver": "file", "path": "` + filepath.ToSlash(filepath.Join(dir, "state")) + `"}
}`
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.store.Close()

	if a.loop == nil || a.audit == nil || a.health == nil || a.store == nil {
		t.Fatalf("components missing: loop=%v audit=%v health=%v store=%v", a.loop != nil, a.audit != nil, a.health != nil, a.store != nil)
	}
	st := a.Status()
	if !st.SchedulerEnabled || st.Sessions != 0 || st.Scheduler.Schedule != "*/5 * * * * +0s" {
		t.Fatalf("status = %+v", st)
	}
}
