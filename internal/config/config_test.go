package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJSON = `{
  "discord": {
    "token": "MTIzNDU2Nzg5.GhIjKl.abcdefghijklmnop",
    "channel_id": "1397255905007112200",
    "admin_user_ids": ["1397255905007112201"]
  },
  "roles": {
    "bindings": [
      {"item": "Ember Lily", "role_id": "1397255905007112243"},
      {"item": "Burning Bud", "role_id": "1397255905007112243"}
    ],
    "excluded_seeds": ["carrot", "blueberry"],
    "excluded_gear": ["trowel"]
  },
  "logging": {"level": "debug", "console": true}
}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func noEnv(string) string { return "" }

func TestLoadJSONAppliesDefaults(t *testing.T) {
	m := NewConfigManager(writeFile(t, "config.json", validJSON))
	m.SetEnv(noEnv)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.CommandPrefix != "!" {
		t.Fatalf("prefix = %q, want !", cfg.Discord.CommandPrefix)
	}
	if cfg.Inventory.URL != DefaultInventoryURL {
		t.Fatalf("inventory.url = %q", cfg.Inventory.URL)
	}
	if !cfg.Scheduler.IsEnabled() {
		t.Fatal("scheduler should default to enabled")
	}
	if cfg.ReactionRoles.PageChars != 1900 || cfg.ReactionRoles.ReactionsPerMessage != 20 {
		t.Fatalf("reaction_roles defaults = %+v", cfg.ReactionRoles)
	}
	if cfg.Health.Addr != ":3000" {
		t.Fatalf("health.addr = %q", cfg.Health.Addr)
	}
	if m.Get() != cfg {
		t.Fatal("Load should commit the config")
	}
}

func TestLoadYAMLMatchesJSON(t *testing.T) {
	yml := `
discord:
  token: MTIzNDU2Nzg5.GhIjKl.abcdefghijklmnop
  channel_id: "1397255905007112200"
roles:
  bindings:
    - item: Orange Tulip
      role_id: "1397255905007112243"
  excluded_seeds: [carrot]
scheduler:
  interval: 5m
  offset: 10s
`
	m := NewConfigManager(writeFile(t, "config.yaml", yml))
	m.SetEnv(noEnv)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Roles.Bindings[0].Item; got != "Orange Tulip" {
		t.Fatalf("binding item = %q", got)
	}
	iv, off, err := ParseAlignment(cfg.Scheduler)
	if err != nil {
		t.Fatalf("ParseAlignment: %v", err)
	}
	if iv != 5*time.Minute || off != 10*time.Second {
		t.Fatalf("alignment = %v/%v", iv, off)
	}
}

func TestParseRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	tests := []struct {
		name, file, body string
	}{
		{"unknown field", "c.json", `{"discord": {"tokn": "x"}}`},
		{"trailing json", "c.json", `{} {}`},
		{"second yaml doc", "c.yaml", "discord: {}\n---\ndiscord: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewConfigManager(writeFile(t, tt.file, tt.body))
			m.SetEnv(noEnv)
			if _, err := m.Parse(); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"TOKEN":      "OTk5.env.token",
		"CHANNEL_ID": "1397255905007119999",
		"PORT":       "8080",
	}
	m := NewConfigManager(writeFile(t, "config.json", validJSON))
	m.SetEnv(func(k string) string { return env[k] })
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Discord.Token != "OTk5.env.token" {
		t.Fatalf("token not overridden: %q", cfg.Discord.Token)
	}
	if cfg.Discord.ChannelID != "1397255905007119999" {
		t.Fatalf("channel not overridden: %q", cfg.Discord.ChannelID)
	}
	if cfg.Health.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Health.Addr)
	}
}

func TestValidateReportsFieldPaths(t *testing.T) {
	cfg := &Config{}
	cfg.Discord.Token = "Bot abc" // whitespace, one segment
	cfg.Discord.ChannelID = "general"
	cfg.Roles.Bindings = []RoleBinding{{Item: "", RoleID: "ROLE_ID_TOMATO"}}
	cfg.Roles.ExcludedGear = []string{"  "}
	cfg.Scheduler.Interval = "7m"
	ApplyDefaults(cfg)

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"discord.token",
		"discord.channel_id",
		"roles.bindings[0].item",
		"roles.bindings[0].role_id",
		"roles.excluded_gear[0]",
		"scheduler.interval",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatal("expected *FieldError in joined error")
	}
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		tok string
		ok  bool
	}{
		{"MTIz.GhI.abc", true},
		{"", false},
		{"MTIz.GhI", false},
		{"MTIz..abc", false},
		{"MTIz.GhI.abc\n", false},
	}
	for _, tt := range tests {
		err := validateToken("discord.token", tt.tok)
		if (err == nil) != tt.ok {
			t.Fatalf("validateToken(%q) err=%v, want ok=%v", tt.tok, err, tt.ok)
		}
	}
}

func TestParseAlignmentBounds(t *testing.T) {
	tests := []struct {
		interval, offset string
		ok               bool
	}{
		{"", "", true},
		{"5m", "30s", true},
		{"60m", "", true},
		{"90s", "", false},
		{"2h", "", false},
		{"5m", "5m", false},
		{"5m", "-1s", false},
	}
	for _, tt := range tests {
		_, _, err := ParseAlignment(SchedulerConfig{Interval: tt.interval, Offset: tt.offset})
		if (err == nil) != tt.ok {
			t.Fatalf("ParseAlignment(%q,%q) err=%v, want ok=%v", tt.interval, tt.offset, err, tt.ok)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	a := &Config{}
	ApplyDefaults(a)
	b := *a
	b.Logging.Level = "debug"
	b.Roles.ExcludedSeeds = []string{"carrot"}

	sections, _ := SummarizeConfigChange(a, &b)
	if strings.Join(sections, ",") != "logging,roles" {
		t.Fatalf("sections = %v", sections)
	}
	if got := RestartRequired(sections); len(got) != 1 || got[0] != "roles" {
		t.Fatalf("RestartRequired = %v", got)
	}
}
