package config

type Config struct {
	Discord   DiscordConfig   `json:"discord"`
	Inventory InventoryConfig `json:"inventory"`

	// Scheduler controls the aligned poll loop.
	Scheduler    SchedulerConfig    `json:"scheduler"`
	Notification NotificationConfig `json:"notification"`

	// Roles is the static item -> role table plus the always-in-stock
	// exclusions. It is read once at startup and never reloaded.
	Roles         RolesConfig         `json:"roles"`
	ReactionRoles ReactionRolesConfig `json:"reaction_roles"`

	Health  HealthConfig   `json:"health"`
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

type DiscordConfig struct {
	Token string `json:"token"`

	// GuildID is optional. When empty the first guild the bot joined is used.
	GuildID      string   `json:"guild_id,omitempty"`
	ChannelID    string   `json:"channel_id"`
	AdminUserIDs []string `json:"admin_user_ids"`

	// CommandPrefix defaults to "!".
	CommandPrefix string `json:"command_prefix,omitempty"`
}

// InventoryConfig points at the upstream stock API.
//
// Timeout is a Go duration string. "0s" (or omitted) keeps the HTTP client's
// default behaviour of no client-side timeout.
type InventoryConfig struct {
	URL       string `json:"url"`
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// SchedulerConfig controls the wall-clock aligned poll loop.
//
// Defaults (when fields are omitted/zero):
//   - enabled: true
//   - interval: "5m" (whole minutes, 1..60)
//   - offset: "0s" (must be shorter than interval)
//   - timezone: local
type SchedulerConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Interval string `json:"interval,omitempty"`
	Offset   string `json:"offset,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// IsEnabled reports the effective enabled flag (default true).
func (s SchedulerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type NotificationConfig struct {
	Title            string `json:"title,omitempty"`
	Color            int    `json:"color,omitempty"`
	SeedsSection     string `json:"seeds_section,omitempty"`
	GearSection      string `json:"gear_section,omitempty"`
	SeedsPlaceholder string `json:"seeds_placeholder,omitempty"`
	GearPlaceholder  string `json:"gear_placeholder,omitempty"`
	Thumbnail        string `json:"thumbnail,omitempty"`

	// EmojiPrefix prefixes display lines with a matching custom guild emoji.
	EmojiPrefix *bool `json:"emoji_prefix,omitempty"`
}

// RoleBinding maps one item name to one role. Several items may share a role.
type RoleBinding struct {
	Item   string `json:"item"`
	RoleID string `json:"role_id"`
	Label  string `json:"label,omitempty"`
}

type RolesConfig struct {
	Bindings      []RoleBinding `json:"bindings"`
	ExcludedSeeds []string      `json:"excluded_seeds,omitempty"`
	ExcludedGear  []string      `json:"excluded_gear,omitempty"`
}

// ReactionRolesConfig shapes the setup prompt.
//
// Defaults:
//   - title: "Reaction Roles"
//   - page_chars: 1900
//   - reactions_per_message: 20 (Discord's hard cap)
//   - palette: a fixed list of unicode glyphs used when no custom emoji matches
type ReactionRolesConfig struct {
	ChannelID           string   `json:"channel_id,omitempty"`
	Title               string   `json:"title,omitempty"`
	PageChars           int      `json:"page_chars,omitempty"`
	ReactionsPerMessage int      `json:"reactions_per_message,omitempty"`
	Palette             []string `json:"palette,omitempty"`
}

// HealthConfig controls the liveness HTTP server. PORT overrides Addr.
type HealthConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"`
}

func (h HealthConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

type LoggingConfig struct {
	Level   string         `json:"level"`
	Console bool           `json:"console"`
	File    LoggingFile    `json:"file"`
	Discord LoggingDiscord `json:"discord"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingDiscord struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  string `json:"channel_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the optional persistence layer (audit trail and
// reaction-role sessions).
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/stockbot.db" }
//	"storage": { "driver": "postgres", "dsn": "postgres://bot@db/stockbot?sslmode=disable" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
