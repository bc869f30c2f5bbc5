package config

import (
	"os"
	"strings"
)

const (
	DefaultInventoryURL     = "https://gagstock.gleeze.com/grow-a-garden"
	DefaultInterval         = "5m"
	DefaultCommandPrefix    = "!"
	DefaultTitle            = "🌱 Grow a Garden Stock"
	DefaultColor            = 0x22bb33
	DefaultSeedsSection     = "SEEDS STOCK"
	DefaultGearSection      = "GEAR STOCK"
	DefaultSeedsPlaceholder = "No seeds available"
	DefaultGearPlaceholder  = "No gear available"
	DefaultPromptTitle      = "Reaction Roles"
	DefaultPageChars        = 1900
	DefaultReactionsPerMsg  = 20
	DefaultHealthAddr       = ":3000"
)

// DefaultPalette is the fallback glyph order for bindings without a custom emoji.
var DefaultPalette = []string{
	"🍎", "🍊", "🍋", "🍉", "🍇", "🍓", "🫐", "🍒", "🍑", "🥭",
	"🍍", "🥥", "🥝", "🍅", "🍆", "🥑", "🥦", "🥬", "🥒", "🌶️",
	"🌽", "🥕", "🧄", "🧅", "🥔", "🍠", "🌰", "🥜", "🌻", "🌷",
	"🌹", "🌺", "🌸", "🌼", "🍄", "🌵", "🎋", "🍀", "🔧", "💧",
}

// ApplyDefaults fills omitted fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Discord.CommandPrefix) == "" {
		cfg.Discord.CommandPrefix = DefaultCommandPrefix
	}
	if strings.TrimSpace(cfg.Inventory.URL) == "" {
		cfg.Inventory.URL = DefaultInventoryURL
	}
	if strings.TrimSpace(cfg.Scheduler.Interval) == "" {
		cfg.Scheduler.Interval = DefaultInterval
	}

	n := &cfg.Notification
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Color == 0 {
		n.Color = DefaultColor
	}
	if n.SeedsSection == "" {
		n.SeedsSection = DefaultSeedsSection
	}
	if n.GearSection == "" {
		n.GearSection = DefaultGearSection
	}
	if n.SeedsPlaceholder == "" {
		n.SeedsPlaceholder = DefaultSeedsPlaceholder
	}
	if n.GearPlaceholder == "" {
		n.GearPlaceholder = DefaultGearPlaceholder
	}

	rr := &cfg.ReactionRoles
	if rr.Title == "" {
		rr.Title = DefaultPromptTitle
	}
	if rr.PageChars <= 0 {
		rr.PageChars = DefaultPageChars
	}
	if rr.ReactionsPerMessage <= 0 {
		rr.ReactionsPerMessage = DefaultReactionsPerMsg
	}
	if len(rr.Palette) == 0 {
		rr.Palette = append([]string(nil), DefaultPalette...)
	}

	if strings.TrimSpace(cfg.Health.Addr) == "" {
		cfg.Health.Addr = DefaultHealthAddr
	}
}

// applyEnv overlays the deployment environment (TOKEN, CHANNEL_ID, PORT).
func applyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("TOKEN")); v != "" {
		cfg.Discord.Token = v
	}
	if v := strings.TrimSpace(getenv("CHANNEL_ID")); v != "" {
		cfg.Discord.ChannelID = v
	}
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		cfg.Health.Addr = ":" + v
	}
}
