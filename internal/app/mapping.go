package app

import (
	"fmt"
	"strings"
	"time"

	"stockbot/internal/config"
	"stockbot/internal/inventory"
	"stockbot/internal/reactionroles"
	"stockbot/internal/stock"
	"stockbot/internal/storage"
	"stockbot/internal/task/scheduler"
	logx "stockbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File: logx.FileConfig{
			Enabled: l.File.Enabled,
			Path:    l.File.Path,
		},
		Discord: logx.DiscordConfig{
			Enabled:    l.Discord.Enabled,
			ChannelID:  l.Discord.ChannelID,
			MinLevel:   l.Discord.MinLevel,
			RatePerSec: l.Discord.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(sc.Path),
		DSN:         strings.TrimSpace(sc.DSN),
		BusyTimeout: busy,
	}, true, nil
}

func mapInventoryConfig(cfg *config.Config) (inventory.Config, error) {
	timeout, err := config.ParseDurationField("inventory.timeout", cfg.Inventory.Timeout)
	if err != nil {
		return inventory.Config{}, err
	}
	return inventory.Config{
		URL:       strings.TrimSpace(cfg.Inventory.URL),
		Timeout:   timeout,
		UserAgent: cfg.Inventory.UserAgent,
	}, nil
}

func bindings(cfg *config.Config) []stock.Binding {
	out := make([]stock.Binding, 0, len(cfg.Roles.Bindings))
	for _, b := range cfg.Roles.Bindings {
		out = append(out, stock.Binding{Key: b.Item, Label: b.Label, Group: stock.GroupID(strings.TrimSpace(b.RoleID))})
	}
	return out
}

func mapCheckerConfig(cfg *config.Config) (stock.CheckerConfig, error) {
	reg, err := stock.NewRegistry(bindings(cfg))
	if err != nil {
		return stock.CheckerConfig{}, fmt.Errorf("roles.bindings: %w", err)
	}
	n := cfg.Notification
	return stock.CheckerConfig{
		Registry:   reg,
		Exclusions: stock.NewExclusions(cfg.Roles.ExcludedSeeds, cfg.Roles.ExcludedGear),
		Render: stock.RenderOptions{
			Title:            n.Title,
			Color:            n.Color,
			SeedsSection:     n.SeedsSection,
			GearSection:      n.GearSection,
			SeedsPlaceholder: n.SeedsPlaceholder,
			GearPlaceholder:  n.GearPlaceholder,
			Thumbnail:        n.Thumbnail,
		},
		EmojiPrefix: n.EmojiPrefix == nil || *n.EmojiPrefix,
	}, nil
}

// mapReactionRolesConfig uses the registry's normalized bindings so the
// prompt and the notifier agree on keys and labels.
func mapReactionRolesConfig(cfg *config.Config, reg *stock.Registry) reactionroles.Config {
	rr := cfg.ReactionRoles
	return reactionroles.Config{
		Bindings: reg.Bindings(),
		Compose: reactionroles.ComposeOptions{
			Title:      rr.Title,
			PageChars:  rr.PageChars,
			PerMessage: rr.ReactionsPerMessage,
			Palette:    rr.Palette,
		},
	}
}

func location(cfg *config.Config) (*time.Location, error) {
	tz := strings.TrimSpace(cfg.Scheduler.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

// Schedule builds the aligned poll schedule from cfg.
func Schedule(cfg *config.Config) (scheduler.Aligned, error) {
	interval, offset, err := config.ParseAlignment(cfg.Scheduler)
	if err != nil {
		return scheduler.Aligned{}, err
	}
	loc, err := location(cfg)
	if err != nil {
		return scheduler.Aligned{}, err
	}
	return scheduler.NewAligned(interval, offset, loc)
}
