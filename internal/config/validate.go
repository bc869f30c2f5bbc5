package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// FieldError names the offending config path.
type FieldError struct {
	Path string
	Msg  string
}

func (e *FieldError) Error() string { return e.Path + ": " + e.Msg }

func fieldErr(path, format string, args ...any) error {
	return &FieldError{Path: path, Msg: fmt.Sprintf(format, args...)}
}

// Validate checks everything the bot needs before it logs in.
// All problems are reported at once (errors.Join), each as a *FieldError.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(validateToken("discord.token", cfg.Discord.Token))
	add(validateSnowflake("discord.channel_id", cfg.Discord.ChannelID, true))
	add(validateSnowflake("discord.guild_id", cfg.Discord.GuildID, false))
	for i, id := range cfg.Discord.AdminUserIDs {
		add(validateSnowflake(fmt.Sprintf("discord.admin_user_ids[%d]", i), id, true))
	}
	if p := cfg.Discord.CommandPrefix; p != "" && strings.ContainsFunc(p, unicode.IsSpace) {
		add(fieldErr("discord.command_prefix", "must not contain whitespace"))
	}

	if u, err := url.Parse(strings.TrimSpace(cfg.Inventory.URL)); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add(fieldErr("inventory.url", "must be an absolute http(s) URL"))
	}
	if _, err := ParseDurationField("inventory.timeout", cfg.Inventory.Timeout); err != nil {
		add(err)
	}

	if _, _, err := ParseAlignment(cfg.Scheduler); err != nil {
		add(err)
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fieldErr("scheduler.timezone", "invalid %q: %v", tz, err))
		}
	}

	for i, b := range cfg.Roles.Bindings {
		path := fmt.Sprintf("roles.bindings[%d]", i)
		if strings.TrimSpace(b.Item) == "" {
			add(fieldErr(path+".item", "required"))
		}
		add(validateSnowflake(path+".role_id", b.RoleID, true))
	}
	for i, s := range cfg.Roles.ExcludedSeeds {
		if strings.TrimSpace(s) == "" {
			add(fieldErr(fmt.Sprintf("roles.excluded_seeds[%d]", i), "must not be empty"))
		}
	}
	for i, s := range cfg.Roles.ExcludedGear {
		if strings.TrimSpace(s) == "" {
			add(fieldErr(fmt.Sprintf("roles.excluded_gear[%d]", i), "must not be empty"))
		}
	}

	rr := cfg.ReactionRoles
	add(validateSnowflake("reaction_roles.channel_id", rr.ChannelID, false))
	if rr.PageChars < 0 || rr.PageChars > 4000 {
		add(fieldErr("reaction_roles.page_chars", "must be within 1..4000"))
	}
	if rr.ReactionsPerMessage < 0 || rr.ReactionsPerMessage > DefaultReactionsPerMsg {
		add(fieldErr("reaction_roles.reactions_per_message", "must be within 1..%d", DefaultReactionsPerMsg))
	}
	for i, g := range rr.Palette {
		if strings.TrimSpace(g) == "" {
			add(fieldErr(fmt.Sprintf("reaction_roles.palette[%d]", i), "must not be empty"))
		}
	}

	if cfg.Health.IsEnabled() {
		add(validateAddr("health.addr", cfg.Health.Addr))
	}

	add(validateSnowflake("logging.discord.channel_id", cfg.Logging.Discord.ChannelID, false))
	if cfg.Logging.Discord.RatePerSec < 0 {
		add(fieldErr("logging.discord.rate_per_sec", "must be >= 0"))
	}

	if cfg.Storage != nil {
		add(validateStorage(cfg.Storage))
	}
	return errors.Join(errs...)
}

// ParseAlignment returns the poll interval and the offset after each boundary.
func ParseAlignment(s SchedulerConfig) (interval, offset time.Duration, err error) {
	interval, err = ParseDurationOrDefault("scheduler.interval", s.Interval, 5*time.Minute)
	if err != nil {
		return 0, 0, err
	}
	if interval%time.Minute != 0 {
		return 0, 0, fieldErr("scheduler.interval", "must be a whole number of minutes")
	}
	mins := int(interval / time.Minute)
	if mins < 1 || mins > 60 {
		return 0, 0, fieldErr("scheduler.interval", "must be within 1m..60m")
	}
	if 60%mins != 0 {
		return 0, 0, fieldErr("scheduler.interval", "%dm does not divide the hour", mins)
	}
	offset, err = ParseDurationField("scheduler.offset", s.Offset)
	if err != nil {
		return 0, 0, err
	}
	if offset >= interval {
		return 0, 0, fieldErr("scheduler.offset", "must be shorter than scheduler.interval")
	}
	return interval, offset, nil
}

func validateToken(path, tok string) error {
	if tok == "" {
		return fieldErr(path, "required (set it in the config or the TOKEN env var)")
	}
	if strings.ContainsFunc(tok, unicode.IsSpace) {
		return fieldErr(path, "must not contain whitespace")
	}
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return fieldErr(path, "malformed bot token (expected 3 dot-separated segments)")
	}
	for _, p := range parts {
		if p == "" {
			return fieldErr(path, "malformed bot token (empty segment)")
		}
	}
	return nil
}

// validateSnowflake accepts Discord IDs: 15..21 decimal digits.
func validateSnowflake(path, id string, required bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		if required {
			return fieldErr(path, "required")
		}
		return nil
	}
	if len(id) < 15 || len(id) > 21 {
		return fieldErr(path, "%q is not a snowflake id", id)
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return fieldErr(path, "%q is not a snowflake id", id)
	}
	return nil
}

func validateAddr(path, addr string) error {
	_, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return fieldErr(path, "invalid listen address %q: %v", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fieldErr(path, "port %q out of range", port)
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	switch driver {
	case "", "none":
		return nil
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(s.Path) == "" {
			return fieldErr("storage.path", "required for driver %q", driver)
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(s.DSN) == "" {
			return fieldErr("storage.dsn", "required for driver %q", driver)
		}
	default:
		return fieldErr("storage.driver", "unknown driver %q", s.Driver)
	}
	_, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
	return err
}
