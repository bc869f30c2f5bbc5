package config

import (
	"reflect"
	"sort"
	"strings"

	logx "stockbot/pkg/logx"
)

// HotSections lists the sections applied without a restart.
var HotSections = map[string]bool{"logging": true}

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Secrets (token, DSN) are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	od, nd := oldCfg.Discord, newCfg.Discord
	if od.Token != nd.Token || od.GuildID != nd.GuildID || od.ChannelID != nd.ChannelID ||
		od.CommandPrefix != nd.CommandPrefix || !reflect.DeepEqual(od.AdminUserIDs, nd.AdminUserIDs) {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.token_changed", od.Token != nd.Token),
			logx.String("discord.channel_id", nd.ChannelID),
			logx.Int("discord.admin_count", len(nd.AdminUserIDs)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Inventory, newCfg.Inventory) {
		changed = append(changed, "inventory")
		attrs = append(attrs, logx.String("inventory.url", strings.TrimSpace(newCfg.Inventory.URL)))
	}

	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.IsEnabled()),
			logx.String("scheduler.interval", newCfg.Scheduler.Interval),
			logx.String("scheduler.offset", newCfg.Scheduler.Offset),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notification, newCfg.Notification) {
		changed = append(changed, "notification")
	}

	if !reflect.DeepEqual(oldCfg.Roles, newCfg.Roles) {
		changed = append(changed, "roles")
		attrs = append(attrs,
			logx.Int("roles.bindings", len(newCfg.Roles.Bindings)),
			logx.Int("roles.excluded_seeds", len(newCfg.Roles.ExcludedSeeds)),
			logx.Int("roles.excluded_gear", len(newCfg.Roles.ExcludedGear)),
		)
	}

	if !reflect.DeepEqual(oldCfg.ReactionRoles, newCfg.ReactionRoles) {
		changed = append(changed, "reaction_roles")
	}

	if !reflect.DeepEqual(oldCfg.Health, newCfg.Health) {
		changed = append(changed, "health")
		attrs = append(attrs, logx.String("health.addr", newCfg.Health.Addr))
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.discord_enabled", newCfg.Logging.Discord.Enabled),
		)
	}

	var oDriver, nDriver string
	var oDSN, nDSN, oPath, nPath string
	if oldCfg.Storage != nil {
		oDriver, oPath, oDSN = oldCfg.Storage.Driver, oldCfg.Storage.Path, oldCfg.Storage.DSN
	}
	if newCfg.Storage != nil {
		nDriver, nPath, nDSN = newCfg.Storage.Driver, newCfg.Storage.Path, newCfg.Storage.DSN
	}
	if oDriver != nDriver || oPath != nPath || oDSN != nDSN {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", strings.TrimSpace(nPath) != ""),
			logx.Bool("storage.dsn_set", strings.TrimSpace(nDSN) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired filters sections that only take effect after a restart.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if !HotSections[s] {
			out = append(out, s)
		}
	}
	return out
}
