package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"stockbot/internal/reactionroles"
	"stockbot/internal/stock"
	logx "stockbot/pkg/logx"
)

var (
	_ stock.Deliverer       = (*Adapter)(nil)
	_ reactionroles.Poster  = (*Adapter)(nil)
	_ reactionroles.Members = (*Adapter)(nil)
)

// GuildID is the configured guild, else the first guild in gateway state.
func (a *Adapter) GuildID() (string, error) {
	if id := strings.TrimSpace(a.cfg.GuildID); id != "" {
		return id, nil
	}
	if st := a.s.State; st != nil {
		st.RLock()
		defer st.RUnlock()
		if len(st.Guilds) > 0 {
			return st.Guilds[0].ID, nil
		}
	}
	return "", errors.New("bot is not in any guild")
}

// Target resolves the guild and channel for one notification cycle. The
// configured channel must belong to that guild.
func (a *Adapter) Target(ctx context.Context) (stock.Target, error) {
	guildID, err := a.GuildID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", stock.ErrTargetMissing, err)
	}
	ch, err := a.channel(ctx, a.cfg.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("%w: channel %s: %w", stock.ErrTargetMissing, a.cfg.ChannelID, err)
	}
	if ch.GuildID != guildID {
		return nil, fmt.Errorf("%w: channel %s is not in guild %s", stock.ErrTargetMissing, ch.ID, guildID)
	}

	t := &target{a: a, channelID: ch.ID, emojis: map[string]string{}, mentionable: map[stock.GroupID]bool{}}

	// Emoji prefixes and mention filtering are best-effort: the cycle still
	// sends without them.
	if emojis, err := a.guildEmojis(ctx, guildID); err != nil {
		a.log.Debug("guild emoji lookup failed", logx.String("guild", guildID), logx.Err(err))
	} else {
		for _, e := range emojis {
			n := strings.ToLower(e.Name)
			if _, dup := t.emojis[n]; !dup {
				t.emojis[n] = emojiMarkup(e)
			}
		}
	}
	if roles, err := a.guildRoles(ctx, guildID); err != nil {
		a.log.Warn("guild role lookup failed; no role will be pinged", logx.String("guild", guildID), logx.Err(err))
	} else {
		for _, r := range roles {
			t.mentionable[stock.GroupID(r.ID)] = r.Mentionable
		}
	}
	return t, nil
}

type target struct {
	a           *Adapter
	channelID   string
	emojis      map[string]string
	mentionable map[stock.GroupID]bool
}

func (t *target) Emoji(key string) string { return t.emojis[stock.EmojiName(key)] }

func (t *target) Mentionable(g stock.GroupID) bool { return t.mentionable[g] }

func (t *target) Send(ctx context.Context, m stock.Message) error {
	_, err := t.a.s.ChannelMessageSendComplex(t.channelID, notificationMessage(m), discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if st := a.s.State; st != nil {
		if ch, err := st.Channel(id); err == nil {
			return ch, nil
		}
	}
	return a.s.Channel(id, discordgo.WithContext(ctx))
}

func (a *Adapter) guildEmojis(ctx context.Context, guildID string) ([]*discordgo.Emoji, error) {
	a.cacheMu.Lock()
	c, ok := a.emojis[guildID]
	a.cacheMu.Unlock()
	if ok && time.Since(c.at) < a.cfg.CacheTTL {
		return c.val, nil
	}
	v, err, _ := a.sf.Do("emojis:"+guildID, func() (any, error) {
		list, err := a.s.GuildEmojis(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		a.cacheMu.Lock()
		a.emojis[guildID] = cached[[]*discordgo.Emoji]{at: time.Now(), val: list}
		a.cacheMu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*discordgo.Emoji), nil
}

func (a *Adapter) guildRoles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	a.cacheMu.Lock()
	c, ok := a.roles[guildID]
	a.cacheMu.Unlock()
	if ok && time.Since(c.at) < a.cfg.CacheTTL {
		return c.val, nil
	}
	v, err, _ := a.sf.Do("roles:"+guildID, func() (any, error) {
		list, err := a.s.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		a.cacheMu.Lock()
		a.roles[guildID] = cached[[]*discordgo.Role]{at: time.Now(), val: list}
		a.cacheMu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*discordgo.Role), nil
}

// GuildEmojis lists the guild's custom emoji for prompts and !listemojis.
func (a *Adapter) GuildEmojis(ctx context.Context, guildID string) ([]reactionroles.Identity, error) {
	list, err := a.guildEmojis(ctx, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]reactionroles.Identity, 0, len(list))
	for _, e := range list {
		out = append(out, reactionroles.CustomEmoji(e.Name, e.ID, e.Animated))
	}
	return out, nil
}

func (a *Adapter) PostPrompt(ctx context.Context, channelID string, p reactionroles.Page) (string, error) {
	m, err := a.s.ChannelMessageSendComplex(channelID, promptMessage(p), discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (a *Adapter) React(ctx context.Context, channelID, messageID string, e reactionroles.Identity) error {
	return a.s.MessageReactionAdd(channelID, messageID, e.APIName(), discordgo.WithContext(ctx))
}

func (a *Adapter) Member(ctx context.Context, guildID, userID string) (reactionroles.Member, error) {
	m, err := a.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return reactionroles.Member{}, fmt.Errorf("%w: %w", reactionroles.ErrActorNotFound, err)
		}
		return reactionroles.Member{}, err
	}
	if m == nil || m.User == nil {
		return reactionroles.Member{}, reactionroles.ErrActorNotFound
	}
	out := reactionroles.Member{UserID: m.User.ID, Bot: m.User.Bot}
	for _, r := range m.Roles {
		out.Roles = append(out.Roles, stock.GroupID(r))
	}
	return out, nil
}

func (a *Adapter) AddRole(ctx context.Context, guildID, userID string, role stock.GroupID) error {
	return a.s.GuildMemberRoleAdd(guildID, userID, string(role), discordgo.WithContext(ctx))
}

func (a *Adapter) RemoveRole(ctx context.Context, guildID, userID string, role stock.GroupID) error {
	return a.s.GuildMemberRoleRemove(guildID, userID, string(role), discordgo.WithContext(ctx))
}

func isUnknownMember(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownMember {
		return true
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
