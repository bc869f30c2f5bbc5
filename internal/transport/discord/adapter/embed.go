package adapter

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"stockbot/internal/reactionroles"
	"stockbot/internal/stock"
)

const promptColor = 0x22bb33

// notificationMessage builds the stock embed. Only the rendered mention
// groups are allowed to ping; everything else in the content is inert.
func notificationMessage(m stock.Message) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title: m.Title,
		Color: m.Color,
	}
	for _, f := range m.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	if m.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: m.Thumbnail}
	}
	if !m.Timestamp.IsZero() {
		embed.Timestamp = m.Timestamp.UTC().Format(time.RFC3339)
	}

	allowed := &discordgo.MessageAllowedMentions{}
	for _, g := range m.MentionGroups {
		allowed.Roles = append(allowed.Roles, string(g))
	}
	return &discordgo.MessageSend{
		Content:         m.Mention,
		Embeds:          []*discordgo.MessageEmbed{embed},
		AllowedMentions: allowed,
	}
}

func promptMessage(p reactionroles.Page) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       p.Title,
			Description: p.Description,
			Color:       promptColor,
			Footer:      &discordgo.MessageEmbedFooter{Text: "React to get a role, remove the reaction to drop it."},
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
}

func emojiMarkup(e *discordgo.Emoji) string {
	return reactionroles.CustomEmoji(e.Name, e.ID, e.Animated).String()
}
