package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockbot/internal/reactionroles"
	"stockbot/pkg/dcui"
)

const emojiListHeader = "📙 **Custom Emojis:**"

// Builtins returns the bot's command set (help is added by SetRegistry).
func Builtins() []Command {
	return []Command{
		{
			Name:        "setuproles",
			Description: "post the reaction-role prompt",
			Usage:       "setuproles [#channel]",
			Access:      AccessAdminOnly,
			Timeout:     3 * time.Minute,
			Handle:      handleSetupRoles,
		},
		{
			Name:        "listemojis",
			Aliases:     []string{"emojis"},
			Description: "list this server's custom emojis",
			Usage:       "listemojis",
			Timeout:     30 * time.Second,
			Handle:      handleListEmojis,
		},
		{
			Name:        "status",
			Description: "next check time and last result",
			Usage:       "status",
			Timeout:     10 * time.Second,
			Handle:      handleStatus,
		},
	}
}

func handleSetupRoles(ctx context.Context, req *Request) error {
	rr := req.Services.ReactionRoles
	if rr == nil {
		return req.Reply(ctx, "❌ Reaction roles are not configured.")
	}
	channelID := req.Services.PromptChannelID
	if len(req.Args) > 0 {
		channelID = dcui.ChannelID(req.Args[0])
	}
	if channelID == "" {
		channelID = req.Message.ChannelID
	}

	sess, err := rr.Setup(ctx, req.Message.GuildID, channelID, req.Message.AuthorID)
	if sess == nil {
		_ = req.Reply(ctx, "❌ Setup failed: "+err.Error())
		return err
	}
	text := fmt.Sprintf("✅ Reaction roles posted in %s (%d roles on %d message(s)).",
		dcui.Channel(channelID), sess.Bindings(), len(sess.Messages))
	if err != nil {
		text += "\n⚠️ Some pages failed: " + err.Error()
	}
	_ = req.Reply(ctx, text)
	return err
}

// EmojiLines formats one line per custom emoji.
func EmojiLines(emojis []reactionroles.Identity) []string {
	lines := make([]string, 0, len(emojis))
	for _, e := range emojis {
		kind := "Static"
		if e.Animated {
			kind = "Animated"
		}
		lines = append(lines, fmt.Sprintf("• %s → %s (ID: `%s`, %s)", e.Name, e.String(), e.ID, kind))
	}
	return lines
}

func handleListEmojis(ctx context.Context, req *Request) error {
	src := req.Services.Emojis
	if src == nil {
		return req.Reply(ctx, "❌ Emoji lookup is not available.")
	}
	emojis, err := src.GuildEmojis(ctx, req.Message.GuildID)
	if err != nil {
		_ = req.Reply(ctx, "❌ Could not load emojis.")
		return err
	}
	if len(emojis) == 0 {
		return req.Reply(ctx, "❌ No custom emojis found in this server.")
	}
	for _, chunk := range dcui.ChunkLines(EmojiLines(emojis), dcui.DefaultChunk) {
		if err := req.Reply(ctx, emojiListHeader+"\n"+chunk); err != nil {
			return err
		}
	}
	return nil
}

func handleStatus(ctx context.Context, req *Request) error {
	if req.Services.Status == nil {
		return req.Reply(ctx, "❌ Status is not available.")
	}
	snap := req.Services.Status.Status()
	return req.Reply(ctx, "📊 **Status**\n"+strings.Join(snap.Lines(req.Services.Location), "\n"))
}
