package transport

import "context"

type UpdateKind string

const (
	UpdateMessage        UpdateKind = "message"
	UpdateReactionAdd    UpdateKind = "reaction_add"
	UpdateReactionRemove UpdateKind = "reaction_remove"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Reaction *Reaction
}

type Message struct {
	ID         string
	GuildID    string
	ChannelID  string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	Text       string
}

type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	EmojiName string
	EmojiID   string // empty for unicode glyphs
	Animated  bool
	// Bot is true when the gateway already told us the actor is a bot, or
	// when the reaction is our own.
	Bot bool
}

// Adapter is the chat platform connection: an update stream plus plain
// text replies.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, channelID, text string) (messageID string, err error)
}
