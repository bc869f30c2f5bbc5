package reactionroles

import (
	"errors"
	"fmt"
	"strings"

	"stockbot/internal/stock"
)

// Discord caps reactions per message at 20.
const MaxReactionsPerMessage = 20

const defaultPageChars = 1900

// ErrPaletteExhausted means more bindings lack a custom emoji than the
// fallback palette has glyphs.
var ErrPaletteExhausted = errors.New("reactionroles: fallback palette exhausted")

// Entry is one emoji -> group binding on a prompt page.
type Entry struct {
	Key   string        `json:"key"`
	Label string        `json:"label"`
	Group stock.GroupID `json:"group"`
	Emoji Identity      `json:"emoji"`
}

// Page is the content of one prompt message.
type Page struct {
	Title       string
	Description string
	Entries     []Entry
}

type ComposeOptions struct {
	Title      string
	PageChars  int
	PerMessage int
	Palette    []string
}

// EmojiLookup resolves a guild custom emoji for a normalized item key.
type EmojiLookup func(key string) (Identity, bool)

// Compose is the Composing step of a session: pick an emoji per binding
// (custom emoji first, then the next unused palette glyph) and split the
// listing into pages bounded by both the character budget and the reaction
// cap. Binding order is preserved across pages.
func Compose(bindings []stock.Binding, lookup EmojiLookup, opts ComposeOptions) ([]Page, error) {
	if opts.PageChars <= 0 {
		opts.PageChars = defaultPageChars
	}
	if opts.PerMessage <= 0 || opts.PerMessage > MaxReactionsPerMessage {
		opts.PerMessage = MaxReactionsPerMessage
	}

	entries, err := assignEmojis(bindings, lookup, opts.Palette)
	if err != nil {
		return nil, err
	}

	var (
		pages []Page
		cur   Page
		desc  strings.Builder
	)
	flush := func() {
		if len(cur.Entries) == 0 {
			return
		}
		cur.Description = desc.String()
		pages = append(pages, cur)
		cur = Page{}
		desc.Reset()
	}
	for _, e := range entries {
		line := PromptLine(e)
		grow := len(line)
		if desc.Len() > 0 {
			grow++
		}
		if len(cur.Entries) == opts.PerMessage || (desc.Len() > 0 && desc.Len()+grow > opts.PageChars) {
			flush()
		}
		if desc.Len() > 0 {
			desc.WriteByte('\n')
		}
		desc.WriteString(line)
		cur.Entries = append(cur.Entries, e)
	}
	flush()

	for i := range pages {
		pages[i].Title = opts.Title
		if len(pages) > 1 {
			pages[i].Title = fmt.Sprintf("%s (%d/%d)", opts.Title, i+1, len(pages))
		}
	}
	return pages, nil
}

// PromptLine is the listing line for one entry.
func PromptLine(e Entry) string {
	return e.Emoji.String() + " - " + e.Label
}

func assignEmojis(bindings []stock.Binding, lookup EmojiLookup, palette []string) ([]Entry, error) {
	used := map[string]struct{}{}
	out := make([]Entry, 0, len(bindings))
	next := 0
	for _, b := range bindings {
		key := stock.NormalizeKey(b.Key)
		label := b.Label
		if label == "" {
			label = b.Key
		}
		e := Entry{Key: key, Label: label, Group: b.Group}

		if lookup != nil {
			if id, ok := lookup(key); ok {
				if _, dup := used[id.key()]; !dup {
					e.Emoji = id
				}
			}
		}
		if e.Emoji.Name == "" {
			for next < len(palette) {
				g := UnicodeEmoji(palette[next])
				next++
				if _, dup := used[g.key()]; !dup && g.Name != "" {
					e.Emoji = g
					break
				}
			}
			if e.Emoji.Name == "" {
				return nil, fmt.Errorf("%w at %q (%d glyphs)", ErrPaletteExhausted, key, len(palette))
			}
		}
		used[e.Emoji.key()] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// LookupIn matches a key against a guild's custom emoji by name.
func LookupIn(emojis []Identity) EmojiLookup {
	byName := make(map[string]Identity, len(emojis))
	for _, e := range emojis {
		if e.Kind != KindCustom {
			continue
		}
		n := strings.ToLower(e.Name)
		if _, ok := byName[n]; !ok {
			byName[n] = e
		}
	}
	return func(key string) (Identity, bool) {
		e, ok := byName[stock.EmojiName(key)]
		return e, ok
	}
}
