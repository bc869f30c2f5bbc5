package stock

import (
	"strconv"
	"strings"
)

// EmojiResolver returns the markup of a custom emoji for a normalized item
// key, or "" when none matches. A nil resolver disables prefixes.
type EmojiResolver func(key string) string

// Section is the display lines of one category. Empty is the placeholder
// token: the renderer substitutes the configured "no items" text.
type Section struct {
	Category Category
	Lines    []string
	Empty    bool
}

// Classification is the outcome of Classify.
type Classification struct {
	Sections []Section
	// Groups is the deduplicated notify set, in first-seen order
	// (seeds before gear, upstream order within each).
	Groups []GroupID
	Items  int
}

// Section returns the section for c.
func (c Classification) Section(cat Category) Section {
	for _, s := range c.Sections {
		if s.Category == cat {
			return s
		}
	}
	return Section{Category: cat, Empty: true}
}

// Classify formats display lines in upstream order and collects the groups to
// ping. An item contributes its group only when its key is not excluded in
// its own category; unmapped keys are skipped.
func Classify(snap Snapshot, reg *Registry, ex Exclusions, emojis EmojiResolver) Classification {
	out := Classification{Items: snap.Len()}
	seen := map[GroupID]struct{}{}

	for _, cat := range []Category{Seeds, Gear} {
		items := snap.Items(cat)
		sec := Section{Category: cat, Empty: len(items) == 0}
		for _, it := range items {
			key := it.Key()
			sec.Lines = append(sec.Lines, DisplayLine(it, emojiFor(emojis, key)))

			if ex.Excluded(cat, key) {
				continue
			}
			g, ok := reg.Lookup(key)
			if !ok {
				continue
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			out.Groups = append(out.Groups, g)
		}
		out.Sections = append(out.Sections, sec)
	}
	return out
}

func emojiFor(r EmojiResolver, key string) string {
	if r == nil {
		return ""
	}
	return r(key)
}

// DisplayLine renders "Name xQty", prefixed by emoji markup when present.
func DisplayLine(it Item, emoji string) string {
	var b strings.Builder
	if emoji != "" {
		b.WriteString(emoji)
		b.WriteByte(' ')
	}
	b.WriteString(strings.TrimSpace(it.Name))
	b.WriteString(" x")
	b.WriteString(strconv.Itoa(it.Quantity))
	return b.String()
}
