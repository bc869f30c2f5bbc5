package reactionroles

import (
	"fmt"
	"strings"
)

// Kind distinguishes the two emoji representations.
type Kind uint8

const (
	KindUnicode Kind = iota
	KindCustom
)

// Identity is an emoji as seen by both the prompt and incoming reactions:
// either a guild custom emoji (name, id) or a unicode glyph.
type Identity struct {
	Kind     Kind   `json:"kind"`
	Name     string `json:"name"` // custom emoji name, or the glyph itself
	ID       string `json:"id,omitempty"`
	Animated bool   `json:"animated,omitempty"`
}

func CustomEmoji(name, id string, animated bool) Identity {
	return Identity{Kind: KindCustom, Name: name, ID: id, Animated: animated}
}

func UnicodeEmoji(glyph string) Identity {
	return Identity{Kind: KindUnicode, Name: glyph}
}

// FromReaction builds an identity from a reaction payload, where an empty id
// means a unicode glyph.
func FromReaction(name, id string, animated bool) Identity {
	if id == "" {
		return UnicodeEmoji(name)
	}
	return CustomEmoji(name, id, animated)
}

// Equal is exact: custom emoji compare by id when both carry one, otherwise
// by case-insensitive name; glyphs compare with variation selectors removed.
func (i Identity) Equal(o Identity) bool {
	if i.Kind != o.Kind {
		return false
	}
	if i.Kind == KindCustom {
		if i.ID != "" && o.ID != "" {
			return i.ID == o.ID
		}
		return strings.EqualFold(i.Name, o.Name)
	}
	return stripVS(i.Name) == stripVS(o.Name)
}

// key is a map key consistent with Equal for identities that carry ids.
func (i Identity) key() string {
	if i.Kind == KindCustom {
		if i.ID != "" {
			return "c:" + i.ID
		}
		return "n:" + strings.ToLower(i.Name)
	}
	return "u:" + stripVS(i.Name)
}

// APIName is the form the reaction endpoints expect.
func (i Identity) APIName() string {
	if i.Kind == KindCustom {
		return i.Name + ":" + i.ID
	}
	return i.Name
}

// String renders the emoji inline in a message.
func (i Identity) String() string {
	if i.Kind != KindCustom {
		return i.Name
	}
	if i.Animated {
		return fmt.Sprintf("<a:%s:%s>", i.Name, i.ID)
	}
	return fmt.Sprintf("<:%s:%s>", i.Name, i.ID)
}

// stripVS drops U+FE0F, which clients add or omit inconsistently.
func stripVS(s string) string {
	return strings.ReplaceAll(s, "\uFE0F", "")
}
