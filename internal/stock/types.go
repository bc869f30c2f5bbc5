package stock

import (
	"errors"
	"strings"
)

var (
	// ErrEmptySnapshot means the upstream call succeeded but carried no items.
	ErrEmptySnapshot = errors.New("stock: snapshot has no seeds or gear")
	// ErrTargetMissing means no guild or channel is reachable for delivery.
	ErrTargetMissing = errors.New("stock: delivery target missing")
)

// Category is one shop section of the upstream payload.
type Category int

const (
	Seeds Category = iota
	Gear
)

func (c Category) String() string {
	switch c {
	case Seeds:
		return "seeds"
	case Gear:
		return "gear"
	default:
		return "unknown"
	}
}

// Item is one stocked entry. Name is case-insensitive; use Key() for lookups.
type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func (i Item) Key() string { return NormalizeKey(i.Name) }

// Snapshot is one point-in-time read of the shop. Order is upstream order.
type Snapshot struct {
	Seeds []Item
	Gear  []Item
}

func (s Snapshot) Items(c Category) []Item {
	if c == Gear {
		return s.Gear
	}
	return s.Seeds
}

func (s Snapshot) Len() int { return len(s.Seeds) + len(s.Gear) }

// GroupID is an opaque subscriber-group handle (a Discord role ID).
type GroupID string

// NormalizeKey lower-cases name and collapses runs of whitespace to one space.
// Registry, exclusion and emoji lookups all go through it.
func NormalizeKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// EmojiName is the guild emoji name expected for an item: the normalized
// key with spaces replaced by underscores ("orange tulip" -> "orange_tulip").
func EmojiName(key string) string {
	return strings.ReplaceAll(NormalizeKey(key), " ", "_")
}
