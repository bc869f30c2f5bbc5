package stock

import (
	"strings"
	"time"

	"stockbot/pkg/dcui"
)

// Message is the transport-neutral notification.
//
// Mention is empty when no group is mentionable; MentionGroups then is nil.
type Message struct {
	Title         string
	Color         int
	Fields        []Field
	Mention       string
	MentionGroups []GroupID
	Thumbnail     string
	Timestamp     time.Time
}

type Field struct {
	Name  string
	Value string
}

// RenderOptions carries the static presentation settings.
type RenderOptions struct {
	Title            string
	Color            int
	SeedsSection     string
	GearSection      string
	SeedsPlaceholder string
	GearPlaceholder  string
	Thumbnail        string

	// MentionFormat renders one group mention. Defaults to "<@&id>".
	MentionFormat func(GroupID) string
}

func (o RenderOptions) sectionName(c Category) string {
	if c == Gear {
		return o.GearSection
	}
	return o.SeedsSection
}

func (o RenderOptions) placeholder(c Category) string {
	if c == Gear {
		return o.GearPlaceholder
	}
	return o.SeedsPlaceholder
}

// Render turns a classification into a Message. It does no I/O.
//
// mentionable filters the notify set down to groups the delivery side can
// currently ping; a nil filter treats none as mentionable.
func Render(cls Classification, mentionable func(GroupID) bool, opts RenderOptions, at time.Time) Message {
	msg := Message{
		Title:     opts.Title,
		Color:     opts.Color,
		Thumbnail: opts.Thumbnail,
		Timestamp: at,
	}

	for _, cat := range []Category{Seeds, Gear} {
		sec := cls.Section(cat)
		msg.Fields = append(msg.Fields, sectionFields(opts.sectionName(cat), sec, opts.placeholder(cat))...)
	}

	format := opts.MentionFormat
	if format == nil {
		format = RoleMention
	}
	var parts []string
	seen := map[GroupID]struct{}{}
	for _, g := range cls.Groups {
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		if mentionable == nil || !mentionable(g) {
			continue
		}
		parts = append(parts, format(g))
		msg.MentionGroups = append(msg.MentionGroups, g)
	}
	msg.Mention = strings.Join(parts, " ")
	return msg
}

// sectionFields splits a section at line boundaries so no field value
// exceeds the embed limit. Overflow goes to "<name> (cont.)" fields.
func sectionFields(name string, sec Section, placeholder string) []Field {
	chunks := dcui.ChunkLines(sec.Lines, dcui.MaxFieldValueLen)
	if sec.Empty || len(chunks) == 0 || strings.Join(chunks, "") == "" {
		return []Field{{Name: name, Value: dcui.TruncRunes(placeholder, dcui.MaxFieldValueLen)}}
	}
	out := make([]Field, 0, len(chunks))
	for i, c := range chunks {
		n := name
		if i > 0 {
			n = name + " (cont.)"
		}
		out = append(out, Field{Name: n, Value: c})
	}
	return out
}

// RoleMention is Discord's role mention markup.
func RoleMention(g GroupID) string { return "<@&" + string(g) + ">" }
