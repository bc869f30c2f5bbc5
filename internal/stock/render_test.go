package stock

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

var testOpts = RenderOptions{
	Title:            "🌱 Grow a Garden Stock",
	Color:            0x22bb33,
	SeedsSection:     "SEEDS STOCK",
	GearSection:      "GEAR STOCK",
	SeedsPlaceholder: "No seeds available",
	GearPlaceholder:  "No gear available",
}

func allMentionable(GroupID) bool { return true }

func TestRenderPlaceholderAndGearLine(t *testing.T) {
	cls := Classify(Snapshot{Gear: []Item{{"Trowel", 2}}}, nil, Exclusions{}, nil)
	msg := Render(cls, allMentionable, testOpts, time.Time{})

	if len(msg.Fields) != 2 {
		t.Fatalf("fields = %+v", msg.Fields)
	}
	if msg.Fields[0].Name != "SEEDS STOCK" || msg.Fields[0].Value != "No seeds available" {
		t.Fatalf("seeds field = %+v", msg.Fields[0])
	}
	if msg.Fields[1].Name != "GEAR STOCK" || msg.Fields[1].Value != "Trowel x2" {
		t.Fatalf("gear field = %+v", msg.Fields[1])
	}
	if msg.Title != testOpts.Title {
		t.Fatalf("title = %q", msg.Title)
	}
}

func TestRenderJoinsLinesWithNewlines(t *testing.T) {
	cls := Classify(Snapshot{Seeds: []Item{{"Tomato", 1}, {"Corn", 2}}}, nil, Exclusions{}, nil)
	msg := Render(cls, nil, testOpts, time.Time{})
	if got := msg.Fields[0].Value; got != "Tomato x1\nCorn x2" {
		t.Fatalf("seeds value = %q", got)
	}
	if got := msg.Fields[1].Value; got != "No gear available" {
		t.Fatalf("gear value = %q", got)
	}
}

func TestRenderSplitsOversizedSection(t *testing.T) {
	var lines []string
	for i := 0; i < 25; i++ {
		lines = append(lines, fmt.Sprintf("🌶️ %s Pepper #%02d x%d", strings.Repeat("Extra Spicy Dragon ", 4), i, i+1))
	}
	cls := Classification{Sections: []Section{{Category: Seeds, Lines: lines}}}
	msg := Render(cls, nil, testOpts, time.Time{})

	if len(msg.Fields) < 3 {
		t.Fatalf("want seeds split across fields, got %d fields", len(msg.Fields))
	}
	var seeds []string
	for i, f := range msg.Fields[:len(msg.Fields)-1] {
		want := "SEEDS STOCK"
		if i > 0 {
			want = "SEEDS STOCK (cont.)"
		}
		if f.Name != want {
			t.Fatalf("field %d name = %q, want %q", i, f.Name, want)
		}
		if n := utf8.RuneCountInString(f.Value); n > 1024 {
			t.Fatalf("field %d value is %d runes", i, n)
		}
		seeds = append(seeds, f.Value)
	}
	if got := strings.Join(seeds, "\n"); got != strings.Join(lines, "\n") {
		t.Fatalf("split lost or broke lines:\n%s", got)
	}
	if last := msg.Fields[len(msg.Fields)-1]; last.Name != "GEAR STOCK" || last.Value != "No gear available" {
		t.Fatalf("gear field = %+v", last)
	}
}

func TestRenderMentionsOnlyMentionableInOrder(t *testing.T) {
	cls := Classification{Groups: []GroupID{"3", "1", "2", "1"}}
	mentionable := func(g GroupID) bool { return g != "1" }

	msg := Render(cls, mentionable, testOpts, time.Time{})
	if msg.Mention != "<@&3> <@&2>" {
		t.Fatalf("mention = %q", msg.Mention)
	}
	if len(msg.MentionGroups) != 2 || msg.MentionGroups[0] != "3" || msg.MentionGroups[1] != "2" {
		t.Fatalf("mention groups = %v", msg.MentionGroups)
	}
}

func TestRenderNoMentionableMeansNoPrefix(t *testing.T) {
	cls := Classification{Groups: []GroupID{"1", "2"}}
	msg := Render(cls, func(GroupID) bool { return false }, testOpts, time.Time{})
	if msg.Mention != "" || msg.MentionGroups != nil {
		t.Fatalf("expected no mention, got %q %v", msg.Mention, msg.MentionGroups)
	}
}

func TestEndToEndExcludedCarrotHasNoMention(t *testing.T) {
	snap := Snapshot{Seeds: []Item{{Name: "Carrot", Quantity: 3}}}
	reg := mustRegistry(t) // no entries
	ex := NewExclusions([]string{"carrot"}, nil)

	cls := Classify(snap, reg, ex, nil)
	if len(cls.Groups) != 0 {
		t.Fatalf("groups = %v, want none", cls.Groups)
	}
	msg := Render(cls, allMentionable, testOpts, time.Time{})
	if msg.Mention != "" {
		t.Fatalf("mention = %q, want empty", msg.Mention)
	}
	if msg.Fields[0].Value != "Carrot x3" {
		t.Fatalf("seeds = %q", msg.Fields[0].Value)
	}
}
