package dcui

import "strings"

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "~", `\~`, "`", "\\`", "|", `\|`, ">", `\>`,
)

// Esc escapes Discord markdown in user-provided text.
func Esc(s string) string { return mdEscaper.Replace(s) }

func B(s string) string    { return "**" + Esc(s) + "**" }
func Code(s string) string { return "`" + strings.ReplaceAll(s, "`", "ˋ") + "`" }

// Block renders a fenced code block.
func Block(s string) string { return "```\n" + strings.ReplaceAll(s, "```", "ˋˋˋ") + "\n```" }

func Role(id string) string    { return "<@&" + id + ">" }
func Channel(id string) string { return "<#" + id + ">" }
func User(id string) string    { return "<@" + id + ">" }

// ChannelID extracts the id from a "<#id>" mention, or returns s unchanged
// when it is already a bare id.
func ChannelID(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<#") && strings.HasSuffix(s, ">") {
		return s[2 : len(s)-1]
	}
	return s
}
