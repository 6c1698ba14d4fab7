package renderer

import "strings"

// ffmpeg parses drawtext values twice: once as a filter option and once as
// part of the filtergraph. Both levels need their own escaping.
var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `,`, `\,`, `;`, `\;`, `[`, `\[`, `]`, `\]`)
)

// EscapeText makes s safe as an unquoted drawtext text value inside a
// filter_complex graph.
func EscapeText(s string) string {
	s = strings.NewReplacer("\r", "", "\n", " ").Replace(s)
	return graphEscaper.Replace(optionEscaper.Replace(s))
}
