package filterplan

import "strings"

// escapeText makes a string safe inside a drawtext filter argument.
// Backslashes must go first or they would double-escape the rest.
func escapeText(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `:`, `\:`)
	text = strings.ReplaceAll(text, `'`, `\'`)
	text = strings.ReplaceAll(text, ` `, `\ `)
	return text
}
