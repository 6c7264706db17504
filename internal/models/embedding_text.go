package models

import "strings"

// EmbeddingText builds the text a candidate is embedded from. The title is written twice and
// the comma-joined categories three times so both outweigh the free-form description.
// Non-empty extras (segment names, descriptions) follow on their own lines.
func EmbeddingText(title string, categories []string, description string, extras ...string) string {
	var b strings.Builder

	b.WriteString(strings.Repeat(title+" ", 2))
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(strings.Join(categories, ", ")+" ", 3))
	b.WriteByte('\n')
	b.WriteString(description)

	for _, extra := range extras {
		if strings.TrimSpace(extra) == "" {
			continue
		}

		b.WriteByte('\n')
		b.WriteString(extra)
	}

	return b.String()
}
