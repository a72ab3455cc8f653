package models

import "strings"

// EmbeddableText builds "{title}. {content}" and appends " Categories: a, b" when
// categories is non-empty. Category order is kept as given.
func EmbeddableText(title, content string, categories []string) string {
	var b strings.Builder
	b.Grow(len(title) + len(content) + 16)
	b.WriteString(title)
	b.WriteString(". ")
	b.WriteString(content)
	if len(categories) > 0 {
		b.WriteString(" Categories: ")
		b.WriteString(strings.Join(categories, ", "))
	}
	return b.String()
}
