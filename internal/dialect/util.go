package dialect

import (
	"strings"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// UnquoteIdent strips one layer of backticks or double quotes from an identifier.
func UnquoteIdent(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 {
		first, last := name[0], name[len(name)-1]
		if (first == '`' && last == '`') || (first == '"' && last == '"') {
			q := string(first)
			return strings.ReplaceAll(name[1:len(name)-1], q+q, q)
		}
	}
	return name
}
