package chat

import "strings"

const titleMaxRunes = 40

// DeriveTitle names a new conversation after its first query. Queries up
// to 40 characters are used verbatim; longer ones keep the 40-character
// prefix with a trailing ellipsis.
func DeriveTitle(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return "New conversation"
	}
	runes := []rune(query)
	if len(runes) <= titleMaxRunes {
		return query
	}
	return string(runes[:titleMaxRunes]) + "..."
}
