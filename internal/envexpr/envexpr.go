// Package envexpr expands ${env.KEY} expressions in configuration text.
package envexpr

import (
	"os"
	"strings"
	"unicode"
)

// Expand replaces all occurrences of ${env.KEY} in the input with the value
// of the environment variable KEY (or "" if unset).
func Expand(value string) string {
	const prefix = "${env."
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(value[i:], prefix)
		if idx < 0 {
			b.WriteString(value[i:])
			break
		}
		b.WriteString(value[i : i+idx])
		startKey := i + idx + len(prefix)

		endKey := strings.IndexByte(value[startKey:], '}')
		if endKey < 0 {
			// No closing brace, treat the rest as literal
			b.WriteString(value[i+idx:])
			break
		}
		key := value[startKey : startKey+endKey]

		// A key consists solely of letters, digits or '_' (empty allowed).
		valid := true
		for _, r := range key {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
				valid = false
				break
			}
		}
		if !valid {
			// Treat the detected prefix as literal and continue scanning from
			// immediately after it so that nested expressions still expand.
			b.WriteString(value[i+idx : startKey])
			i = startKey
			continue
		}
		b.WriteString(os.Getenv(key))
		i = startKey + endKey + 1
	}
	return b.String()
}
