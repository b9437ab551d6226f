package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

// SanitizeString normalizes relayed text before it is persisted: trims
// whitespace, strips null bytes and HTML, and caps the length.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	input = htmlPolicy.Sanitize(input)

	if len(input) > 4096 {
		input = input[:4096]
	}

	return input
}
