// Package sanitize cleans and bounds outbound message text before it is
// handed to the channel client.
package sanitize

import (
	"regexp"
	"strings"

	"payreminder/internal/constants"
)

var (
	spaceRunRe   = regexp.MustCompile(` +`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// Message normalizes line endings, collapses space runs, limits consecutive
// blank lines to one, trims surrounding whitespace, and truncates to the
// channel's maximum length with an ellipsis marker. Truncation counts code
// points, not bytes. Empty input yields an empty string.
func Message(text string) string {
	if text == "" {
		return ""
	}

	sanitized := strings.ReplaceAll(text, "\r\n", "\n")
	sanitized = strings.ReplaceAll(sanitized, "\r", "\n")
	sanitized = spaceRunRe.ReplaceAllString(sanitized, " ")
	sanitized = newlineRunRe.ReplaceAllString(sanitized, "\n\n")
	sanitized = strings.TrimSpace(sanitized)

	runes := []rune(sanitized)
	if len(runes) > constants.MaxMessageLength {
		sanitized = string(runes[:constants.MaxMessageLength-len(constants.TruncationSuffix)]) + constants.TruncationSuffix
	}

	return sanitized
}
