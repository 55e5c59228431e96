// Package banner formats the framed operator messages printed on notable events.
// This is part of the Functional Core - all functions are pure with no I/O.
package banner

import (
	"strings"
	"unicode/utf8"
)

// Width is the number of columns of a banner line.
const Width = 80

// Format frames message between two rules of '#':
//
//	################################################################################
//	# message                                                                      #
//	################################################################################
//
// Messages too long for the frame are not truncated; the right edge moves instead.
func Format(message string) string {
	rule := strings.Repeat("#", Width)

	pad := Width - (utf8.RuneCountInString(message) + 4)
	if pad < 0 {
		pad = 0
	}

	var sb strings.Builder
	sb.WriteString(rule)
	sb.WriteString("\n# ")
	sb.WriteString(message)
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(" #\n")
	sb.WriteString(rule)
	sb.WriteString("\n")
	return sb.String()
}
