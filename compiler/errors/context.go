package errors

import (
	"strings"
	"unicode/utf8"
)

// Pointer renders the expression with a caret line underneath the offending
// offset. Tabs are kept so the caret lines up in a terminal.
func (e *FilterError) Pointer() string {
	if e.Expression == "" && e.Offset == 0 {
		return ""
	}

	offset := e.Offset
	if offset > len(e.Expression) {
		offset = len(e.Expression)
	}
	if offset < 0 {
		offset = 0
	}

	var sb strings.Builder
	sb.WriteString(e.Expression)
	sb.WriteByte('\n')
	for _, r := range e.Expression[:offset] {
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
	}
	sb.WriteByte('^')
	return sb.String()
}

// Column returns the 1-based character column of the offset, counting runes
func (e *FilterError) Column() int {
	offset := e.Offset
	if offset > len(e.Expression) {
		return utf8.RuneCountInString(e.Expression) + 1 + (offset - len(e.Expression))
	}
	return utf8.RuneCountInString(e.Expression[:offset]) + 1
}
