// Package wildcard compiles the restricted glob syntax used by the ~ operands
// into regular expressions: * matches any run of characters, ? matches one
// character and a backslash makes the next character literal.
package wildcard

import (
	"regexp"
	"strings"
)

// Matcher is a compiled glob pattern. Matching is always against the full
// string, never a substring.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// Compile translates a glob pattern into a Matcher
func Compile(pattern string, ignoreCase bool) (*Matcher, error) {
	re, err := regexp.Compile(ToRegexp(pattern, ignoreCase))
	if err != nil {
		return nil, err
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// ToRegexp returns the anchored regular expression equivalent to pattern
func ToRegexp(pattern string, ignoreCase bool) string {
	var sb strings.Builder
	if ignoreCase {
		sb.WriteString("(?is)^")
	} else {
		sb.WriteString("(?s)^")
	}

	escaped := false
	for _, r := range pattern {
		if escaped {
			sb.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	// A trailing backslash matches itself
	if escaped {
		sb.WriteString(`\\`)
	}

	sb.WriteString("$")
	return sb.String()
}

// Match reports whether s matches the whole pattern
func (m *Matcher) Match(s string) bool {
	return m.re.MatchString(s)
}

// Pattern returns the glob the matcher was compiled from
func (m *Matcher) Pattern() string {
	return m.pattern
}

// HasWildcards reports whether pattern contains an unescaped * or ?
func HasWildcards(pattern string) bool {
	escaped := false
	for _, r := range pattern {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*', '?':
			return true
		}
	}
	return false
}

// Literal removes glob escapes from a pattern without wildcards
func Literal(pattern string) string {
	var sb strings.Builder
	escaped := false
	for _, r := range pattern {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteRune(r)
	}
	if escaped {
		sb.WriteRune('\\')
	}
	return sb.String()
}
