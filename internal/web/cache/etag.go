// Package cache implements HTTP conditional requests for responses that only
// change when the server restarts, such as the column schema
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// ETag returns a strong entity tag for content
func ETag(content []byte) string {
	sum := sha256.Sum256(content)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// ParseIfNoneMatch splits an If-None-Match header into entity tags. Weak
// tags keep their W/ prefix.
func ParseIfNoneMatch(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if header == "*" {
		return []string{"*"}
	}

	var tags []string
	for i := 0; i < len(header); {
		for i < len(header) && (header[i] == ' ' || header[i] == ',') {
			i++
		}
		if i >= len(header) {
			break
		}

		weak := strings.HasPrefix(header[i:], "W/")
		if weak {
			i += 2
		}
		if i >= len(header) || header[i] != '"' {
			// not a quoted tag, skip to the next separator
			for i < len(header) && header[i] != ',' {
				i++
			}
			continue
		}

		end := strings.IndexByte(header[i+1:], '"')
		if end < 0 {
			break
		}
		tag := header[i : i+end+2]
		if weak {
			tag = "W/" + tag
		}
		tags = append(tags, tag)
		i += end + 2
	}
	return tags
}

// Matches compares etag against tags with the weak comparison GET requests use
func Matches(etag string, tags []string) bool {
	if len(tags) == 1 && tags[0] == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, t := range tags {
		if strings.TrimPrefix(t, "W/") == want {
			return true
		}
	}
	return false
}

// NotModified sets the ETag header and answers 304 when the request already
// holds the current representation. It returns true when the response is
// complete.
func NotModified(w http.ResponseWriter, r *http.Request, etag string) bool {
	w.Header().Set("ETag", etag)
	if Matches(etag, ParseIfNoneMatch(r.Header.Get("If-None-Match"))) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}
