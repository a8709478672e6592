package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestETag(t *testing.T) {
	a := ETag([]byte(`{"columns":[]}`))
	b := ETag([]byte(`{"columns":[{}]}`))

	assert.Len(t, a, 34)
	assert.Equal(t, byte('"'), a[0])
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ETag([]byte(`{"columns":[]}`)))
}

func TestParseIfNoneMatch(t *testing.T) {
	tests := []struct {
		header string
		want   []string
	}{
		{"", nil},
		{"*", []string{"*"}},
		{`"abc"`, []string{`"abc"`}},
		{`"abc", W/"def"`, []string{`"abc"`, `W/"def"`}},
		{`"a,b" ,"c"`, []string{`"a,b"`, `"c"`}},
		{`bogus, "ok"`, []string{`"ok"`}},
		{`"unterminated`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIfNoneMatch(tt.header))
		})
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches(`"abc"`, []string{`"abc"`}))
	assert.True(t, Matches(`"abc"`, []string{`W/"abc"`}))
	assert.True(t, Matches(`"abc"`, []string{"*"}))
	assert.False(t, Matches(`"abc"`, []string{`"abd"`}))
	assert.False(t, Matches(`"abc"`, nil))
}

func TestNotModified(t *testing.T) {
	etag := ETag([]byte("schema"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	assert.False(t, NotModified(rec, req, etag))
	assert.Equal(t, etag, rec.Header().Get("ETag"))

	rec = httptest.NewRecorder()
	req.Header.Set("If-None-Match", `"stale", `+etag)
	assert.True(t, NotModified(rec, req, etag))
	assert.Equal(t, http.StatusNotModified, rec.Code)
}
