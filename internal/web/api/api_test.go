package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/compiler/ident"
	"github.com/conduit-lang/rowfilter/compiler/parser"
	"github.com/conduit-lang/rowfilter/compiler/types"
	"github.com/conduit-lang/rowfilter/internal/web/auth"
	"github.com/conduit-lang/rowfilter/internal/web/profiling"
	"github.com/conduit-lang/rowfilter/internal/web/ratelimit"
	"github.com/conduit-lang/rowfilter/internal/web/websocket"
)

func newTestAPI(t *testing.T, config Config) http.Handler {
	t.Helper()
	p := parser.New(parser.DefaultConfig(), parser.WithIdentifiers(
		ident.Identifier{Name: "age", Type: types.Of(types.Int), Position: 0},
		ident.Identifier{Name: "country", Type: types.Of(types.String), Position: 1},
		ident.Identifier{Name: "name", Type: types.Of(types.String), Position: 2},
	))
	a := New(p, config, zap.NewNop())
	t.Cleanup(a.Close)
	return a.Router()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSchema(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Columns []ColumnInfo `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Columns, 3)
	assert.Equal(t, "age", body.Columns[0].Name)
	assert.Equal(t, "int", body.Columns[0].Type)
	assert.Equal(t, 2, body.Columns[2].Position)
}

func TestValidate(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	t.Run("valid", func(t *testing.T) {
		rec := post(t, h, "/v1/validate", `{"expression": "age > 30"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, true, body["valid"])
		assert.Equal(t, "age > 30", body["tree"])
	})

	t.Run("invalid", func(t *testing.T) {
		rec := post(t, h, "/v1/validate", `{"expression": "age >> 3"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody(t, rec)
		assert.Equal(t, false, body["valid"])
		filterErr, ok := body["error"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "E200", filterErr["code"])
		assert.Equal(t, float64(5), filterErr["offset"])
	})

	t.Run("default column", func(t *testing.T) {
		rec := post(t, h, "/v1/validate", `{"expression": "Sm*", "column": "NAME"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "name ~ Sm*", decodeBody(t, rec)["tree"])
	})

	t.Run("unknown column", func(t *testing.T) {
		rec := post(t, h, "/v1/validate", `{"expression": "x", "column": "missing"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := post(t, h, "/v1/validate", `{"expression":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := post(t, h, "/v1/validate", `{"filter": "age > 1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFilter(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	body := `{
		"expression": "age > 30 & country = Italy",
		"rows": [
			[35, "Italy", "Smith"],
			[25, "Italy", "Jones"],
			{"age": 40, "Country": "Italy", "name": "Rossi"},
			[50, "France", "Dupont"],
			[null, "Italy", "Nobody"]
		]
	}`
	rec := post(t, h, "/v1/filter", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp FilterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int{0, 2}, resp.Matches)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, "(age > 30 & country = Italy)", resp.Tree)
}

func TestFilter_NoMatches(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	rec := post(t, h, "/v1/filter", `{"expression": "age < 0", "rows": [[1, "a", "b"]]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FilterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Matches)
	assert.Empty(t, resp.Matches)
}

func TestFilter_AnyColumn(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	rec := post(t, h, "/v1/filter", `{"expression": "*ones", "rows": [[1, "Italy", "Smith"], [2, "Spain", "Jones"]]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FilterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []int{1}, resp.Matches)
}

func TestFilter_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		body   string
		status int
		code   string
	}{
		{
			name:   "parse error",
			config: DefaultConfig(),
			body:   `{"expression": "(age > 3", "rows": []}`,
			status: http.StatusUnprocessableEntity,
			code:   "invalid_filter",
		},
		{
			name:   "row width",
			config: DefaultConfig(),
			body:   `{"expression": "age > 3", "rows": [[1, "a"]]}`,
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "coercion",
			config: DefaultConfig(),
			body:   `{"expression": "age > 3", "rows": [["old", "a", "b"]]}`,
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "unknown row column",
			config: DefaultConfig(),
			body:   `{"expression": "age > 3", "rows": [{"height": 3}]}`,
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "too many rows",
			config: Config{MaxBodyBytes: 1 << 20, MaxRows: 1},
			body:   `{"expression": "age > 3", "rows": [[1, "a", "b"], [2, "c", "d"]]}`,
			status: http.StatusRequestEntityTooLarge,
			code:   "request_too_large",
		},
		{
			name:   "body too large",
			config: Config{MaxBodyBytes: 16},
			body:   `{"expression": "age > 3", "rows": []}`,
			status: http.StatusRequestEntityTooLarge,
			code:   "request_too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestAPI(t, tt.config)
			rec := post(t, h, "/v1/filter", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			body := decodeBody(t, rec)
			if tt.code == "invalid_filter" {
				assert.Equal(t, tt.code, body["error"])
				return
			}
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestParseErrorCarriesExpression(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	rec := post(t, h, "/v1/filter", `{"expression": "height > 3"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "height > 3", body["expression"])
	filterErr := body["filter"].(map[string]interface{})
	assert.Equal(t, "E100", filterErr["code"])
	assert.Equal(t, float64(0), filterErr["offset"])
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/filter", bytes.NewReader(nil)))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(issuer, nil)
	require.NoError(t, err)

	config := DefaultConfig()
	config.Auth = authenticator
	h := newTestAPI(t, config)

	rec := post(t, h, "/v1/validate", `{"expression": "age > 30"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, rec)["code"])

	token, err := issuer.Issue("reporting")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", strings.NewReader(`{"expression": "age > 30"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health checks stay open
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter, err := ratelimit.NewTokenBucket(2, time.Minute)
	require.NoError(t, err)
	defer limiter.Close()

	config := DefaultConfig()
	config.Limiter = limiter
	h := newTestAPI(t, config)

	for i := 0; i < 2; i++ {
		rec := post(t, h, "/v1/validate", `{"expression": "age > 30"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := post(t, h, "/v1/validate", `{"expression": "age > 30"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	assert.Equal(t, "ip:192.0.2.7", callerKey(req))
}

func TestStream(t *testing.T) {
	srv := httptest.NewServer(newTestAPI(t, DefaultConfig()))
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/stream?" + url.Values{"expression": {"age > 30"}}.Encode()
	conn, resp, err := gorilla.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "row",
		"row":  []interface{}{31, "Italy", "Smith"},
	}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var result websocket.Result
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, websocket.Result{Type: websocket.TypeResult, Index: 0, Match: true}, result)
}

func TestSchema_ETag(t *testing.T) {
	h := newTestAPI(t, DefaultConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestProfiling(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestAPI(t, DefaultConfig()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	hash, err := auth.HashKey("rf_ops")
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(nil, []string{hash})
	require.NoError(t, err)

	config := DefaultConfig()
	config.Auth = authenticator
	config.Profiling = profiling.DefaultConfig()
	h := newTestAPI(t, config)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/stats", nil)
	req.Header.Set(auth.APIKeyHeader, "rf_ops")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "goroutines")
}
