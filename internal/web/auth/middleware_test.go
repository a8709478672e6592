package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Subject(r.Context())))
	})
}

func TestAuthenticator_Disabled(t *testing.T) {
	a, err := NewAuthenticator(nil, nil)
	require.NoError(t, err)
	assert.False(t, a.Enabled())

	rec := httptest.NewRecorder()
	a.Middleware()(subjectEcho()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestNewAuthenticator_RejectsPlainKeys(t *testing.T) {
	_, err := NewAuthenticator(nil, []string{"plain-text-key"})
	assert.EqualError(t, err, "api key 0 is not a bcrypt hash")
}

func TestAuthenticator_Middleware(t *testing.T) {
	issuer, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := issuer.Issue("reporting")
	require.NoError(t, err)

	key, err := GenerateKey()
	require.NoError(t, err)
	hash, err := HashKey(key)
	require.NoError(t, err)

	a, err := NewAuthenticator(issuer, []string{hash})
	require.NoError(t, err)
	require.True(t, a.Enabled())
	h := a.Middleware()(subjectEcho())

	tests := []struct {
		name    string
		headers map[string]string
		status  int
		subject string
	}{
		{
			name:    "bearer token",
			headers: map[string]string{"Authorization": "Bearer " + token},
			status:  http.StatusOK,
			subject: "reporting",
		},
		{
			name:    "lowercase scheme",
			headers: map[string]string{"Authorization": "bearer " + token},
			status:  http.StatusOK,
			subject: "reporting",
		},
		{
			name:    "api key",
			headers: map[string]string{APIKeyHeader: key},
			status:  http.StatusOK,
			subject: "api-key-0",
		},
		{
			name:   "missing credentials",
			status: http.StatusUnauthorized,
		},
		{
			name:    "basic scheme",
			headers: map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			status:  http.StatusUnauthorized,
		},
		{
			name:    "tampered token",
			headers: map[string]string{"Authorization": "Bearer " + token + "x"},
			status:  http.StatusUnauthorized,
		},
		{
			name:    "unknown api key",
			headers: map[string]string{APIKeyHeader: "rf_unknown"},
			status:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/filter", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.subject, rec.Body.String())
				return
			}
			assert.Equal(t, `Bearer realm="rowfilter"`, rec.Header().Get("WWW-Authenticate"))
			assert.Contains(t, rec.Body.String(), "unauthorized")
		})
	}
}

func TestAuthenticator_KeysOnly(t *testing.T) {
	hash, err := HashKey("rf_reporting")
	require.NoError(t, err)
	a, err := NewAuthenticator(nil, []string{hash})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	_, err = a.Authenticate(req)
	assert.EqualError(t, err, "bearer tokens are not accepted")

	// second lookup is served from the accepted cache
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(APIKeyHeader, "rf_reporting")
		subject, err := a.Authenticate(req)
		require.NoError(t, err)
		assert.Equal(t, "api-key-0", subject)
	}
}
