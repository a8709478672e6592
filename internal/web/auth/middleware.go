package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/internal/web/middleware"
	"github.com/conduit-lang/rowfilter/internal/web/response"
)

type contextKey string

const subjectKey contextKey = "auth_subject"

// APIKeyHeader carries API keys
const APIKeyHeader = "X-API-Key"

// Subject returns the authenticated caller stored in ctx
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// Authenticator accepts a request carrying either a bearer token signed by
// the issuer or an API key matching one of the configured hashes
type Authenticator struct {
	issuer *Issuer
	hashes []string

	// bcrypt is slow on purpose; accepted keys are remembered by digest
	mu       sync.RWMutex
	accepted map[[sha256.Size]byte]string
}

// NewAuthenticator creates an Authenticator. issuer may be nil to disable
// tokens and hashes may be empty to disable API keys.
func NewAuthenticator(issuer *Issuer, hashes []string) (*Authenticator, error) {
	for i, h := range hashes {
		if !validHash(h) {
			return nil, fmt.Errorf("api key %d is not a bcrypt hash", i)
		}
	}
	return &Authenticator{
		issuer:   issuer,
		hashes:   hashes,
		accepted: make(map[[sha256.Size]byte]string),
	}, nil
}

// Enabled reports whether any credential kind is configured
func (a *Authenticator) Enabled() bool {
	return a != nil && (a.issuer != nil || len(a.hashes) > 0)
}

// Authenticate returns the caller identity for r
func (a *Authenticator) Authenticate(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", errors.New("malformed authorization header")
		}
		if a.issuer == nil {
			return "", errors.New("bearer tokens are not accepted")
		}
		claims, err := a.issuer.Verify(strings.TrimSpace(token))
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}

	if key := r.Header.Get(APIKeyHeader); key != "" {
		return a.checkKey(key)
	}

	return "", errors.New("missing credentials")
}

func (a *Authenticator) checkKey(key string) (string, error) {
	digest := sha256.Sum256([]byte(key))

	a.mu.RLock()
	subject, ok := a.accepted[digest]
	a.mu.RUnlock()
	if ok {
		return subject, nil
	}

	for i, h := range a.hashes {
		if CheckKey(key, h) {
			subject = fmt.Sprintf("api-key-%d", i)
			a.mu.Lock()
			a.accepted[digest] = subject
			a.mu.Unlock()
			return subject, nil
		}
	}
	return "", errors.New("unknown api key")
}

// Middleware rejects unauthenticated requests with 401. A disabled
// Authenticator lets every request through.
func (a *Authenticator) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		if !a.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := a.Authenticate(r)
			if err != nil {
				middleware.GetLogger(r.Context()).Info("request rejected", zap.Error(err))
				w.Header().Set("WWW-Authenticate", `Bearer realm="rowfilter"`)
				response.RenderError(w, http.StatusUnauthorized, err)
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
