// Package api exposes expression validation and row filtering over HTTP
package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/compiler/ast"
	"github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/parser"
	"github.com/conduit-lang/rowfilter/internal/web/auth"
	"github.com/conduit-lang/rowfilter/internal/web/cache"
	"github.com/conduit-lang/rowfilter/internal/web/middleware"
	"github.com/conduit-lang/rowfilter/internal/web/profiling"
	"github.com/conduit-lang/rowfilter/internal/web/ratelimit"
	"github.com/conduit-lang/rowfilter/internal/web/response"
	"github.com/conduit-lang/rowfilter/internal/web/websocket"
	"github.com/conduit-lang/rowfilter/pkg/table"
)

// Config holds API limits
type Config struct {
	// MaxBodyBytes bounds request bodies
	MaxBodyBytes int64
	// MaxRows bounds the rows a single filter request may carry
	MaxRows int
	// RequestTimeout bounds the time spent per request
	RequestTimeout time.Duration
	// Workers is the number of goroutines evaluating rows; 0 uses GOMAXPROCS
	Workers int
	// Auth guards /v1; nil or disabled leaves it open
	Auth *auth.Authenticator
	// Limiter rate limits /v1 per caller; nil disables limiting
	Limiter ratelimit.Limiter
	// Stream configures /v1/stream; nil uses websocket.DefaultConfig
	Stream *websocket.Config
	// Profiling mounts pprof behind Auth; nil leaves it off
	Profiling *profiling.Config
}

// DefaultConfig returns the default API limits
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   8 << 20,
		MaxRows:        100000,
		RequestTimeout: 30 * time.Second,
	}
}

// API serves the filter endpoints for one parser
type API struct {
	parser *parser.Parser
	config Config
	logger *zap.Logger
	stream *websocket.Handler

	// the identifiers never change after New, so neither does /v1/schema
	columns    []ColumnInfo
	schemaETag string
}

// New creates the API. The parser must be fully configured; it is shared by
// concurrent requests.
func New(p *parser.Parser, config Config, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &API{
		parser: p,
		config: config,
		logger: logger,
		stream: websocket.NewHandler(p, config.Stream, logger),
	}

	ids := p.Identifiers().All()
	a.columns = make([]ColumnInfo, len(ids))
	for i, id := range ids {
		a.columns[i] = ColumnInfo{
			Name:     id.Name,
			Type:     id.Type.String(),
			Position: id.Position,
			Values:   id.Type.Values,
		}
	}
	body, _ := json.Marshal(a.columns)
	a.schemaETag = cache.ETag(body)

	return a
}

// Close ends open stream sessions
func (a *API) Close() {
	a.stream.Close()
}

// Router returns the chi router with middleware and routes mounted
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(a.logger, "/healthz"),
		middleware.Recovery(),
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.RenderNotFound(w, "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.RenderError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})

	r.Get("/healthz", a.health)

	if a.config.Profiling != nil {
		var guards []func(http.Handler) http.Handler
		if a.config.Auth != nil {
			guards = append(guards, a.config.Auth.Middleware())
		}
		profiling.Mount(r, a.config.Profiling, guards...)
	}
	r.Route("/v1", func(r chi.Router) {
		if a.config.Auth != nil {
			r.Use(a.config.Auth.Middleware())
		}
		if a.config.Limiter != nil {
			r.Use(ratelimit.Middleware(a.config.Limiter, callerKey))
		}

		// sessions outlive the request deadline
		r.Get("/stream", a.stream.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Deadline(a.config.RequestTimeout))
			r.Get("/schema", a.schema)
			r.Post("/validate", a.validate)
			r.Post("/filter", a.filter)
		})
	})
	return r
}

// callerKey counts authenticated callers by identity and the rest by address
func callerKey(r *http.Request) string {
	if subject := auth.Subject(r.Context()); subject != "" {
		return "subject:" + subject
	}
	return "ip:" + ratelimit.ClientIP(r)
}

// Request is the body of /v1/validate and /v1/filter
type Request struct {
	Expression string `json:"expression"`
	// Column names the identifier unqualified leaves apply to; empty means
	// any column
	Column string            `json:"column,omitempty"`
	Rows   []json.RawMessage `json:"rows,omitempty"`
}

// ValidateResponse reports whether an expression parses
type ValidateResponse struct {
	Valid bool                `json:"valid"`
	Tree  string              `json:"tree,omitempty"`
	Error *errors.FilterError `json:"error,omitempty"`
}

// FilterResponse lists the indexes of the accepted rows
type FilterResponse struct {
	Tree    string `json:"tree"`
	Total   int    `json:"total"`
	Count   int    `json:"count"`
	Matches []int  `json:"matches"`
}

// ColumnInfo describes one identifier in /v1/schema
type ColumnInfo struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Position int      `json:"position"`
	Values   []string `json:"values,omitempty"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	response.RenderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) schema(w http.ResponseWriter, r *http.Request) {
	if cache.NotModified(w, r, a.schemaETag) {
		return
	}
	response.RenderJSON(w, http.StatusOK, map[string]interface{}{"columns": a.columns})
}

func (a *API) validate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decode(w, r)
	if !ok {
		return
	}

	node, err := a.parse(req)
	if err != nil {
		fe, isFilterErr := errors.AsFilterError(err)
		if !isFilterErr {
			response.RenderBadRequest(w, err.Error())
			return
		}
		response.RenderJSON(w, http.StatusOK, &ValidateResponse{Valid: false, Error: fe})
		return
	}

	response.RenderJSON(w, http.StatusOK, &ValidateResponse{Valid: true, Tree: node.String()})
}

func (a *API) filter(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decode(w, r)
	if !ok {
		return
	}
	if a.config.MaxRows > 0 && len(req.Rows) > a.config.MaxRows {
		response.RenderError(w, http.StatusRequestEntityTooLarge,
			fmt.Errorf("too many rows: %d exceeds the limit of %d", len(req.Rows), a.config.MaxRows))
		return
	}

	node, err := a.parse(req)
	if err != nil {
		if fe, isFilterErr := errors.AsFilterError(err); isFilterErr {
			response.RenderFilterError(w, fe)
			return
		}
		response.RenderBadRequest(w, err.Error())
		return
	}

	tbl, err := a.load(req.Rows)
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return
	}

	matches, err := tbl.FilterConcurrent(r.Context(), node, a.config.Workers)
	if err != nil {
		middleware.GetLogger(r.Context()).Warn("filter aborted", zap.Error(err))
		response.RenderError(w, http.StatusGatewayTimeout, fmt.Errorf("filter aborted: %w", err))
		return
	}
	if matches == nil {
		matches = []int{}
	}

	response.RenderJSON(w, http.StatusOK, &FilterResponse{
		Tree:    node.String(),
		Total:   tbl.Len(),
		Count:   len(matches),
		Matches: matches,
	})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request) (*Request, bool) {
	body := http.MaxBytesReader(w, r.Body, a.config.MaxBodyBytes)
	defer body.Close()

	var req Request
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			response.RenderError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		response.RenderBadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return nil, false
	}
	return &req, true
}

func (a *API) parse(req *Request) (ast.Node, error) {
	return a.parser.ParseFor(req.Expression, req.Column)
}

// load builds a table from JSON rows, see table.AppendJSON
func (a *API) load(rows []json.RawMessage) (*table.Table, error) {
	tbl := table.New(a.parser.Identifiers().All(), a.parser.Types())
	for i, raw := range rows {
		if _, err := tbl.AppendJSON(raw); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return tbl, nil
}
