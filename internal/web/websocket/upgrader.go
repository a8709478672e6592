// Package websocket streams rows through a filter expression over a
// WebSocket connection. Clients send rows as they produce them and receive
// one match result per row, in order.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/compiler/ast"
	"github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/compiler/parser"
	"github.com/conduit-lang/rowfilter/internal/web/middleware"
	"github.com/conduit-lang/rowfilter/internal/web/response"
)

// Config holds WebSocket configuration
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header; nil accepts same-origin
	// requests only
	CheckOrigin func(r *http.Request) bool

	EnableCompression bool

	// MaxMessageSize bounds a single client frame
	MaxMessageSize int64

	// SendBuffer is the number of replies queued per session before the
	// reader waits on the writer
	SendBuffer int

	// PongWait is how long a silent client is kept; pings go out at 9/10 of it
	PongWait time.Duration
}

// DefaultConfig returns default WebSocket configuration
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxMessageSize:  1 << 20,
		SendBuffer:      256,
		PongWait:        60 * time.Second,
	}
}

// Handler upgrades requests to filter sessions. The optional expression and
// column query parameters set the first expression; an invalid one is
// answered with a plain HTTP error before upgrading.
type Handler struct {
	parser   *parser.Parser
	config   *Config
	upgrader *websocket.Upgrader
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHandler creates a Handler. The parser is shared with every session.
func NewHandler(p *parser.Parser, config *Config, logger *zap.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		parser: p,
		config: config,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:    config.ReadBufferSize,
			WriteBufferSize:   config.WriteBufferSize,
			CheckOrigin:       config.CheckOrigin,
			EnableCompression: config.EnableCompression,
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var node ast.Node
	if expr := r.URL.Query().Get("expression"); expr != "" {
		n, err := h.parser.ParseFor(expr, r.URL.Query().Get("column"))
		if err != nil {
			if fe, ok := errors.AsFilterError(err); ok {
				response.RenderFilterError(w, fe)
				return
			}
			response.RenderBadRequest(w, err.Error())
			return
		}
		node = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		middleware.GetLogger(r.Context()).Info("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	s := newSession(h, id, conn, node, h.logger.With(
		zap.String("session_id", id),
		zap.String("request_id", middleware.GetRequestID(r.Context())),
	))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		s.writePump()
	}()
	go func() {
		defer h.wg.Done()
		s.readPump()
	}()

	s.logger.Debug("stream session opened", zap.String("remote_addr", r.RemoteAddr))
}

// Close ends every open session and waits for them to finish
func (h *Handler) Close() {
	h.cancel()
	h.wg.Wait()
}
