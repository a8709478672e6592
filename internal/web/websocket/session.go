package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/conduit-lang/rowfilter/compiler/ast"
	"github.com/conduit-lang/rowfilter/compiler/errors"
	"github.com/conduit-lang/rowfilter/pkg/table"
)

// Time allowed to write a frame to the peer
const writeWait = 10 * time.Second

// session is one connection. readPump owns node and index; writePump is the
// only writer on conn.
type session struct {
	id      string
	conn    *websocket.Conn
	handler *Handler
	logger  *zap.Logger

	node  ast.Node
	index int

	send   chan interface{}
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(h *Handler, id string, conn *websocket.Conn, node ast.Node, logger *zap.Logger) *session {
	ctx, cancel := context.WithCancel(h.ctx)
	buffer := h.config.SendBuffer
	if buffer <= 0 {
		buffer = 1
	}
	return &session{
		id:      id,
		conn:    conn,
		handler: h,
		logger:  logger,
		node:    node,
		send:    make(chan interface{}, buffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *session) pongWait() time.Duration {
	if s.handler.config.PongWait > 0 {
		return s.handler.config.PongWait
	}
	return 60 * time.Second
}

// readPump reads client frames until the peer goes away or the session is
// canceled
func (s *session) readPump() {
	defer func() {
		s.cancel()
		s.logger.Debug("stream session closed", zap.Int("rows", s.index))
	}()

	if s.handler.config.MaxMessageSize > 0 {
		s.conn.SetReadLimit(s.handler.config.MaxMessageSize)
	}
	s.conn.SetReadDeadline(time.Now().Add(s.pongWait()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait()))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("stream session read failed", zap.Error(err))
			}
			return
		}

		if !s.handle(data) {
			return
		}
	}
}

// handle processes one frame; it returns false once the session is canceled
func (s *session) handle(data []byte) bool {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return s.reply(newError(fmt.Sprintf("invalid message: %v", err)))
	}

	switch msg.Type {
	case TypeExpression:
		return s.setExpression(msg.Expression, msg.Column)
	case TypeRow:
		return s.evaluate(msg.Row)
	case TypeRows:
		for _, row := range msg.Rows {
			if !s.evaluate(row) {
				return false
			}
		}
		return true
	default:
		return s.reply(newError(fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

// setExpression keeps the previous expression when the new one is rejected
func (s *session) setExpression(expr, column string) bool {
	node, err := s.handler.parser.ParseFor(expr, column)
	if err != nil {
		reply := newError(err.Error())
		if fe, ok := errors.AsFilterError(err); ok {
			reply.Message = fe.Message
			reply.Filter = fe
		}
		return s.reply(reply)
	}
	s.node = node
	return s.reply(&Ready{Type: TypeReady, Tree: node.String()})
}

func (s *session) evaluate(raw json.RawMessage) bool {
	index := s.index
	s.index++

	if s.node == nil {
		return s.reply(rowError(index, fmt.Errorf("no expression set")))
	}

	p := s.handler.parser
	tbl := table.New(p.Identifiers().All(), p.Types())
	record, err := tbl.AppendJSON(raw)
	if err != nil {
		return s.reply(rowError(index, err))
	}
	return s.reply(&Result{Type: TypeResult, Index: index, Match: s.node.Evaluate(record)})
}

// reply queues a frame, waiting for the writer rather than dropping results
func (s *session) reply(v interface{}) bool {
	select {
	case s.send <- v:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// writePump writes queued replies and keeps the connection alive with pings
func (s *session) writePump() {
	ticker := time.NewTicker(s.pongWait() * 9 / 10)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case v := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(v); err != nil {
				s.logger.Info("stream session write failed", zap.Error(err))
				s.cancel()
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.cancel()
				return
			}
		}
	}
}
