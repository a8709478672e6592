package websocket

import (
	"encoding/json"

	"github.com/conduit-lang/rowfilter/compiler/errors"
)

// Message types sent by clients
const (
	// TypeExpression replaces the session expression
	TypeExpression = "expression"
	// TypeRow submits one row
	TypeRow = "row"
	// TypeRows submits several rows, answered one result each
	TypeRows = "rows"
)

// Message types sent by the server
const (
	TypeReady  = "ready"
	TypeResult = "result"
	TypeError  = "error"
)

// ClientMessage is a frame received from a client. Rows are JSON arrays or
// objects, the same shapes /v1/filter accepts.
type ClientMessage struct {
	Type       string            `json:"type"`
	Expression string            `json:"expression,omitempty"`
	Column     string            `json:"column,omitempty"`
	Row        json.RawMessage   `json:"row,omitempty"`
	Rows       []json.RawMessage `json:"rows,omitempty"`
}

// Ready acknowledges an expression
type Ready struct {
	Type string `json:"type"`
	Tree string `json:"tree"`
}

// Result reports whether the row at Index matched. Index counts every row
// the session received, rejected ones included.
type Result struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Match bool   `json:"match"`
}

// ErrorMessage reports a rejected frame. Index is set when a row was
// rejected, Filter when an expression was.
type ErrorMessage struct {
	Type    string              `json:"type"`
	Message string              `json:"message"`
	Index   *int                `json:"index,omitempty"`
	Filter  *errors.FilterError `json:"filter,omitempty"`
}

func newError(message string) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Message: message}
}

func rowError(index int, err error) *ErrorMessage {
	return &ErrorMessage{Type: TypeError, Message: err.Error(), Index: &index}
}
