// Package rpc exposes chain and game state via a JSON-RPC 2.0 HTTP endpoint.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// maxBatch caps the number of calls in one batch request.
const maxBatch = 32

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. Game failures carry their stable code
// and whether a retry can succeed in Data.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// Error codes. The -320xx range is ours.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeNotFound       = -32004
	CodeGameError      = -32010
)

var errEmptyBatch = errors.New("empty batch")

// parseBody decodes a single request or a batch. batch reports which
// shape the client sent so the reply can match it.
func parseBody(body []byte) (reqs []Request, batch bool, err error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, true, err
		}
		if len(reqs) == 0 {
			return nil, true, errEmptyBatch
		}
		if len(reqs) > maxBatch {
			return nil, true, fmt.Errorf("batch of %d exceeds %d calls", len(reqs), maxBatch)
		}
		return reqs, true, nil
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, false, err
	}
	return []Request{req}, false, nil
}

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}
