package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket server exposes one dashboard session over a Unix domain socket,
// one newline-delimited JSON object per request and per response.
//
//   Method       Params                         Result
//   ──────────   ────────────────────────────   ─────────────────────────
//   Streams      (none)                         []StreamState
//   Toggle       {ID: string}                   StreamState
//   SetStream    {ID: string, Active: bool}     StreamState
//   SetAll       {Active: bool}                 []StreamState
//   Entries      {Severity: string}             []LogEntry (most recent first)
//   Snapshot     (none)                         MetricsSnapshot or null
//   ExportCSV    (none)                         string
//   ClearLog     (none)                         null
//   Mode         (none)                         string
//   SetMode      {Mode: string}                 string
//
// Severity is all|success|warning|error; empty means all.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error
//   -32001  Unknown stream

const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeApplication    = -32000
	CodeUnknownStream  = -32001
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object. Data carries the stream id for
// CodeUnknownStream.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath prefers $XDG_RUNTIME_DIR/vigil/vigil.sock and falls back
// to ~/.local/state/vigil/vigil.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "vigil", "vigil.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/vigil.sock"
	}
	return filepath.Join(home, ".local", "state", "vigil", "vigil.sock")
}
