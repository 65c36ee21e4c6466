package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/registry"
	"github.com/tinytelemetry/vigil/internal/severity"
)

const (
	// scannerInitBufSize is the initial per-connection scanner buffer (64 KB).
	scannerInitBufSize = 64 * 1024
	// scannerMaxTokenSize bounds one request or response line (4 MB).
	scannerMaxTokenSize = 4 * 1024 * 1024
)

// Server exposes a model.Dashboard over a Unix domain socket.
type Server struct {
	socketPath string
	dash       model.Dashboard
	logger     *zap.Logger
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer creates a socket RPC server for dash.
func NewServer(socketPath string, dash model.Dashboard, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		socketPath: socketPath,
		dash:       dash,
		logger:     logger,
		quit:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start listens on the socket. A stale socket file left by a crashed
// process is removed; a live one is an error.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	s.logger.Info("socket rpc listening", zap.String("path", s.socketPath))
	return nil
}

// Stop closes the listener and open connections, waits for handlers and
// removes the socket file. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.connMu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.connMu.Unlock()
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				// Transient errors such as fd exhaustion should not end the loop.
				s.logger.Warn("socket rpc accept failed", zap.Error(err))
				time.Sleep(50 * time.Millisecond)
				continue
			}
		}
		s.track(conn, true)
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			encoder.Encode(Response{JSONRPC: "2.0", Error: &RPCError{Code: CodeParseError, Message: "parse error"}})
			continue
		}

		if err := encoder.Encode(s.dispatch(req)); err != nil {
			return
		}
	}
}

// decodeParams unmarshals optional params. Empty or null params leave p at
// its zero value.
func decodeParams(raw json.RawMessage, p any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, p)
}

func (s *Server) streamState(id string) model.StreamState {
	for _, st := range s.dash.Streams() {
		if st.ID == id {
			return st
		}
	}
	return model.StreamState{ID: id}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	result := func(v any, err error) Response {
		if err != nil {
			var unknown *registry.UnknownStreamError
			if errors.As(err, &unknown) {
				resp.Error = &RPCError{Code: CodeUnknownStream, Message: err.Error(), Data: unknown.ID}
				return resp
			}
			resp.Error = &RPCError{Code: CodeApplication, Message: err.Error()}
			return resp
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			resp.Error = &RPCError{Code: CodeInternal, Message: merr.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	invalidParams := func(err error) Response {
		resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
		return resp
	}

	switch req.Method {
	case "Streams":
		return result(s.dash.Streams(), nil)

	case "Toggle":
		var p struct{ ID string }
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if err := s.dash.Toggle(p.ID); err != nil {
			return result(nil, err)
		}
		return result(s.streamState(p.ID), nil)

	case "SetStream":
		var p struct {
			ID     string
			Active bool
		}
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if err := s.dash.SetStream(p.ID, p.Active); err != nil {
			return result(nil, err)
		}
		return result(s.streamState(p.ID), nil)

	case "SetAll":
		var p struct{ Active bool }
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		s.dash.SetAll(p.Active)
		return result(s.dash.Streams(), nil)

	case "Entries":
		var p struct{ Severity string }
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		filter, err := severity.ParseFilter(p.Severity)
		if err != nil {
			return invalidParams(err)
		}
		return result(s.dash.Entries(filter), nil)

	case "Snapshot":
		snap, ok := s.dash.Snapshot()
		if !ok {
			return result(nil, nil)
		}
		return result(snap, nil)

	case "ExportCSV":
		return result(s.dash.ExportCSV(), nil)

	case "ClearLog":
		s.dash.ClearLog()
		return result(nil, nil)

	case "Mode":
		return result(s.dash.Mode(), nil)

	case "SetMode":
		var p struct{ Mode string }
		if err := decodeParams(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		m, err := model.ParseMode(p.Mode)
		if err != nil {
			return invalidParams(err)
		}
		s.dash.SetMode(m)
		return result(m, nil)

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}
