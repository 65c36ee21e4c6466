package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/registry"
	"github.com/tinytelemetry/vigil/internal/severity"
)

const callTimeout = 30 * time.Second

// Client implements model.DashboardClient over the Unix socket.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the server at socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs one request and decodes the result into dest.
func (c *Client) call(method string, params any, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("socketrpc: marshal params: %w", err)
		}
		raw = data
	}

	c.conn.SetDeadline(time.Now().Add(callTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw}); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return errors.New("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.ID != id {
		return fmt.Errorf("socketrpc: response id %d does not match request %d", resp.ID, id)
	}
	if resp.Error != nil {
		if resp.Error.Code == CodeUnknownStream {
			return &registry.UnknownStreamError{ID: resp.Error.Data}
		}
		return resp.Error
	}

	if dest != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) Streams() ([]model.StreamState, error) {
	var result []model.StreamState
	err := c.call("Streams", nil, &result)
	return result, err
}

func (c *Client) Toggle(id string) error {
	return c.call("Toggle", map[string]any{"ID": id}, nil)
}

func (c *Client) SetStream(id string, active bool) error {
	return c.call("SetStream", map[string]any{"ID": id, "Active": active}, nil)
}

func (c *Client) SetAll(active bool) error {
	return c.call("SetAll", map[string]any{"Active": active}, nil)
}

func (c *Client) Entries(filter severity.Filter) ([]model.LogEntry, error) {
	var result []model.LogEntry
	err := c.call("Entries", map[string]any{"Severity": filter.String()}, &result)
	return result, err
}

// Snapshot returns nil before the first sample.
func (c *Client) Snapshot() (*model.MetricsSnapshot, error) {
	var result *model.MetricsSnapshot
	err := c.call("Snapshot", nil, &result)
	return result, err
}

func (c *Client) ExportCSV() (string, error) {
	var result string
	err := c.call("ExportCSV", nil, &result)
	return result, err
}

func (c *Client) ClearLog() error {
	return c.call("ClearLog", nil, nil)
}

func (c *Client) Mode() (model.Mode, error) {
	var result model.Mode
	err := c.call("Mode", nil, &result)
	return result, err
}

func (c *Client) SetMode(m model.Mode) error {
	return c.call("SetMode", map[string]any{"Mode": string(m)}, nil)
}

var _ model.DashboardClient = (*Client)(nil)
