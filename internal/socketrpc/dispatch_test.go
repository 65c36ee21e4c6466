package socketrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/session"
)

func newTestDispatcher(t *testing.T) *Server {
	t.Helper()
	s, err := session.New(session.Config{Seed: 11, AutoStart: true})
	require.NoError(t, err)
	return NewServer("", s, nil)
}

func call(s *Server, method, params string) Response {
	req := Request{JSONRPC: "2.0", ID: 7, Method: method}
	if params != "" {
		req.Params = json.RawMessage(params)
	}
	return s.dispatch(req)
}

func TestDispatch_Methods(t *testing.T) {
	t.Parallel()
	s := newTestDispatcher(t)

	tests := []struct {
		method string
		params string
		want   string
	}{
		{"Streams", "", `[{"id":"person-detection","active":true},{"id":"face-detection","active":true},{"id":"segmentation","active":true}]`},
		{"Toggle", `{"ID":"face-detection"}`, `{"id":"face-detection","active":false}`},
		{"SetStream", `{"ID":"face-detection","Active":true}`, `{"id":"face-detection","active":true}`},
		{"Entries", `{"Severity":"error"}`, `[]`},
		{"Entries", "null", `[]`},
		{"Snapshot", "", `null`},
		{"ExportCSV", "", `"Timestamp,Stream ID,Frame Number,Inference Time (ms),Confidence (%),Detections,Status\n"`},
		{"ClearLog", "", `null`},
		{"Mode", "", `"traffic"`},
		{"SetMode", `{"Mode":"campus"}`, `"campus"`},
	}
	for _, tt := range tests {
		resp := call(s, tt.method, tt.params)
		require.Nil(t, resp.Error, "%s: %v", tt.method, resp.Error)
		assert.Equal(t, 7, resp.ID)
		assert.JSONEq(t, tt.want, string(resp.Result), tt.method)
	}
}

func TestDispatch_Errors(t *testing.T) {
	t.Parallel()
	s := newTestDispatcher(t)

	tests := []struct {
		name   string
		method string
		params string
		code   int
	}{
		{"unknown method", "DropTables", "", CodeMethodNotFound},
		{"malformed params", "Toggle", `{"ID":`, CodeInvalidParams},
		{"bad severity", "Entries", `{"Severity":"fatal"}`, CodeInvalidParams},
		{"bad mode", "SetMode", `{"Mode":"ocean"}`, CodeInvalidParams},
		{"unknown stream", "Toggle", `{"ID":"ghost"}`, CodeUnknownStream},
		{"unknown stream set", "SetStream", `{"ID":"ghost","Active":true}`, CodeUnknownStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(s, tt.method, tt.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	resp := call(s, "Toggle", `{"ID":"ghost"}`)
	assert.Equal(t, "ghost", resp.Error.Data)
}

func TestDispatch_SetAll(t *testing.T) {
	t.Parallel()
	s := newTestDispatcher(t)

	resp := call(s, "SetAll", `{"Active":false}`)
	require.Nil(t, resp.Error)
	var states []model.StreamState
	require.NoError(t, json.Unmarshal(resp.Result, &states))
	for _, st := range states {
		assert.False(t, st.Active)
	}
}
