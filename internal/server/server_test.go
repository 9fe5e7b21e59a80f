package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acheong08/pyextras/internal/logger"
	"github.com/acheong08/pyextras/pkg/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWith(t, testConfig())
}

func newTestServerWith(t *testing.T, config *Config) *httptest.Server {
	t.Helper()
	// Connection goroutines may outlive the test, so nothing logs to t
	srv := httptest.NewServer(New(config, logger.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestCheckEndpoint(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "clean manifest", method: http.MethodPost, body: readTestdata(t, "pyproject.toml"), status: http.StatusOK},
		{name: "undefined extra", method: http.MethodPost, body: "[project]\nname = \"demo\"\n\n[project.optional-dependencies]\na = [\"demo[b]\"]\n", status: http.StatusUnprocessableEntity},
		{name: "invalid toml", method: http.MethodPost, body: "[project", status: http.StatusBadRequest},
		{name: "empty body", method: http.MethodPost, body: "", status: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+"/check", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK || tt.status == http.StatusUnprocessableEntity {
				var rep models.Report
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
				assert.Equal(t, tt.status == http.StatusUnprocessableEntity, rep.HasErrors())
			}
		})
	}
}

func TestCheckEndpointIndexFailure(t *testing.T) {
	pypi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusForbidden)
	}))
	t.Cleanup(pypi.Close)

	config := testConfig()
	config.IndexURL = pypi.URL
	srv := newTestServerWith(t, config)

	resp, err := http.Post(srv.URL+"/check?index=1", "application/toml", strings.NewReader(indexedManifest))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var payload ErrorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Contains(t, payload.Message, "index lookup failed")

	// Without the index the same manifest is fine
	resp, err = http.Post(srv.URL+"/check", "application/toml", strings.NewReader(indexedManifest))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one of type stop arrives
func readUntil(t *testing.T, conn *websocket.Conn, stop MessageType) []Message {
	t.Helper()
	var msgs []Message
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		msgs = append(msgs, msg)
		if msg.Type == stop || msg.Type == TypeError {
			return msgs
		}
	}
}

func TestWebSocketPing(t *testing.T) {
	conn := dial(t, newTestServer(t))

	require.NoError(t, conn.WriteJSON(Message{Type: TypePing}))
	msgs := readUntil(t, conn, TypePong)
	assert.Equal(t, TypePong, msgs[len(msgs)-1].Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "bogus"}))
	msgs = readUntil(t, conn, TypeError)
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &payload))
	assert.Equal(t, "Unknown message type: bogus", payload.Message)
}

func TestWebSocketCheck(t *testing.T) {
	conn := dial(t, newTestServer(t))

	payload, err := json.Marshal(CheckPayload{Pyproject: readTestdata(t, "pyproject.toml")})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Type: TypeCheck, Payload: payload}))

	msgs := readUntil(t, conn, TypeComplete)
	last := msgs[len(msgs)-1]
	require.Equal(t, TypeComplete, last.Type)

	var complete CompletePayload
	require.NoError(t, json.Unmarshal(last.Payload, &complete))
	assert.True(t, complete.Success)

	seen := make(map[MessageType]bool)
	for _, m := range msgs {
		seen[m.Type] = true
	}
	assert.True(t, seen[TypeGraph])
	assert.True(t, seen[TypeReport])
	assert.True(t, seen[TypeProgress])
	assert.True(t, seen[TypeLog])

	// The slot is free again once complete has been sent
	require.NoError(t, conn.WriteJSON(Message{Type: TypeCheck, Payload: payload}))
	msgs = readUntil(t, conn, TypeComplete)
	assert.Equal(t, TypeComplete, msgs[len(msgs)-1].Type)
}

func TestWebSocketBadCheckPayload(t *testing.T) {
	conn := dial(t, newTestServer(t))

	require.NoError(t, conn.WriteJSON(Message{Type: TypeCheck, Payload: json.RawMessage(`{}`)}))
	msgs := readUntil(t, conn, TypeError)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &payload))
	assert.Equal(t, "Failed to parse check request: check payload has no pyproject content", payload.Message)
}

func TestWebSocketCheckAlreadyInProgress(t *testing.T) {
	release := make(chan struct{})
	pypi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/pypi/"), "/json")
		fmt.Fprintf(w, `{"info": {"name": %q, "version": "1.0"}}`, name)
	}))
	t.Cleanup(pypi.Close)
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	config := testConfig()
	config.IndexURL = pypi.URL
	conn := dial(t, newTestServerWith(t, config))

	payload, err := json.Marshal(CheckPayload{Pyproject: indexedManifest, Index: true})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Message{Type: TypeCheck, Payload: payload}))

	// Wait until the lookups are blocked on the index
	for {
		msgs := readUntil(t, conn, TypeProgress)
		last := msgs[len(msgs)-1]
		require.Equal(t, TypeProgress, last.Type)
		var progress ProgressPayload
		require.NoError(t, json.Unmarshal(last.Payload, &progress))
		if progress.Stage == "index" {
			break
		}
	}

	require.NoError(t, conn.WriteJSON(Message{Type: TypeCheck, Payload: payload}))
	msgs := readUntil(t, conn, TypeError)
	last := msgs[len(msgs)-1]
	require.Equal(t, TypeError, last.Type)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(last.Payload, &errPayload))
	assert.Equal(t, "Check already in progress", errPayload.Message)

	unblock()
	msgs = readUntil(t, conn, TypeComplete)
	last = msgs[len(msgs)-1]
	require.Equal(t, TypeComplete, last.Type)
	var complete CompletePayload
	require.NoError(t, json.Unmarshal(last.Payload, &complete))
	assert.True(t, complete.Success)
}
