package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/pkg/adapters/scripted"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/nodes"
	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, r ports.Reasoner) *switchboard.Engine {
	t.Helper()
	g, err := nodes.Workflow(nodes.Deps{Reasoner: r})
	require.NoError(t, err)
	eng, err := switchboard.New(g)
	require.NoError(t, err)
	return eng
}

func newTestHandler(t *testing.T, eng Engine, opts ...Option) http.Handler {
	t.Helper()
	h, err := NewHandler(eng, opts...)
	require.NoError(t, err)
	return h
}

func outOfScope() *scripted.Reasoner {
	return scripted.NewReasoner().Choose(nodes.RequestGrader, "out_of_scope", "Not about QC.")
}

func postRun(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// blockingReasoner never answers until its context is cancelled.
type blockingReasoner struct {
	*scripted.Reasoner
	entered chan struct{}
}

func (b *blockingReasoner) Decide(ctx context.Context, req ports.DecisionRequest) (ports.Decision, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ports.Decision{}, ctx.Err()
}

func TestStartRun_SSE(t *testing.T) {
	h := newTestHandler(t, newTestEngine(t, outOfScope()))

	w := postRun(t, h, `{"user":"alice","request":"What is the weather?"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))

	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "event: step")
	assert.Contains(t, body, `"node":"request_grader"`)
	assert.Contains(t, body, "event: done")
	assert.NotContains(t, body, "event: error")
}

func TestStartRun_JSON(t *testing.T) {
	h := newTestHandler(t, newTestEngine(t, outOfScope()))

	w := postRun(t, h, `{"user":"alice","request":"What is the weather?","stream":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res RunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Terminal)
	assert.Equal(t, []string{nodes.RequestGrader}, res.Path)
	require.NotNil(t, res.Reply)
	assert.Equal(t, nodes.RequestGrader, res.Reply.Name)
	assert.Nil(t, res.Error)
}

func TestStartRun_Rejections(t *testing.T) {
	h := newTestHandler(t, newTestEngine(t, outOfScope()))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"missing request", `{"user":"alice"}`, http.StatusBadRequest},
		{"wrong type", `{"user":"alice","request":42}`, http.StatusBadRequest},
		{"blank request", `{"user":"alice","request":"   "}`, http.StatusBadRequest},
		{"blank user", `{"user":" ","request":"hi"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postRun(t, h, tt.body)
			assert.Equal(t, tt.status, w.Code)

			var p Problem
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
			assert.Equal(t, "invalid_request", p.Kind)
		})
	}
}

func TestStartRun_Busy(t *testing.T) {
	r := &blockingReasoner{Reasoner: scripted.NewReasoner(), entered: make(chan struct{}, 1)}
	eng := newTestEngine(t, r)
	h := newTestHandler(t, eng)

	run, err := eng.Stream(context.Background(), "alice", "Write a test plan")
	require.NoError(t, err)
	defer func() {
		run.Cancel()
		run.Wait()
	}()
	<-r.entered

	w := postRun(t, h, `{"user":"alice","request":"Another one"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	var p Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "busy", p.Kind)
}

func TestGetThread(t *testing.T) {
	eng := newTestEngine(t, outOfScope())
	h := newTestHandler(t, eng)

	_, err := eng.Invoke(context.Background(), "alice", "What is the weather?")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/threads/alice", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var th Thread
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &th))
	want, err := eng.ThreadID("alice")
	require.NoError(t, err)
	assert.Equal(t, want, th.ThreadID)
	require.Len(t, th.Messages, 2)
	assert.Equal(t, domain.RoleUser, th.Messages[0].Role)
}

func TestResumeThread_NotFound(t *testing.T) {
	h := newTestHandler(t, newTestEngine(t, outOfScope()))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/threads/nobody/resume", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetGraph(t *testing.T) {
	h := newTestHandler(t, newTestEngine(t, outOfScope()))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/graph", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/graph?format=json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var view GraphView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, nodes.RequestGrader, view.Entry)
	assert.Contains(t, view.Nodes, nodes.Supervisor)
	assert.NotEmpty(t, view.Edges)
}

func TestGetInfoAndSpec(t *testing.T) {
	h := newTestHandler(t, newTestEngine(t, outOfScope()))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/info", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, switchboard.Version, info["version"])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/runs:")

	doc, err := Spec()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/threads/{user}"))
}

func TestMetricsMount(t *testing.T) {
	eng := newTestEngine(t, outOfScope())

	w := httptest.NewRecorder()
	newTestHandler(t, eng).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("switchboard_runs_total 1\n"))
	})
	w = httptest.NewRecorder()
	newTestHandler(t, eng, WithMetrics(metrics)).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "switchboard_runs_total")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, newTestEngine(t, outOfScope()))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func dialSocket(t *testing.T, h http.Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntilFinal(t *testing.T, conn *websocket.Conn) ([]SocketMessage, SocketMessage) {
	t.Helper()
	var events []SocketMessage
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg SocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != "event" {
			return events, msg
		}
		events = append(events, msg)
	}
}

func TestRunSocket(t *testing.T) {
	conn := dialSocket(t, newTestHandler(t, newTestEngine(t, outOfScope())))

	require.NoError(t, conn.WriteJSON(SocketRequest{Type: "run", User: "alice", Request: "What is the weather?"}))

	events, final := readUntilFinal(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventStep, events[0].Event.Type)
	assert.True(t, events[0].Event.Terminal())

	assert.Equal(t, "done", final.Type)
	require.NotNil(t, final.Result)
	assert.True(t, final.Result.Terminal)
}

func TestRunSocket_Errors(t *testing.T) {
	conn := dialSocket(t, newTestHandler(t, newTestEngine(t, outOfScope())))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	_, final := readUntilFinal(t, conn)
	assert.Equal(t, "error", final.Type)
	assert.Equal(t, "invalid_request", final.Error.Kind)

	require.NoError(t, conn.WriteJSON(SocketRequest{Type: "resume", User: "nobody"}))
	_, final = readUntilFinal(t, conn)
	assert.Equal(t, "error", final.Type)
	assert.Equal(t, "not_found", final.Error.Kind)
}

func TestRunSocket_Cancel(t *testing.T) {
	r := &blockingReasoner{Reasoner: scripted.NewReasoner(), entered: make(chan struct{}, 1)}
	conn := dialSocket(t, newTestHandler(t, newTestEngine(t, r)))

	require.NoError(t, conn.WriteJSON(SocketRequest{Type: "run", User: "alice", Request: "Write a test plan"}))
	<-r.entered
	require.NoError(t, conn.WriteJSON(SocketRequest{Type: "cancel"}))

	_, final := readUntilFinal(t, conn)
	assert.Equal(t, "error", final.Type)
	require.NotNil(t, final.Error)
	assert.Equal(t, "cancelled", final.Error.Kind)
}

func TestStartRun_ClientDisconnect(t *testing.T) {
	r := &blockingReasoner{Reasoner: scripted.NewReasoner(), entered: make(chan struct{}, 1)}
	eng := newTestEngine(t, r)
	h := newTestHandler(t, eng)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/runs", bytes.NewReader([]byte(`{"user":"alice","request":"Write a test plan"}`))).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(w, req)
	}()
	<-r.entered
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	assert.False(t, eng.Sessions().Active(mustThreadID(t, eng, "alice")))
}

func mustThreadID(t *testing.T, eng *switchboard.Engine, user string) string {
	t.Helper()
	id, err := eng.ThreadID(user)
	require.NoError(t, err)
	return id
}
