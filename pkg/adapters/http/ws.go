package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 64 << 10
)

// SocketRequest is a client frame on /ws.
type SocketRequest struct {
	// Type is "run", "resume" or "cancel".
	Type    string `json:"type"`
	User    string `json:"user,omitempty"`
	Request string `json:"request,omitempty"`
}

// SocketMessage is a server frame on /ws.
type SocketMessage struct {
	// Type is "event", "done" or "error".
	Type   string        `json:"type"`
	Event  *domain.Event `json:"event,omitempty"`
	Result *RunResult    `json:"result,omitempty"`
	Error  *Problem      `json:"error,omitempty"`
}

// socket serializes writes and tracks the connection's single active run.
type socket struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu  sync.Mutex
	run *switchboard.Run
	wg  sync.WaitGroup
}

func (c *socket) send(msg SocketMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *socket) fail(err error) {
	p := newProblem(err)
	c.send(SocketMessage{Type: "error", Error: &p})
}

func (c *socket) cancel() {
	c.mu.Lock()
	run := c.run
	c.mu.Unlock()
	if run != nil {
		run.Cancel()
	}
}

// RunSocket handles GET /ws. Each connection runs at most one request at a time;
// closing the connection cancels the active run.
func (s *Server) RunSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade WebSocket", "error", err)
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	ctx, cancel := context.WithCancel(r.Context())
	c := &socket{conn: conn}
	defer func() {
		cancel()
		c.cancel()
		c.wg.Wait()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		var req SocketRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.send(SocketMessage{Type: "error", Error: &Problem{Error: "invalid JSON message", Kind: "invalid_request"}})
			continue
		}
		s.handleSocket(ctx, c, req)
	}
}

func (s *Server) handleSocket(ctx context.Context, c *socket, req SocketRequest) {
	switch req.Type {
	case "cancel":
		c.cancel()
		return
	case "run", "resume":
	default:
		c.send(SocketMessage{Type: "error", Error: &Problem{Error: "unknown message type: " + req.Type, Kind: "invalid_request"}})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != nil {
		c.fail(domain.ErrThreadBusy)
		return
	}

	var (
		run *switchboard.Run
		err error
	)
	if req.Type == "resume" {
		run, err = s.engine.Resume(ctx, req.User)
	} else {
		run, err = s.engine.Stream(ctx, req.User, req.Request)
	}
	if err != nil {
		c.fail(err)
		return
	}

	c.run = run
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		s.pumpRun(c, run)
		c.mu.Lock()
		c.run = nil
		c.mu.Unlock()
	}()
}

func (s *Server) pumpRun(c *socket, run *switchboard.Run) {
	for ev := range run.Events() {
		if err := c.send(SocketMessage{Type: "event", Event: &ev}); err != nil {
			s.logger.Warn("WebSocket write failed", "error", err, "run_id", run.ID())
			run.Cancel()
			break
		}
	}
	res, err := run.Wait()
	out := newRunResult(res, err)
	kind := "done"
	if err != nil {
		kind = "error"
	}
	c.send(SocketMessage{Type: kind, Result: &out, Error: out.Error})
}
