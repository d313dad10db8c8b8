// Package http exposes the engine over HTTP: server-sent events for runs,
// a WebSocket channel, thread inspection and the routing graph.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// maxBodyBytes bounds request bodies before the engine's own request limit applies.
const maxBodyBytes = 1 << 20

// Engine is the part of switchboard.Engine the server drives.
type Engine interface {
	Stream(ctx context.Context, username, request string) (*switchboard.Run, error)
	Resume(ctx context.Context, username string) (*switchboard.Run, error)
	History(ctx context.Context, username string) (domain.Conversation, error)
	ThreadID(username string) (string, error)
	Graph() *graph.Graph
}

var _ Engine = (*switchboard.Engine)(nil)

// Server serves the HTTP API.
type Server struct {
	engine   Engine
	logger   *slog.Logger
	metrics  http.Handler
	spec     *openapi3.T
	upgrader websocket.Upgrader
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	spec, err := Spec()
	if err != nil {
		return nil, err
	}
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
		spec:   spec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post("/runs", s.StartRun)
	r.Get("/threads/{user}", s.GetThread)
	r.Post("/threads/{user}/resume", s.ResumeThread)
	r.Get("/graph", s.GetGraph)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/ws", s.RunSocket)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return enableCORS(r), nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Switchboard API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// StartRun handles POST /runs. The run streams as server-sent events unless
// the body sets "stream": false, in which case the final result is returned as JSON.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, Problem{Error: "could not read body", Kind: "invalid_request"})
		return
	}
	if err := validateBody(s.spec, "RunRequest", body); err != nil {
		s.logger.Warn("StartRun: invalid body", "error", err)
		writeProblem(w, http.StatusBadRequest, Problem{Error: err.Error(), Kind: "invalid_request"})
		return
	}
	var req RunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, Problem{Error: err.Error(), Kind: "invalid_request"})
		return
	}

	run, err := s.engine.Stream(r.Context(), req.User, req.Request)
	if err != nil {
		s.logger.Warn("StartRun: rejected", "error", err)
		writeProblem(w, statusOf(err), newProblem(err))
		return
	}

	if req.Stream != nil && !*req.Stream {
		res, err := run.Wait()
		status := http.StatusOK
		if err != nil {
			status = statusOf(err)
		}
		writeJSON(w, status, newRunResult(res, err))
		return
	}
	s.streamRun(w, r, run)
}

// ResumeThread handles POST /threads/{user}/resume.
func (s *Server) ResumeThread(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	run, err := s.engine.Resume(r.Context(), user)
	if err != nil {
		s.logger.Warn("ResumeThread: rejected", "error", err)
		writeProblem(w, statusOf(err), newProblem(err))
		return
	}
	s.streamRun(w, r, run)
}

// GetThread handles GET /threads/{user}.
func (s *Server) GetThread(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	threadID, err := s.engine.ThreadID(user)
	if err != nil {
		writeProblem(w, statusOf(err), newProblem(err))
		return
	}
	conv, err := s.engine.History(r.Context(), user)
	if err != nil {
		s.logger.Error("GetThread failed", "error", err, "thread_id", threadID)
		writeProblem(w, statusOf(err), newProblem(err))
		return
	}
	writeJSON(w, http.StatusOK, Thread{ThreadID: threadID, Messages: conv.Messages()})
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := s.engine.Graph()
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		writeJSON(w, http.StatusOK, GraphView{Entry: g.Entry(), Nodes: g.Names(), Edges: g.Edges()})
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.Mermaid(g, nil))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "switchboard-http",
		"version":     strings.TrimSpace(switchboard.Version),
		"api_version": apiVersion,
		"entry":       s.engine.Graph().Entry(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, p Problem) {
	writeJSON(w, status, p)
}
