// Package mcp exposes the engine as a Model Context Protocol server.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the resource holding the routing graph as Mermaid.
const GraphURI = "switchboard://graph"

// AskArgs are the arguments of the ask tool.
type AskArgs struct {
	User    string `json:"user"`
	Request string `json:"request"`
}

// UserArgs are the arguments of the tools addressing a thread.
type UserArgs struct {
	User string `json:"user"`
}

// RunResponse is the structured result of ask and resume.
type RunResponse struct {
	ThreadID string   `json:"thread_id" jsonschema_description:"Thread the run belongs to"`
	Path     []string `json:"path" jsonschema_description:"Nodes executed, in order"`
	Terminal bool     `json:"terminal" jsonschema_description:"Whether the run reached the end"`
	Reply    string   `json:"reply" jsonschema_description:"Final message of the conversation"`
	From     string   `json:"from,omitempty" jsonschema_description:"Node that wrote the reply"`
	Warnings []string `json:"warnings,omitempty" jsonschema_description:"Non-fatal problems such as unsaved checkpoints"`
}

// HistoryResponse is the structured result of history.
type HistoryResponse struct {
	ThreadID string           `json:"thread_id"`
	Messages []domain.Message `json:"messages"`
}

// Engine is the part of switchboard.Engine the server drives.
type Engine interface {
	Stream(ctx context.Context, username, request string) (*switchboard.Run, error)
	Resume(ctx context.Context, username string) (*switchboard.Run, error)
	History(ctx context.Context, username string) (domain.Conversation, error)
	ThreadID(username string) (string, error)
	Graph() *graph.Graph
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("switchboard-mcp", strings.TrimSpace(switchboard.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over server-sent events until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, stopping MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Send a request to the user's thread and run it until the workflow ends."),
		mcp.WithString("user", mcp.Required(), mcp.Description("Username owning the thread")),
		mcp.WithString("request", mcp.Required(), mcp.Description("The request text")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleAsk))

	s.mcpServer.AddTool(mcp.NewTool("resume",
		mcp.WithDescription("Re-enter the user's persisted thread after a failed or interrupted run."),
		mcp.WithString("user", mcp.Required(), mcp.Description("Username owning the thread")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("history",
		mcp.WithDescription("Return the persisted conversation of the user's thread."),
		mcp.WithString("user", mcp.Required(), mcp.Description("Username owning the thread")),
		mcp.WithOutputSchema[HistoryResponse](),
	), mcp.NewStructuredToolHandler(s.handleHistory))
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest, args AskArgs) (RunResponse, error) {
	run, err := s.engine.Stream(ctx, args.User, args.Request)
	if err != nil {
		s.logger.Warn("MCP ask rejected", "error", err)
		return RunResponse{}, err
	}
	return s.finish(ctx, run)
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest, args UserArgs) (RunResponse, error) {
	run, err := s.engine.Resume(ctx, args.User)
	if err != nil {
		s.logger.Warn("MCP resume rejected", "error", err)
		return RunResponse{}, err
	}
	return s.finish(ctx, run)
}

// finish forwards step events to the client as log notifications and waits for the result.
func (s *Server) finish(ctx context.Context, run *switchboard.Run) (RunResponse, error) {
	srv := server.ServerFromContext(ctx)
	for ev := range run.Events() {
		if srv == nil || ev.Type == domain.EventFragment {
			continue
		}
		params := map[string]any{
			"level":  "info",
			"logger": "switchboard",
			"data":   ev,
		}
		if ev.Type == domain.EventWarning {
			params["level"] = "warning"
		}
		if err := srv.SendNotificationToClient(ctx, "notifications/message", params); err != nil {
			s.logger.Debug("MCP notification dropped", "error", err)
		}
	}

	res, err := run.Wait()
	if err != nil {
		return RunResponse{}, err
	}
	out := RunResponse{
		ThreadID: res.ThreadID,
		Path:     res.Path,
		Terminal: res.Terminal,
		Warnings: res.Warnings,
	}
	if last, ok := res.Last(); ok {
		out.Reply = last.Content
		out.From = last.Name
	}
	return out, nil
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest, args UserArgs) (HistoryResponse, error) {
	threadID, err := s.engine.ThreadID(args.User)
	if err != nil {
		return HistoryResponse{}, err
	}
	conv, err := s.engine.History(ctx, args.User)
	if err != nil {
		return HistoryResponse{}, fmt.Errorf("history failed: %w", err)
	}
	return HistoryResponse{ThreadID: threadID, Messages: conv.Messages()}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Routing Graph",
		mcp.WithResourceDescription("Mermaid diagram of the nodes and their allowed transitions"),
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "text/plain",
				Text:     graph.Mermaid(s.engine.Graph(), nil),
			},
		}, nil
	})
}
