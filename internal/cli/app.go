package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/switchboard/internal/config"
	httpAdapter "github.com/aretw0/switchboard/pkg/adapters/http"
	"github.com/aretw0/switchboard/pkg/adapters/mcp"
	"github.com/joho/godotenv"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
	// EnvFiles are loaded into the environment before the config. Missing files are ignored.
	EnvFiles []string
}

// Open loads the environment and configuration and builds the App.
func Open(ctx context.Context, opts Options) (*App, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger, err := createLogger(cfg.Log, opts.Debug)
	if err != nil {
		return nil, err
	}
	return createApp(ctx, cfg, logger)
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// Serve runs the HTTP API until ctx is cancelled.
func Serve(ctx context.Context, app *App, addr string) error {
	opts := []httpAdapter.Option{httpAdapter.WithLogger(app.Logger)}
	if app.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetrics(app.Metrics.Handler()))
	}
	h, err := httpAdapter.NewHandler(app.Engine, opts...)
	if err != nil {
		return err
	}
	return httpAdapter.ListenAndServe(ctx, addr, h, app.Logger)
}

// ServeMCP runs the MCP server on the given transport, "stdio" or "sse".
func ServeMCP(ctx context.Context, app *App, transport string, port int) error {
	srv := mcp.NewServer(app.Engine, mcp.WithLogger(app.Logger))
	switch transport {
	case "stdio":
		app.Logger.Info("Starting MCP server (stdio)")
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, port)
	default:
		return fmt.Errorf("unknown transport %q, supported: stdio, sse", transport)
	}
}
