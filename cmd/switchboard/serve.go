package main

import (
	"github.com/aretw0/switchboard/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the engine over HTTP: POST /runs streams a run as server-sent events,
/ws carries runs over a WebSocket, and /threads and /graph inspect state.
The OpenAPI document is served at /openapi.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}
		return cli.Serve(ctx, app, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (default: http.addr from the config)")
}
