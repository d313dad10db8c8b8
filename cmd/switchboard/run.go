package main

import (
	"os"

	"github.com/aretw0/switchboard"
	"github.com/aretw0/switchboard/internal/cli"
	"github.com/aretw0/switchboard/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive conversation",
	Long: `Reads one request per line from stdin and runs it on the user's thread.
Type 'exit', 'quit' or 'stop' (or send EOF) to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		quiet, _ := cmd.Flags().GetBool("quiet")
		jsonMode, _ := cmd.Flags().GetBool("json")

		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()

		if jsonMode {
			opts := cli.ReplOptions{User: user, In: os.Stdin, JSONInput: true}
			return cli.HandleExecutionError(cli.RunREPL(ctx, app, cli.NewJSONPrinter(os.Stdout), opts))
		}

		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		if interactive && !quiet {
			tui.PrintBanner(os.Stdout, switchboard.Version)
		}
		opts := cli.ReplOptions{User: user, In: os.Stdin, Out: os.Stdout}
		if interactive {
			opts.Prompt = "> "
		}

		p := cli.NewPrinter(os.Stdout)
		p.Quiet = quiet
		return cli.HandleExecutionError(cli.RunREPL(ctx, app, p, opts))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("user", "u", defaultUser(), "Username owning the thread")
	runCmd.Flags().BoolP("quiet", "q", false, "Hide the banner and step headers")
	runCmd.Flags().Bool("json", false, "Read requests and write events as JSON lines")
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "guest"
}
