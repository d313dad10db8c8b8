package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/switchboard/internal/cli"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <request>...",
	Short: "Run a single request on the user's thread",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		request := strings.Join(args, " ")
		if request == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			request = string(data)
		}

		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()

		f := follower(cmd)
		if err := cli.Ask(ctx, app, f, user, request); err != nil {
			return report(f, err)
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue the user's thread after a failed or interrupted run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()

		f := follower(cmd)
		if err := cli.Resume(ctx, app, f, user); err != nil {
			return report(f, err)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the user's conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		asJSON, _ := cmd.Flags().GetBool("json")

		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()

		return cli.ShowThread(ctx, app, os.Stdout, user, asJSON)
	},
}

var threadIDCmd = &cobra.Command{
	Use:   "threadid <user>",
	Short: "Print the thread id a username maps to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()

		id, err := app.Engine.ThreadID(args[0])
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, resumeCmd, historyCmd} {
		c.Flags().StringP("user", "u", defaultUser(), "Username owning the thread")
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{askCmd, resumeCmd} {
		c.Flags().BoolP("quiet", "q", false, "Print only the messages")
		c.Flags().Bool("json", false, "Write events as JSON lines")
	}
	historyCmd.Flags().Bool("json", false, "Print as JSON")
	rootCmd.AddCommand(threadIDCmd)
}

func follower(cmd *cobra.Command) cli.Follower {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return cli.NewJSONPrinter(os.Stdout)
	}
	p := cli.NewPrinter(os.Stdout)
	p.Quiet, _ = cmd.Flags().GetBool("quiet")
	return p
}

// report writes err as a JSON line in JSON mode. Text mode leaves it to Execute.
func report(f cli.Follower, err error) error {
	if _, ok := f.(*cli.JSONPrinter); ok {
		f.Fail(err)
	}
	return cli.HandleExecutionError(err)
}
