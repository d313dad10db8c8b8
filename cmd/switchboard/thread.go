package main

import (
	"os"

	"github.com/aretw0/switchboard/internal/cli"
	"github.com/spf13/cobra"
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Manage persisted threads",
	Long:  `List, show and remove threads in the configured store. Threads may be named by username or thread id.`,
}

var threadLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all persisted threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()
		return cli.ListThreads(ctx, app, os.Stdout)
	},
}

var threadShowCmd = &cobra.Command{
	Use:   "show <user|thread-id>",
	Short: "Print the conversation of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()
		return cli.ShowThread(ctx, app, os.Stdout, args[0], asJSON)
	},
}

var threadRmCmd = &cobra.Command{
	Use:   "rm <user|thread-id>...",
	Short: "Remove one or more threads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()
		return cli.RemoveThreads(ctx, app, os.Stdout, args)
	},
}

func init() {
	rootCmd.AddCommand(threadCmd)
	threadCmd.AddCommand(threadLsCmd, threadShowCmd, threadRmCmd)
	threadShowCmd.Flags().Bool("json", false, "Print as JSON")
}
