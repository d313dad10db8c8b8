package main

import (
	"fmt"
	"os"

	"github.com/aretw0/switchboard/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Switchboard routes conversational requests through a supervised team of nodes",
	Long: `Switchboard keeps one persistent conversation thread per user and routes each
request through a grader, a supervisor and specialist workers (enhancer,
researcher, coder) until the validator accepts the answer.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: switchboard.yaml, .yml or .toml in the working directory)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level to stderr")
	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "Dotenv files loaded before the config")
}

func options(cmd *cobra.Command) cli.Options {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	return cli.Options{ConfigPath: path, Debug: debug, EnvFiles: envFiles}
}

// openApp builds the App for a command. The caller closes it.
func openApp(cmd *cobra.Command) (*cli.App, *cli.SignalContext, error) {
	ctx := cli.NewSignalContext(cmd.Context())
	app, err := cli.Open(ctx, options(cmd))
	if err != nil {
		ctx.Cancel()
		return nil, nil, err
	}
	return app, ctx, nil
}
