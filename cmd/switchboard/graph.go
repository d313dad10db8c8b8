package main

import (
	"fmt"

	"github.com/aretw0/switchboard/pkg/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the routing graph",
	Long:  `Outputs a Mermaid diagram (graph TD) of the nodes and the transitions each may take.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ctx, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer ctx.Cancel()
		defer app.Close()

		fmt.Print(graph.Mermaid(app.Engine.Graph(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
