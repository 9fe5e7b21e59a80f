package main

import (
	"bytes"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/acheong08/pyextras/internal/extras"
	"github.com/acheong08/pyextras/internal/report"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the extras reference graph",
	Long:  "Print how the extras of a pyproject.toml reference each other, as an indented tree, Graphviz DOT or JSON.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		log, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		_, graph, err := loadGraph(cmd)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := report.RenderGraph(&buf, graph, report.Format(format)); err != nil {
			return err
		}

		if output != "" {
			if err := writeFile(output, buf.Bytes()); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.ErrOrStderr(), "Graph saved to %s\n", output)
		} else if _, err := cmd.OutOrStdout().Write(buf.Bytes()); err != nil {
			return err
		}

		order, err := extras.TopoOrder(graph)
		if err != nil {
			log.Warnw("extras graph is cyclic", "error", err)
			return nil
		}
		log.Debugw("install order", "extras", order)
		return nil
	},
}

func init() {
	graphCmd.Flags().String("format", "tree", "Output format: tree, dot or json")
	graphCmd.Flags().StringP("output", "o", "", "Write the graph to a file instead of stdout")
}

var closureCmd = &cobra.Command{
	Use:   "closure <extra>",
	Short: "Resolve an extra to the requirements it installs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		_, graph, err := loadGraph(cmd)
		if err != nil {
			return err
		}

		res, err := extras.Closure(graph, args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", args[0], err)
		}
		return report.RenderClosure(cmd.OutOrStdout(), res, report.Format(format))
	},
}

func init() {
	closureCmd.Flags().String("format", "text", "Output format: text or json")
}
