package main

import (
	"github.com/spf13/cobra"

	"github.com/williampepple1/bindup-e2e/internal/io"
)

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report <results.json>",
		Short: "Print a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := io.LoadFromFile(args[0])
			if err != nil {
				return err
			}
			io.NewConsole(cmd.OutOrStdout()).PrintSummary(summary)
			a.exitCode = summary.ExitCode()
			return nil
		},
	}
}
