package main

import (
	"github.com/spf13/cobra"

	"ctxprof/internal/ctxprof"
	"ctxprof/internal/output"
)

func (a *app) newStatsCommand() *cobra.Command {
	var withDiags bool
	cmd := &cobra.Command{
		Use:   "stats <profile>",
		Short: "Print a JSON summary of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, diags, err := a.decodeFile(args[0])
			if err != nil {
				return err
			}
			r := output.Report{Path: args[0], Summary: ctxprof.Summarize(p)}
			r.Summary.Diags = len(diags)
			if withDiags {
				r.Diags = diags
			}
			return output.WriteReportJSON(cmd.OutOrStdout(), r)
		},
	}
	cmd.Flags().BoolVar(&withDiags, "diags", false, "Include every skipped record and block")
	return cmd
}
