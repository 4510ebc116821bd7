package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxprof/internal/output"
)

func (a *app) newYAMLCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "yaml <profile>",
		Short: "Print the text form of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, diags, err := a.decodeFile(args[0])
			if err != nil {
				return err
			}
			if err := a.checkCallsiteSpan(p); err != nil {
				return err
			}
			if len(diags) > 0 {
				a.log.Info("Skipped unknown content", zap.Int("diags", len(diags)))
			}

			w, closeOut := cmd.OutOrStdout(), func() error { return nil }
			if outPath != "" {
				if w, closeOut, err = output.Create(outPath); err != nil {
					return err
				}
			}
			if err := output.WriteYAML(w, p); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	return cmd
}
