package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxprof/internal/output"
	"ctxprof/internal/pprofconv"
)

func (a *app) newPprofCommand() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "pprof <profile>",
		Short: "Convert a profile to gzipped pprof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			p, _, err := a.decodeFile(args[0])
			if err != nil {
				return err
			}
			prof, err := pprofconv.Convert(p)
			if err != nil {
				return err
			}

			w, closeOut, err := output.Create(outPath)
			if err != nil {
				return err
			}
			if err := prof.Write(w); err != nil {
				_ = closeOut()
				return fmt.Errorf("write pprof: %w", err)
			}
			if err := closeOut(); err != nil {
				return err
			}
			a.log.Info("Wrote pprof", zap.String("path", outPath), zap.Int("samples", len(prof.Sample)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file")
	return cmd
}
