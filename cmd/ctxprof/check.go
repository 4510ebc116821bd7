package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ctxprof/internal/ctxprof"
)

type checkResult struct {
	summary ctxprof.Summary
	diags   int
	err     error
}

func (a *app) newCheckCommand() *cobra.Command {
	var (
		jobs        int
		strictDiags bool
	)
	cmd := &cobra.Command{
		Use:   "check <profile>...",
		Short: "Validate profiles in parallel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := a.checkAll(args, jobs)

			failed := 0
			for i, res := range results {
				switch {
				case res.err != nil:
					failed++
					a.log.Error("Invalid profile", zap.String("path", args[i]), zap.Error(res.err))
				case strictDiags && res.diags > 0:
					failed++
					a.log.Error("Profile has unknown content", zap.String("path", args[i]), zap.Int("diags", res.diags))
				default:
					a.log.Info("Valid profile",
						zap.String("path", args[i]),
						zap.Uint64("version", res.summary.Version),
						zap.Int("roots", res.summary.Roots),
						zap.Int("contexts", res.summary.Contexts),
						zap.Int("flat", res.summary.FlatProfiles),
						zap.Int("diags", res.diags))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", status(res, strictDiags), args[i])
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d profiles failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.GOMAXPROCS(0), "Profiles decoded concurrently")
	cmd.Flags().BoolVar(&strictDiags, "strict-diags", false, "Fail profiles that contain unknown records or blocks")
	return cmd
}

// checkAll decodes every path on its own reader. Decodes share no state, so
// they run in parallel.
func (a *app) checkAll(paths []string, jobs int) []checkResult {
	results := make([]checkResult, len(paths))
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			p, diags, err := a.decodeFile(path)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i] = checkResult{summary: ctxprof.Summarize(p), diags: len(diags)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func status(res checkResult, strictDiags bool) string {
	if res.err != nil || (strictDiags && res.diags > 0) {
		return "FAIL"
	}
	return "OK"
}
