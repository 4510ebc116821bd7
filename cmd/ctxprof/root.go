package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxprof/internal/ctxprof"
)

type app struct {
	verbose     bool
	maxCallsite uint32
	log         *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "ctxprof",
		Short: "Decode and inspect contextual instrumentation profiles",
		Long: `ctxprof reads a contextual profile container (a call-context tree of
instrumentation counters plus flat per-function counters) and converts it
to text, pprof, call graphs or a summary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(a.verbose)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log skipped content and progress at debug level")
	rootCmd.PersistentFlags().Uint32Var(&a.maxCallsite, "max-callsite-index", 1<<16, "Largest call-site index yaml and graph lay out (0 = no limit)")

	rootCmd.AddCommand(
		a.newYAMLCommand(),
		a.newStatsCommand(),
		a.newGraphCommand(),
		a.newPprofCommand(),
		a.newCheckCommand(),
	)
	return rootCmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// checkCallsiteSpan rejects profiles whose text form or call-site graphs would
// need a slot for every index up to an outsized one.
func (a *app) checkCallsiteSpan(p *ctxprof.Profile) error {
	if a.maxCallsite == 0 {
		return nil
	}
	if m := ctxprof.Summarize(p).MaxCallsite; m > a.maxCallsite {
		return fmt.Errorf("call-site index %d exceeds --max-callsite-index %d", m, a.maxCallsite)
	}
	return nil
}

// decodeFile reads and decodes one container.
func (a *app) decodeFile(path string) (*ctxprof.Profile, []ctxprof.Diag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read: %w", err)
	}
	r := ctxprof.NewReader(data, ctxprof.WithLogger(a.log.With(zap.String("path", path))))
	p, err := r.LoadProfiles()
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, r.Diags(), nil
}
