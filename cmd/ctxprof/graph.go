package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zboralski/lattice"
	lrender "github.com/zboralski/lattice/render"
	"go.uber.org/zap"

	"ctxprof/internal/callgraph"
	"ctxprof/internal/output"
	"ctxprof/internal/render"
)

func (a *app) newGraphCommand() *cobra.Command {
	var (
		outDir   string
		maxNodes int
	)
	cmd := &cobra.Command{
		Use:   "graph <profile>",
		Short: "Write the call graph, per-root call-site graphs and context trees as DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return fmt.Errorf("--out is required")
			}
			p, _, err := a.decodeFile(args[0])
			if err != nil {
				return err
			}
			if err := a.checkCallsiteSpan(p); err != nil {
				return err
			}

			cg := callgraph.BuildCallGraph(p)
			cgPath, err := output.WriteDOT(outDir, "callgraph", lrender.DOT(cg, "callgraph"))
			if err != nil {
				return err
			}
			a.log.Info("Wrote call graph",
				zap.String("path", cgPath),
				zap.Int("nodes", len(cg.Nodes)),
				zap.Int("edges", len(cg.Edges)))

			cfgCount := 0
			for _, guid := range p.SortedRoots() {
				root := p.Contexts[guid]
				tree := filepath.Join("tree", fmt.Sprintf("%016x", guid))
				if _, err := output.WriteDOT(outDir, tree, render.ContextTreeDOT(root, render.NASA, maxNodes)); err != nil {
					return err
				}
				if len(root.Callsites) == 0 {
					continue
				}
				f := callgraph.BuildCallsiteCFG(root)
				g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{f}}
				name := filepath.Join("cfg", fmt.Sprintf("%016x", guid))
				if _, err := output.WriteDOT(outDir, name, lrender.DOTCFG(g, f.Name)); err != nil {
					return err
				}
				cfgCount++
			}
			a.log.Info("Wrote per-root graphs",
				zap.Int("trees", len(p.Contexts)),
				zap.Int("cfgs", cfgCount),
				zap.String("dir", outDir))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 500, "Contexts drawn per tree (0 = all)")
	return cmd
}
