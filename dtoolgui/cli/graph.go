package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/graph"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/layout"
)

var (
	graphKeys       string
	graphIterations int
	graphAnimate    bool
	graphAt         string
	graphRadius     float64
)

var graphCmd = &cobra.Command{
	Use:   "graph UUID",
	Short: "build and lay out the provenance graph of a dataset",
	Long: `Fetch the derivation graph around a dataset from the lookup server, lay it out
with a force directed relaxation and print the vertex coordinates. Parents
that are no longer in the database are marked does-not-exist.`,
	Example: `  $ dtool-lookup-gui graph 1a1f9fad-8589-413e-9602-5bbd66bfe675
  $ dtool-lookup-gui graph 1a1f9fad-8589-413e-9602-5bbd66bfe675 --keys '["readme.derived_from.uuid"]'
  $ dtool-lookup-gui graph 1a1f9fad-8589-413e-9602-5bbd66bfe675 --at 0.5,1 --radius 0.3`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	f := graphCmd.Flags()
	f.StringVar(&graphKeys, "keys", "", "dependency keys as JSON list, defaults to the settings")
	f.IntVar(&graphIterations, "iterations", 20000, "maximum relaxation steps")
	f.BoolVar(&graphAnimate, "animate", false, "relax on a timer and report progress")
	f.StringVar(&graphAt, "at", "", "report the vertex at X,Y")
	f.Float64Var(&graphRadius, "radius", 0.25, "hit radius for --at")
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var keys any = a.prefs.DependencyKeys
	if graphKeys != "" {
		keys = graphKeys
	}

	dg := graph.NewDependencyGraph()
	err = a.retrier.Do(ctx, func(ctx context.Context) error {
		return dg.Build(ctx, a.client, args[0], keys)
	})
	if err != nil {
		return err
	}

	g := dg.Graph()
	engine, err := layout.New(g, layout.DefaultParams(), a.metrics)
	if err != nil {
		return err
	}
	if graphAnimate {
		relaxAnimated(ctx, engine, graphIterations)
	} else {
		engine.Relax(graphIterations)
	}
	if !engine.Converged() {
		slog.Warn("Layout did not converge", "iterations", engine.Iterations(), "max_force", engine.MaxForce())
	}

	positions := engine.Positions()
	props := make([]any, len(positions))
	for i, p := range positions {
		props[i] = p
	}
	if err := g.SetVertexProperties("position", props); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tKIND\tNAME\tUUID\tX\tY")
	for i := 0; i < g.NumVertices(); i++ {
		name, _ := g.VertexProperty(i, graph.PropName)
		p := positions[i]
		fmt.Fprintf(tw, "%d\t%s\t%v\t%s\t%.3f\t%.3f\n", i, dg.Kind(i), name, dg.UUID(i), p.X, p.Y)
	}
	tw.Flush()

	fmt.Fprintln(out)
	for _, e := range g.Edges() {
		fmt.Fprintf(out, "%d -> %d\n", e.From, e.To)
	}
	if missing := dg.MissingUUIDs(); len(missing) > 0 {
		printWarning(out, "%d parent(s) not in database: %s", len(missing), strings.Join(missing, ", "))
	}
	if order, err := dg.TopologicalOrder(); err == nil {
		printInfo(out, "Derivation order: %s", strings.Join(shortUUIDs(order), " -> "))
	} else {
		printWarning(out, "%v", err)
	}

	if graphAt != "" {
		at, err := parsePoint(graphAt)
		if err != nil {
			return err
		}
		ix := layout.NewIndex(positions)
		if i, ok := ix.VertexAt(at, graphRadius); ok {
			printSuccess(out, "Vertex %d at %s: %s", i, graphAt, dg.UUID(i))
		} else {
			printInfo(out, "No vertex within %g of %s", graphRadius, graphAt)
		}
	}
	return nil
}

// relaxAnimated steps the engine on a ticker until it converges or maxIter steps have run
func relaxAnimated(ctx context.Context, engine *layout.Engine, maxIter int) {
	settled := make(chan struct{})
	var once sync.Once
	steps := 0
	ticker := layout.NewTicker(engine, layout.DefaultTickInterval, func(e *layout.Engine) {
		steps++
		slog.Debug("Layout step", "iteration", e.Iterations(), "energy", e.Energy(), "max_force", e.MaxForce())
		if e.Converged() || steps >= maxIter {
			once.Do(func() { close(settled) })
		}
	})
	ticker.Start(ctx)
	select {
	case <-settled:
	case <-ticker.Done():
	}
	ticker.Stop()
}

func parsePoint(s string) (r2.Vec, error) {
	xs, ys, ok := strings.Cut(s, ",")
	x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if !ok || errX != nil || errY != nil {
		return r2.Vec{}, common.NewValidationError("at", s, "expected X,Y")
	}
	return r2.Vec{X: x, Y: y}, nil
}

func shortUUIDs(uuids []string) []string {
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = u
		if len(u) > 8 {
			out[i] = u[:8]
		}
	}
	return out
}
