package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	gfn "github.com/panyam/goutils/fn"
	"github.com/panyam/pfa/loader"
	"github.com/panyam/pfa/runtime"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run <document>",
	Short: "Runs an engine over JSON-lines input",
	Long: `Compiles a document and runs its action once per input datum. Inputs are
read as a stream of JSON values from --input (or stdin) and outputs are written
as JSON lines to stdout in input order.

With --instances N, N engines of the same program share the input round robin
and run in parallel. Shared cells and pools are shared between them.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		instances, _ := cmd.Flags().GetInt("instances")
		traceFile, _ := cmd.Flags().GetString("trace")
		failFast, _ := cmd.Flags().GetBool("fail-fast")
		showStats, _ := cmd.Flags().GetBool("stats")

		if instances < 1 {
			fmt.Fprintln(os.Stderr, "Error: --instances must be at least 1.")
			os.Exit(1)
		}

		src, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading document '%s': %v\n", args[0], err)
			os.Exit(1)
		}
		cfg, err := loader.Read(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading document '%s': %v\n", args[0], err)
			os.Exit(1)
		}
		program, err := runtime.Compile(cfg, hostOptions())
		if err != nil {
			color.New(color.FgRed).Fprintf(os.Stderr, "Compilation failed for '%s':\n", args[0])
			for _, e := range unjoin(err) {
				fmt.Fprintln(os.Stderr, "  ", e)
			}
			os.Exit(1)
		}

		in := io.Reader(os.Stdin)
		if inputFile != "" {
			f, err := os.Open(inputFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening input '%s': %v\n", inputFile, err)
				os.Exit(1)
			}
			defer f.Close()
			in = f
		}
		inputs, err := readInputs(in)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			os.Exit(1)
		}

		engines := make([]*runtime.Engine, instances)
		for i := range engines {
			if engines[i], err = program.NewEngine(); err != nil {
				fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
				os.Exit(1)
			}
			if traceFile != "" || showStats {
				engines[i].SetTracer(runtime.NewExecutionTracer())
			}
		}

		results, runErr := runInstances(cmd.Context(), engines, inputs, failFast)
		failed := false
		for i, r := range results {
			if r.err != nil {
				failed = true
				color.New(color.FgRed).Fprintf(os.Stderr, "input %d: %v\n", i, r.err)
				continue
			}
			if !r.done {
				continue
			}
			line, err := json.Marshal(r.output)
			if err != nil {
				color.New(color.FgRed).Fprintf(os.Stderr, "input %d: %v\n", i, err)
				failed = true
				continue
			}
			fmt.Println(string(line))
		}

		for _, e := range engines {
			if err := e.End(); err != nil {
				color.New(color.FgRed).Fprintf(os.Stderr, "engine %s: end: %v\n", e.ID(), err)
				failed = true
			}
		}

		if traceFile != "" {
			if err := writeTraces(traceFile, engines); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing trace file: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Trace written to %s\n", traceFile)
		}

		if showStats {
			printStats(os.Stderr, engines)
		}

		if runErr != nil || failed {
			os.Exit(1)
		}
	},
}

func init() {
	AddCommand(runCmd)
	runCmd.Flags().StringP("input", "i", "", "File of JSON input values (default: stdin)")
	runCmd.Flags().IntP("instances", "n", 1, "Number of engines to run in parallel")
	runCmd.Flags().String("trace", "", "Write an execution trace of every engine to this JSON file")
	runCmd.Flags().Bool("fail-fast", false, "Stop every engine at the first failed action")
	runCmd.Flags().Bool("stats", false, "Print call counts and latencies of routines and user functions")
}

type runResult struct {
	output any
	err    error
	done   bool
}

// readInputs decodes a stream of JSON values.  Numbers stay json.Number so
// that longs keep their precision.
func readInputs(r io.Reader) ([]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out []any
	for {
		var datum any
		err := dec.Decode(&datum)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("value %d: %w", len(out), err)
		}
		out = append(out, datum)
	}
}

// runInstances gives input i to engine i mod len(engines).  Each engine
// handles its inputs in order.  With failFast the first failure cancels the
// other engines.
func runInstances(ctx context.Context, engines []*runtime.Engine, inputs []any, failFast bool) ([]runResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]runResult, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	for k, e := range engines {
		g.Go(func() error {
			for i := k; i < len(inputs); i += len(engines) {
				if ctx.Err() != nil {
					return nil
				}
				out, err := e.ActionContext(ctx, inputs[i])
				results[i] = runResult{output: out, err: err, done: true}
				if err != nil && failFast {
					return err
				}
			}
			return nil
		})
	}
	return results, g.Wait()
}

// printStats summarizes the traces of all engines per routine and user
// function.
func printStats(w io.Writer, engines []*runtime.Engine) {
	ms := runtime.NewMetricStore("*")
	for _, e := range engines {
		if t := e.Tracer(); t != nil {
			ms.ProcessTrace(t.Data(e.ID()))
		}
	}
	aggs := []runtime.AggregationType{runtime.AggAvg, runtime.AggP50, runtime.AggP99, runtime.AggMax}
	fmt.Fprintf(w, "%-24s %8s %8s %s (ms)\n", "target", "calls", "failed", strings.Join(gfn.Map(aggs, func(a runtime.AggregationType) string { return string(a) }), "/"))
	for _, target := range ms.Targets() {
		s, _ := ms.Get(target)
		values := gfn.Map(aggs, func(a runtime.AggregationType) string {
			v, _ := s.Aggregate(a)
			return fmt.Sprintf("%.3f", v)
		})
		line := fmt.Sprintf("%-24s %8d %8d %s", target, s.Count, s.Failures, strings.Join(values, "/"))
		if s.Failures > 0 {
			color.New(color.FgYellow).Fprintln(w, line)
		} else {
			fmt.Fprintln(w, line)
		}
	}
}

func writeTraces(path string, engines []*runtime.Engine) error {
	traces := make([]*runtime.TraceData, 0, len(engines))
	for _, e := range engines {
		if t := e.Tracer(); t != nil {
			traces = append(traces, t.Data(e.ID()))
		}
	}
	data, err := json.MarshalIndent(traces, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// unjoin splits an errors.Join result back into its parts.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
