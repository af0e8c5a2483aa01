// Command shaderopt is a thin driver around package pipeline: it reads
// a textual IR dump (package text), runs the compiler core's stages
// A through F, and writes the allocated IR back out, or reports
// ResourceExhaustion for the caller to retry via a reference backend.
// It stands in for the compiler driver that this core's own packages
// treat as out of scope, giving the library an exercised entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/wavecc/shadercore/ir"
	"github.com/wavecc/shadercore/ir/text"
	"github.com/wavecc/shadercore/pipeline"
)

func main() {
	runCmd := &cli.Command{
		Name:        "run",
		Description: "parse a textual IR dump, run the pipeline, and print the allocated IR",
		Action:      runAct,
		Args:        cli.Args{},
	}

	dumpCmd := &cli.Command{
		Name:        "dump-ir",
		Description: "parse a textual IR dump and re-print it unchanged, for normalizing hand-written input",
		Action:      dumpAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "shaderopt",
		Description: "shaderopt compiles a divergence-aware shader IR dump through register allocation",
		Commands: []*cli.Command{
			runCmd,
			dumpCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func runAct(c *cli.Command) (err error) {
	ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())

	for _, a := range c.Args {
		p, err := parseFile(a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		res, err := pipeline.Compile(ctx, p)
		if err != nil {
			if perr, ok := err.(*pipeline.Error); ok && perr.Kind == pipeline.ResourceExhaustion {
				fmt.Fprintf(os.Stderr, "%v: resource_exhaustion: %v -- retry via the reference backend\n", a, perr)
				continue
			}
			return errors.Wrap(err, "compile %v", a)
		}

		tlog.Printw("compiled", "file", a, "num_waves", res.Target.NumWaves,
			"num_sgprs", p.Config.NumSGPRs, "num_vgprs", p.Config.NumVGPRs)
		fmt.Print(text.Format(p))
	}

	return nil
}

func dumpAct(c *cli.Command) (err error) {
	for _, a := range c.Args {
		p, err := parseFile(a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}
		fmt.Print(text.Format(p))
	}

	return nil
}

func parseFile(path string) (*ir.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open %v", path)
	}
	defer f.Close()

	return text.Parse(f)
}
