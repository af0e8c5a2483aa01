// Package pipeline sequences the compiler core's six stages over one
// Program and reports what each stage did, per §2 and §6. It is the
// library entry point instruction selection's output is handed to;
// cmd/shaderopt is a thin CLI wrapper around this package.
package pipeline

import (
	"context"

	"github.com/wavecc/shadercore/boollower"
	"github.com/wavecc/shadercore/chip"
	"github.com/wavecc/shadercore/divergence"
	"github.com/wavecc/shadercore/ir"
	"github.com/wavecc/shadercore/liveness"
	"github.com/wavecc/shadercore/pseudoelim"
	"github.com/wavecc/shadercore/regalloc"
	"github.com/wavecc/shadercore/spill"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Result reports what each stage produced, for logging and tests. It
// is returned only on success; on failure the caller gets an *Error
// instead and must not trust p's contents.
type Result struct {
	Divergence *divergence.Result
	Liveness   *liveness.Result
	Spill      *spill.Result // nil if no spilling was needed.
	Regalloc   *regalloc.Result
	PseudoElim *pseudoelim.Result
	Target     chip.WaveTableEntry
}

// Compile executes stages A through F over p in place. Each pass owns
// the program exclusively for its duration and later passes observe
// all earlier rewrites (§5); there is no cancellation mid-pipeline.
//
// The two fatal kinds, InvariantViolation and InternalInconsistency,
// are raised as a panic carrying *Error and recovered here at the API
// boundary, mirroring the teacher's own internal
// panic-then-recover-at-builder-boundary convention -- both name bugs
// that should never reach a caller given well-formed input, not
// conditions a driver can meaningfully act on. Unsupported and
// ResourceExhaustion are ordinary returned errors: a driver is expected
// to see these and fall back to the reference backend.
//
// On ResourceExhaustion, p.Config.NumWaves is set to 0 before returning
// (§7): the caller should retry the shader through the reference
// backend rather than trust the partially mutated program.
func Compile(ctx context.Context, p *ir.Program) (res *Result, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "pipeline: compile")
	defer tr.Finish("err", &err)
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			err = perr
		}
	}()

	if verr := checkInvariants(p); verr != nil {
		panic(fail(InvariantViolation, "validate", verr))
	}

	div := divergence.Analyze(p)

	boollower.Lower(p)

	if verr := checkInvariants(p); verr != nil {
		panic(fail(InternalInconsistency, "boollower", verr))
	}

	live := liveness.Analyze(p)
	demand := live.MaxDemand()
	tr.Printw("stage C done", "scalar_demand", demand.Scalar, "vector_demand", demand.Vector)

	target, ok, badOverride := selectTarget(p, demand)
	if !ok {
		requested := p.Config.NumWaves
		p.Config.NumWaves = 0
		if badOverride {
			panic(fail(InternalInconsistency, "select-target",
				errors.New("config.num_waves=%d names no wave table row", requested)))
		}
		return nil, fail(ResourceExhaustion, "select-target",
			errors.New("vector demand %d exceeds every wave table row's vector slots", demand.Vector))
	}
	if demand.Vector > target.MaxVGPR {
		p.Config.NumWaves = 0
		return nil, fail(ResourceExhaustion, "select-target",
			errors.New("vector demand %d exceeds target %d's %d vector slots", demand.Vector, target.NumWaves, target.MaxVGPR))
	}

	var sres *spill.Result
	if demand.Scalar > target.MaxSGPR {
		tr.Printw("spilling scalar demand", "scalar_demand", demand.Scalar, "target_max_sgpr", target.MaxSGPR)
		sres = spill.Run(p, live, target)

		live = liveness.Analyze(p)
		demand = live.MaxDemand()
		if demand.Scalar > target.MaxSGPR {
			p.Config.NumWaves = 0
			panic(fail(InternalInconsistency, "spill",
				errors.New("scalar demand %d still exceeds target %d after spilling", demand.Scalar, target.MaxSGPR)))
		}
	}

	rres := regalloc.Run(p, live, target)

	pres := pseudoelim.Run(p)

	p.Config.NumSGPRs = target.TotalScalarFootprint()
	p.Config.NumVGPRs = target.MaxVGPR
	p.Config.NumWaves = target.NumWaves
	p.NumWaves = target.NumWaves

	tr.Printw("pipeline done", "num_waves", target.NumWaves, "num_sgprs", p.Config.NumSGPRs, "num_vgprs", p.Config.NumVGPRs,
		"sgprs_used", rres.NumSGPRsUsed, "vgprs_used", rres.NumVGPRsUsed)

	return &Result{
		Divergence: div,
		Liveness:   live,
		Spill:      sres,
		Regalloc:   rres,
		PseudoElim: pres,
		Target:     target,
	}, nil
}
