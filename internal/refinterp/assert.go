package refinterp

import "github.com/wavecc/shadercore/pipeline"

// Interpreter's method set matches pipeline.ReferenceInterpreter's
// exactly, proving that boundary interface is genuinely implementable
// by something this core can build and test against itself.
var _ pipeline.ReferenceInterpreter = (*Interpreter)(nil)
