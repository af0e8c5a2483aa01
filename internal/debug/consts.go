// Package debug centralizes the compile-time debug/validation toggles
// used across the pipeline, so "where do we enable X" is one file.
// Ported in spirit from wazevoapi's debug_consts.go.
package debug

// These must stay false by default; flip locally when debugging a
// specific pass.
const (
	DivergenceLoggingEnabled = false
	LivenessLoggingEnabled   = false
	SpillLoggingEnabled      = false
	RegAllocLoggingEnabled   = false
)

// Validation toggles stay enabled until the implementation has enough
// fuzzing/soak time to disable them for release builds.
const (
	SSAValidationEnabled     = true
	RegAllocValidationEnabled = true
)
