// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spg

const (
	zero = 0.0
	one  = 1.0
	half = 0.5
)

const (
	// spectral step safeguard: 𝚊𝚕𝚙𝚑𝚊 ∉ (10⁻¹⁰, 10¹⁰] falls back to 1
	alphaMin = 1e-10
	alphaMax = 1e10
	// backtracking keeps the new step within [0.001t, 0.6t]
	shrinkMin = 1e-3
	shrinkMax = 0.6
)

// Status reports why the solver stopped.
type Status int

const (
	// ConvOptimality max|P(x-g)-x| fell below OptTolerance.
	ConvOptimality Status = 1 << iota
	// ConvNoDescent the projected direction is not a descent direction: gᵀd > -ProgTolerance.
	ConvNoDescent
	// ConvStepSize the accepted step max|td| fell below ProgTolerance.
	ConvStepSize
	// ConvFuncChange the objective changed by less than ProgTolerance.
	ConvFuncChange
	// StopLineSearch backtracking shrank the step to nothing without sufficient decrease.
	StopLineSearch
	// OverEvalLimit the number of function evaluations exceeded MaxEvaluations.
	OverEvalLimit
	// HaltEvalPanic the evaluation callback panicked.
	HaltEvalPanic
	// HaltProjError the projection callback returned an error.
	HaltProjError

	solveLoop Status = 0

	convergence = ConvOptimality | ConvNoDescent | ConvStepSize | ConvFuncChange
)

func (s Status) String() string {
	switch s {
	case ConvOptimality:
		return "CONVERGENCE: FIRST-ORDER OPTIMALITY BELOW OPTTOL"
	case ConvNoDescent:
		return "CONVERGENCE: DIRECTIONAL DERIVATIVE BELOW PROGTOL"
	case ConvStepSize:
		return "CONVERGENCE: STEP SIZE BELOW PROGTOL"
	case ConvFuncChange:
		return "CONVERGENCE: FUNCTION VALUE CHANGING BY LESS THAN PROGTOL"
	case StopLineSearch:
		return "ABNORMAL_TERMINATION_IN_LNSRCH"
	case OverEvalLimit:
		return "STOP: FUNCTION EVALUATIONS EXCEEDS LIMIT"
	case HaltEvalPanic:
		return "STOP: EVALUATION PANICKED"
	case HaltProjError:
		return "STOP: PROJECTION FAILED"
	default:
		return "UNKNOWN TASK"
	}
}
