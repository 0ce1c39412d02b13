// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import "errors"

// Error kinds of the model pipeline. Stage functions wrap these with
// fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	// ErrInvalidInput indicates an out-of-domain scalar: a negative rate, a
	// probability outside [0,1], a non-positive odds ratio, or a
	// non-positive cycle count.
	ErrInvalidInput = errors.New("model: invalid input")

	// ErrInvariantViolation indicates a constructed transition matrix failed
	// the row-stochasticity check beyond tolerance.
	ErrInvariantViolation = errors.New("model: transition matrix invariant violated")

	// ErrConfiguration indicates a missing or contradictory parameter in the
	// input configuration.
	ErrConfiguration = errors.New("model: configuration error")
)
