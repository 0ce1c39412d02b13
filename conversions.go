// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"fmt"
	"math"
)

// RateToProb converts a constant event rate over a period of t years into
// the probability of at least one event in that period: 1 - exp(-rate*t).
func RateToProb(rate, t float64) (float64, error) {
	if rate < 0 {
		return 0, fmt.Errorf("rate %g is negative: %w", rate, ErrInvalidInput)
	}
	if t <= 0 {
		return 0, fmt.Errorf("period %g must be > 0: %w", t, ErrInvalidInput)
	}
	return 1 - math.Exp(-rate*t), nil
}

// ProbToRate converts a probability of an event over a period of t years
// back into the constant event rate: -ln(1-prob)/t. A probability of
// exactly 1 yields +Inf.
func ProbToRate(prob, t float64) (float64, error) {
	if prob < 0 || prob > 1 {
		return 0, fmt.Errorf("probability %g outside [0,1]: %w", prob, ErrInvalidInput)
	}
	if t <= 0 {
		return 0, fmt.Errorf("period %g must be > 0: %w", t, ErrInvalidInput)
	}
	return -math.Log(1-prob) / t, nil
}

// OddsRatioToRelRisk converts an odds ratio to a relative risk at a given
// baseline probability (Zhang-Yu transform). Effect sizes for improvement
// transitions are reported as odds ratios, but the matrix builder needs a
// multiplier that applies directly to probabilities.
func OddsRatioToRelRisk(or, baseProb float64) (float64, error) {
	if or <= 0 {
		return 0, fmt.Errorf("odds ratio %g must be > 0: %w", or, ErrInvalidInput)
	}
	if baseProb < 0 || baseProb > 1 {
		return 0, fmt.Errorf("base probability %g outside [0,1]: %w", baseProb, ErrInvalidInput)
	}
	return or / (1 - baseProb + baseProb*or), nil
}

// GenWCC produces the within-cycle correction weight vector of length
// numCycles+1. Summing the cohort trace at discrete cycle boundaries
// overstates the continuous-time state occupancy; these weights correct the
// sum toward the integral.
//
//	WCCNone:      all weights 1
//	WCCHalfCycle: trapezoidal rule, endpoints 0.5
//	WCCSimpson:   composite Simpson's 1/3 rule, endpoints 1/3, interior
//	              weights alternating 4/3 (odd index) and 2/3 (even index);
//	              requires an even cycle count, and the weights then sum to
//	              exactly numCycles
func GenWCC(numCycles int, method WCCMethod) ([]float64, error) {
	if numCycles <= 0 {
		return nil, fmt.Errorf("cycle count %d must be > 0: %w", numCycles, ErrInvalidInput)
	}

	w := make([]float64, numCycles+1)

	switch method {
	case WCCNone:
		for i := range w {
			w[i] = 1
		}
	case WCCHalfCycle:
		for i := range w {
			w[i] = 1
		}
		w[0] = 0.5
		w[numCycles] = 0.5
	case WCCSimpson:
		if numCycles%2 != 0 {
			return nil, fmt.Errorf("Simpson weights need an even cycle count, got %d: %w",
				numCycles, ErrInvalidInput)
		}
		for i := 1; i < numCycles; i++ {
			if i%2 == 1 {
				w[i] = 4.0 / 3.0
			} else {
				w[i] = 2.0 / 3.0
			}
		}
		w[0] = 1.0 / 3.0
		w[numCycles] = 1.0 / 3.0
	default:
		return nil, fmt.Errorf("unknown WCC method %d: %w", method, ErrInvalidInput)
	}

	return w, nil
}

// DiscountFactors returns the vector v with v[t] = 1/(1+rate)^(t*cycleLenYears)
// for t = 0..numCycles. The rate is annual; the exponent converts cycle
// indices to years. The vector is built once and shared read-only across
// strategies so their totals stay comparable.
func DiscountFactors(rate, cycleLenYears float64, numCycles int) ([]float64, error) {
	if rate < 0 {
		return nil, fmt.Errorf("discount rate %g is negative: %w", rate, ErrInvalidInput)
	}
	if cycleLenYears <= 0 {
		return nil, fmt.Errorf("cycle length %g must be > 0: %w", cycleLenYears, ErrInvalidInput)
	}
	if numCycles <= 0 {
		return nil, fmt.Errorf("cycle count %d must be > 0: %w", numCycles, ErrInvalidInput)
	}

	v := make([]float64, numCycles+1)
	for t := 0; t <= numCycles; t++ {
		v[t] = 1 / math.Pow(1+rate, float64(t)*cycleLenYears)
	}
	return v, nil
}
