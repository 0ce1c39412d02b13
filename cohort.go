// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// massTolerance is the tolerance on total probability mass of a distribution.
const massTolerance = 1e-9

// InitialDistribution returns the cycle-0 cohort distribution: the cohort
// enters split across Moderate and Severe, with no mass elsewhere.
func InitialDistribution(cfg *ModelConfig) []float64 {
	init := make([]float64, NumStates)
	init[Moderate] = cfg.InitModerate
	init[Severe] = cfg.InitSevere
	return init
}

// Propagate iterates the cohort distribution through the per-cycle
// transition matrices: row t+1 of the trace is row t left-multiplied by the
// cycle-t matrix. Because each matrix row is stochastic, total mass stays 1
// at every step.
func Propagate(ta *TransitionArray, init []float64) (*CohortTrace, error) {
	if len(init) != NumStates {
		return nil, fmt.Errorf("initial distribution has %d entries, want %d: %w",
			len(init), NumStates, ErrInvalidInput)
	}
	if sum := floats.Sum(init); math.Abs(sum-1) > massTolerance {
		return nil, fmt.Errorf("initial distribution sums to %g: %w", sum, ErrInvalidInput)
	}

	dist := mat.NewDense(ta.Cycles+1, NumStates, nil)
	dist.SetRow(0, init)

	cur := mat.NewVecDense(NumStates, nil)
	next := mat.NewVecDense(NumStates, nil)
	copy(cur.RawVector().Data, init)

	for t := 0; t < ta.Cycles; t++ {
		// Row-vector times matrix, written as P^T * v.
		next.MulVec(ta.P[t].T(), cur)
		dist.SetRow(t+1, next.RawVector().Data)
		cur.CopyVec(next)
	}

	return &CohortTrace{Strategy: ta.Strategy, Cycles: ta.Cycles, Dist: dist}, nil
}

// Aggregate combines a cohort trace with per-state cost and utility vectors,
// the shared within-cycle correction weights and the shared discount
// factors, into total discounted cost and QALYs.
//
// Per cycle t, the instantaneous cost is the dot product of the distribution
// with the cost vector, and the instantaneous QALY contribution is the dot
// product with the utility vector scaled by the cycle length in years.
func Aggregate(trace *CohortTrace, costs, utils, wcc, disc []float64, cycleLenYears float64) (cost, qalys float64, err error) {
	n := trace.Cycles
	if len(costs) != NumStates || len(utils) != NumStates {
		return 0, 0, fmt.Errorf("cost/utility vectors must have %d entries: %w",
			NumStates, ErrInvalidInput)
	}
	if len(wcc) != n+1 || len(disc) != n+1 {
		return 0, 0, fmt.Errorf("weight vectors have %d/%d entries, want %d: %w",
			len(wcc), len(disc), n+1, ErrInvalidInput)
	}

	for t := 0; t <= n; t++ {
		row := mat.Row(nil, t, trace.Dist)
		w := wcc[t] * disc[t]
		cost += floats.Dot(row, costs) * w
		qalys += floats.Dot(row, utils) * cycleLenYears * w
	}
	return cost, qalys, nil
}

// RunModel executes the full pipeline for one configuration: mortality
// adjustment, the three transition arrays, three propagations, and the
// discounted aggregation, returning one outcome per strategy in strategy
// order. The WCC and discount vectors are built once and shared across
// strategies.
func RunModel(cfg *ModelConfig) ([]StrategyOutcome, error) {
	mort, err := BuildMortality(cfg)
	if err != nil {
		return nil, err
	}

	baseline, err := BuildBaseline(cfg, mort)
	if err != nil {
		return nil, err
	}

	wcc, err := GenWCC(cfg.Cycles, cfg.WCC)
	if err != nil {
		return nil, err
	}
	disc, err := DiscountFactors(cfg.DiscountRate, cfg.CycleLength, cfg.Cycles)
	if err != nil {
		return nil, err
	}

	init := InitialDistribution(cfg)

	outcomes := make([]StrategyOutcome, 0, NumStrategies)
	for _, sc := range cfg.Strategies {
		var ta *TransitionArray
		if sc.Strategy == StandardOfCare {
			ta = baseline
		} else {
			ta, err = BuildArm(cfg, sc, baseline, mort)
			if err != nil {
				return nil, err
			}
		}

		trace, err := Propagate(ta, init)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sc.Name, err)
		}

		cost, qalys, err := Aggregate(trace, sc.Costs, sc.Utilities, wcc, disc, cfg.CycleLength)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sc.Name, err)
		}

		outcomes = append(outcomes, StrategyOutcome{
			Strategy:    sc.Strategy,
			Name:        sc.Name,
			Cost:        cost,
			QALYs:       qalys,
			Valid:       ta.Validated,
			Trace:       trace,
			Transitions: ta,
		})
	}

	return outcomes, nil
}
