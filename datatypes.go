// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"gonum.org/v1/gonum/mat"
)

// State is one of the five mutually exclusive health states of the model.
// The ordering is fixed; Death is absorbing.
type State int

const (
	Remission State = iota
	Moderate
	Severe
	OrganDamage
	Death
)

// NumStates is the size of the state space.
const NumStates = 5

var stateNames = [NumStates]string{"Remission", "Moderate", "Severe", "OrganDamage", "Death"}

func (s State) String() string {
	if s < 0 || int(s) >= NumStates {
		return "Unknown"
	}
	return stateNames[s]
}

// Strategy identifies one of the three treatment strategies compared by the model.
type Strategy int

const (
	StandardOfCare Strategy = iota
	DrugA
	DrugB
)

// NumStrategies is the number of compared strategies.
const NumStrategies = 3

var strategyNames = [NumStrategies]string{"Standard of care", "Drug A + SoC", "Drug B + SoC"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= NumStrategies {
		return "Unknown"
	}
	return strategyNames[s]
}

// EffectScale selects how a strategy's progression multiplier is applied.
// The two biologics reported their trial effect sizes on different scales,
// so both policies are carried as explicit configuration.
type EffectScale int

const (
	// RateScale: convert the conditional probability to a rate, multiply by a
	// hazard ratio, convert back.
	RateScale EffectScale = iota
	// ProbScale: multiply the conditional probability directly by a relative risk.
	ProbScale
)

// WCCMethod selects the within-cycle correction weighting.
type WCCMethod int

const (
	WCCNone WCCMethod = iota
	WCCHalfCycle
	WCCSimpson
)

// Params is the flat mapping of named scalar inputs as read from the
// parameter file. BuildConfig validates and compiles it into a ModelConfig.
type Params map[string]float64

// LifeTable holds annual all-cause mortality rates indexed by integer age.
// Rows must be one per integer age, sorted ascending.
type LifeTable struct {
	Age  []int
	Rate []float64
}

// MaxAge returns the last tabulated age.
func (lt *LifeTable) MaxAge() int {
	return lt.Age[len(lt.Age)-1]
}

// RateAt looks up the annual mortality rate for an integer age, clamping to
// the first and last tabulated rows.
func (lt *LifeTable) RateAt(age int) float64 {
	if age <= lt.Age[0] {
		return lt.Rate[0]
	}
	if age >= lt.MaxAge() {
		return lt.Rate[len(lt.Rate)-1]
	}
	return lt.Rate[age-lt.Age[0]]
}

// StrategyConfig holds everything that differs between treatment arms.
// For standard of care the multipliers are 1 and the drug cost is 0.
type StrategyConfig struct {
	Strategy Strategy
	Name     string

	// Per-state per-cycle cost and utility vectors, length NumStates.
	// Costs already include the per-cycle drug acquisition cost on the
	// states where treatment continues.
	Costs     []float64
	Utilities []float64

	// Multiplier on progression transitions (low -> high severity),
	// interpreted per ProgScale. 1.0 means no effect.
	ProgMultiplier float64
	ProgScale      EffectScale

	// Odds ratio on improvement transitions (high -> low severity),
	// converted to a relative risk at each transition's own conditional
	// baseline probability. 1.0 means no effect.
	ImprovementOR float64

	// Per-cycle drug acquisition cost, kept for reporting; already folded
	// into Costs.
	DrugCost float64
}

// ModelConfig is the immutable compiled configuration threaded through every
// stage of the pipeline.
type ModelConfig struct {
	Cycles       int
	CycleLength  float64 // years per cycle
	StartAge     float64 // mean cohort age at cycle 0
	DiscountRate float64 // annual discount rate

	// Initial cohort split; must sum to 1. All other states start at 0.
	InitModerate float64
	InitSevere   float64

	WCC              WCCMethod
	StrictValidation bool

	// Base[s][d]: standard-care transition proportion from live state s to
	// live state d, conditional on surviving the cycle. Each live row sums
	// to 1 (the diagonal is derived from the off-diagonal inputs).
	Base [NumStates][NumStates]float64

	// MortalityHR[s]: hazard ratio on the baseline (Remission) death rate
	// for state s. Remission is 1 by definition; Death is unused.
	MortalityHR [NumStates]float64

	Strategies [NumStrategies]StrategyConfig

	Life *LifeTable
}

// Mortality holds the per-cycle, state-stratified death probabilities
// derived from the life table (see BuildMortality).
type Mortality struct {
	Cycles int
	// AgeAt[t]: integer model age used for cycle t.
	AgeAt []int
	// PDeath[s][t]: probability of dying during cycle t from state s.
	// The Death slot is zeroed and unused.
	PDeath [NumStates][]float64
}

// TransitionArray is one strategy's per-cycle transition matrices.
// P[t] is the NumStates x NumStates stochastic matrix for cycle t.
type TransitionArray struct {
	Strategy Strategy
	Cycles   int
	P        []*mat.Dense

	// Validated is false when lenient validation found a row-stochasticity
	// violation; downstream totals must then be marked invalid.
	Validated bool
}

// CohortTrace is the sequence of cohort distributions over states.
// Dist is (Cycles+1) x NumStates; row t is the distribution after t cycles
// and sums to 1.
type CohortTrace struct {
	Strategy Strategy
	Cycles   int
	Dist     *mat.Dense
}

// At returns the probability mass in state s after t cycles.
func (tr *CohortTrace) At(t int, s State) float64 {
	return tr.Dist.At(t, int(s))
}

// StrategyOutcome is one strategy's discounted lifetime totals plus the
// intermediate structures the presentation layer consumes for diagnostics.
type StrategyOutcome struct {
	Strategy Strategy
	Name     string

	Cost  float64 // total discounted cost
	QALYs float64 // total discounted QALYs

	// Valid is false when the strategy's transition array failed lenient
	// validation; such totals must not enter the ICER ladder.
	Valid bool

	Trace       *CohortTrace
	Transitions *TransitionArray
}

// CEAStatus classifies a strategy's position on the cost-effectiveness
// frontier.
type CEAStatus int

const (
	StatusNonDominated CEAStatus = iota
	StatusDominated
	StatusExtendedDominated
	StatusInvalid
)

func (s CEAStatus) String() string {
	switch s {
	case StatusNonDominated:
		return "ND"
	case StatusDominated:
		return "Dominated"
	case StatusExtendedDominated:
		return "ExtDominated"
	case StatusInvalid:
		return "Invalid"
	}
	return "Unknown"
}

// CEARow is one line of the incremental cost-effectiveness table, ordered by
// ascending cost. Incremental fields are NaN for the cheapest strategy and
// for dominated or invalid strategies (which are flagged, not deleted).
type CEARow struct {
	Strategy Strategy
	Name     string

	Cost  float64
	QALYs float64

	IncCost  float64
	IncQALYs float64
	ICER     float64

	Status CEAStatus
}

// SAParamRange is one swept parameter of a one-way sensitivity analysis.
type SAParamRange struct {
	Name string
	Low  float64
	High float64
}

// SAResult holds the outcomes of one swept parameter at its low and high
// values. Outcomes are the incremental results of the intervention arm
// against the comparator; NaN when that trial's pipeline failed.
type SAResult struct {
	Param string
	Low   float64
	High  float64

	LowICER  float64
	HighICER float64

	LowIncCost  float64
	HighIncCost float64

	LowIncQALYs  float64
	HighIncQALYs float64
}

// SAOptions configures a one-way sensitivity sweep.
type SAOptions struct {
	Comparator   Strategy
	Intervention Strategy
	// Workers caps the worker pool; 0 means runtime.NumCPU().
	Workers int
}
