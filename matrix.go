// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rowSumTolerance is the absolute tolerance for the row-stochasticity check.
const rowSumTolerance = 0.01

// Progression transitions move toward higher severity, improvement
// transitions toward lower. Treatment effects apply to exactly these
// directed pairs; OrganDamage and Death rows carry no treatment effect.
var (
	progressionTransitions = [][2]State{
		{Remission, Moderate},
		{Remission, Severe},
		{Remission, OrganDamage},
		{Moderate, Severe},
		{Moderate, OrganDamage},
		{Severe, OrganDamage},
	}
	improvementTransitions = [][2]State{
		{Moderate, Remission},
		{Severe, Remission},
		{Severe, Moderate},
	}
)

// BuildBaseline constructs the standard-care transition array: for every
// live state s, P[s,d] = (1-pDeath[s]) * base(s->d) for live destinations d
// and P[s,Death] = pDeath[s]; the Death row is the identity. The baseline is
// always validated strictly, since it is row-stochastic by construction and
// any violation indicates a logic defect.
func BuildBaseline(cfg *ModelConfig, mort *Mortality) (*TransitionArray, error) {
	if mort == nil {
		return nil, fmt.Errorf("mortality vectors missing: %w", ErrConfiguration)
	}
	if mort.Cycles != cfg.Cycles {
		return nil, fmt.Errorf("mortality vectors cover %d cycles, config has %d: %w",
			mort.Cycles, cfg.Cycles, ErrConfiguration)
	}

	ta := &TransitionArray{
		Strategy:  StandardOfCare,
		Cycles:    cfg.Cycles,
		P:         make([]*mat.Dense, cfg.Cycles),
		Validated: true,
	}

	for t := 0; t < cfg.Cycles; t++ {
		p := mat.NewDense(NumStates, NumStates, nil)
		for s := Remission; s <= OrganDamage; s++ {
			pd := mort.PDeath[s][t]
			for d := Remission; d <= OrganDamage; d++ {
				p.Set(int(s), int(d), (1-pd)*cfg.Base[s][d])
			}
			p.Set(int(s), int(Death), pd)
		}
		p.Set(int(Death), int(Death), 1)
		ta.P[t] = p
	}

	if err := ValidateRowStochastic(ta, rowSumTolerance); err != nil {
		return nil, fmt.Errorf("baseline matrix: %w", err)
	}
	return ta, nil
}

// BuildArm derives a treatment arm's transition array from the standard-care
// baseline. Every cycle matrix is a fresh copy of the baseline's; the
// baseline is never aliased, so both arms derive from the same untouched
// values.
//
// Per cycle, for each adjusted transition the conditional
// (survival-normalized) probability is recovered by dividing out
// (1-pDeath[from]), the strategy's effect is applied on its configured
// scale, and the result is rescaled by survival. The self-transition of each
// adjusted row is then recomputed as the remaining live mass, which keeps
// the row stochastic by construction. OrganDamage and Death rows are copied
// unchanged.
func BuildArm(cfg *ModelConfig, sc StrategyConfig, baseline *TransitionArray, mort *Mortality) (*TransitionArray, error) {
	if baseline == nil || mort == nil {
		return nil, fmt.Errorf("baseline or mortality vectors missing: %w", ErrConfiguration)
	}
	if baseline.Cycles != cfg.Cycles {
		return nil, fmt.Errorf("baseline covers %d cycles, config has %d: %w",
			baseline.Cycles, cfg.Cycles, ErrConfiguration)
	}
	if sc.ProgMultiplier <= 0 {
		return nil, fmt.Errorf("%s: progression multiplier %g must be > 0: %w",
			sc.Name, sc.ProgMultiplier, ErrInvalidInput)
	}
	if sc.ImprovementOR <= 0 {
		return nil, fmt.Errorf("%s: improvement odds ratio %g must be > 0: %w",
			sc.Name, sc.ImprovementOR, ErrInvalidInput)
	}

	ta := &TransitionArray{
		Strategy:  sc.Strategy,
		Cycles:    cfg.Cycles,
		P:         make([]*mat.Dense, cfg.Cycles),
		Validated: true,
	}

	for t := 0; t < cfg.Cycles; t++ {
		p := mat.DenseCopyOf(baseline.P[t])

		// Progression transitions: hazard ratio on the rate scale, or
		// relative risk on the probability scale, per strategy policy.
		for _, tr := range progressionTransitions {
			from, to := tr[0], tr[1]
			live := 1 - mort.PDeath[from][t]
			if live <= 0 {
				continue
			}
			cond := p.At(int(from), int(to)) / live

			var adj float64
			switch sc.ProgScale {
			case RateScale:
				rate, err := ProbToRate(cond, 1)
				if err != nil {
					return nil, fmt.Errorf("%s cycle %d %s->%s: %w", sc.Name, t, from, to, err)
				}
				adj, err = RateToProb(rate*sc.ProgMultiplier, 1)
				if err != nil {
					return nil, fmt.Errorf("%s cycle %d %s->%s: %w", sc.Name, t, from, to, err)
				}
			case ProbScale:
				adj = cond * sc.ProgMultiplier
			default:
				return nil, fmt.Errorf("%s: unknown effect scale %d: %w",
					sc.Name, sc.ProgScale, ErrConfiguration)
			}
			p.Set(int(from), int(to), adj*live)
		}

		// Improvement transitions: the reported odds ratio is converted to a
		// relative risk anchored at this transition's own conditional
		// baseline probability.
		for _, tr := range improvementTransitions {
			from, to := tr[0], tr[1]
			live := 1 - mort.PDeath[from][t]
			if live <= 0 {
				continue
			}
			cond := p.At(int(from), int(to)) / live
			rr, err := OddsRatioToRelRisk(sc.ImprovementOR, cond)
			if err != nil {
				return nil, fmt.Errorf("%s cycle %d %s->%s: %w", sc.Name, t, from, to, err)
			}
			p.Set(int(from), int(to), cond*rr*live)
		}

		// Self-transition reconciliation: the diagonal absorbs whatever live
		// mass the multiplicative adjustments left over. Rows whose
		// adjustments pushed the off-diagonal sum past the live mass go
		// negative here and are caught by validation below.
		for s := Remission; s <= Severe; s++ {
			live := 1 - mort.PDeath[s][t]
			other := 0.0
			for d := Remission; d <= OrganDamage; d++ {
				if d != s {
					other += p.At(int(s), int(d))
				}
			}
			p.Set(int(s), int(s), live-other)
		}

		ta.P[t] = p
	}

	if err := ValidateRowStochastic(ta, rowSumTolerance); err != nil {
		if cfg.StrictValidation {
			return nil, fmt.Errorf("%s matrix: %w", sc.Name, err)
		}
		log.Printf("WARNING: %s matrix failed validation, marking strategy invalid: %v", sc.Name, err)
		ta.Validated = false
	}
	return ta, nil
}

// ValidateRowStochastic checks that every live row of every cycle matrix
// sums to 1 within tol with all entries in [0,1], and that the Death row is
// exactly [0,...,0,1].
func ValidateRowStochastic(ta *TransitionArray, tol float64) error {
	// Entry-range slack is much tighter than the row-sum tolerance: a
	// slightly negative diagonal after reconciliation still indicates the
	// adjustments overran the row's live mass.
	const entrySlack = 1e-9

	for t := 0; t < ta.Cycles; t++ {
		p := ta.P[t]
		for s := Remission; s <= OrganDamage; s++ {
			row := mat.Row(nil, int(s), p)
			for d, v := range row {
				if v < -entrySlack || v > 1+entrySlack {
					return fmt.Errorf("cycle %d: P[%s,%s] = %g outside [0,1]: %w",
						t, s, State(d), v, ErrInvariantViolation)
				}
			}
			if sum := floats.Sum(row); sum < 1-tol || sum > 1+tol {
				return fmt.Errorf("cycle %d: row %s sums to %g: %w",
					t, s, sum, ErrInvariantViolation)
			}
		}
		for d := Remission; d <= Death; d++ {
			want := 0.0
			if d == Death {
				want = 1.0
			}
			if p.At(int(Death), int(d)) != want {
				return fmt.Errorf("cycle %d: Death row entry %s is %g, want %g: %w",
					t, d, p.At(int(Death), int(d)), want, ErrInvariantViolation)
			}
		}
	}
	return nil
}
