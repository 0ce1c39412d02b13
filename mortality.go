// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"fmt"
	"math"
)

// BuildMortality maps the annual life table to per-cycle, state-stratified
// death probabilities.
//
// The model age for cycle t is startAge + t*cycleLength rounded up to the
// next integer age and clamped to the last tabulated age. The baseline
// (Remission) death probability is the annual rate at that age converted to
// a cycle probability. The Moderate, Severe and OrganDamage vectors multiply
// the baseline *rate* by the state hazard ratio before reconverting:
// hazard ratios carry proportional-hazards semantics on the rate scale and
// must never be applied to probabilities directly.
func BuildMortality(cfg *ModelConfig) (*Mortality, error) {
	if cfg.Life == nil || len(cfg.Life.Age) == 0 {
		return nil, fmt.Errorf("life table missing: %w", ErrConfiguration)
	}
	if len(cfg.Life.Age) != len(cfg.Life.Rate) {
		return nil, fmt.Errorf("life table has %d ages but %d rates: %w",
			len(cfg.Life.Age), len(cfg.Life.Rate), ErrConfiguration)
	}
	for s := Moderate; s <= OrganDamage; s++ {
		if cfg.MortalityHR[s] < 0 {
			return nil, fmt.Errorf("mortality hazard ratio for %s is %g: %w",
				s, cfg.MortalityHR[s], ErrInvalidInput)
		}
	}

	m := &Mortality{
		Cycles: cfg.Cycles,
		AgeAt:  make([]int, cfg.Cycles),
	}
	for s := Remission; s <= OrganDamage; s++ {
		m.PDeath[s] = make([]float64, cfg.Cycles)
	}

	maxAge := cfg.Life.MaxAge()
	for t := 0; t < cfg.Cycles; t++ {
		age := int(math.Ceil(cfg.StartAge + float64(t)*cfg.CycleLength))
		if age > maxAge {
			age = maxAge
		}
		m.AgeAt[t] = age

		rate := cfg.Life.RateAt(age)
		for s := Remission; s <= OrganDamage; s++ {
			hr := 1.0
			if s != Remission {
				hr = cfg.MortalityHR[s]
			}
			p, err := RateToProb(rate*hr, cfg.CycleLength)
			if err != nil {
				return nil, fmt.Errorf("cycle %d state %s: %w", t, s, err)
			}
			m.PDeath[s][t] = p
		}
	}

	return m, nil
}
