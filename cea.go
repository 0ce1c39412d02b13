// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"fmt"
	"log"
	"math"
	"sort"
)

// RunCEA ranks strategy outcomes by cost and computes the incremental
// cost-effectiveness ladder. Strongly dominated strategies (a cheaper
// strategy exists with greater-or-equal effect) and extended-dominated
// strategies (the ICER ladder is not increasing through them) are flagged
// and excluded from the incremental comparisons but stay in the returned
// table. Outcomes marked invalid never enter the ladder; their rows are
// still reported, flagged StatusInvalid with NaN increments.
func RunCEA(outcomes []StrategyOutcome) ([]CEARow, error) {
	rows := make([]CEARow, 0, len(outcomes))
	valid := 0
	for _, o := range outcomes {
		status := StatusNonDominated
		if !o.Valid {
			log.Printf("WARNING: %s excluded from the ICER ladder: transition matrix failed validation", o.Name)
			status = StatusInvalid
		} else {
			valid++
		}
		rows = append(rows, CEARow{
			Strategy: o.Strategy,
			Name:     o.Name,
			Cost:     o.Cost,
			QALYs:    o.QALYs,
			IncCost:  math.NaN(),
			IncQALYs: math.NaN(),
			ICER:     math.NaN(),
			Status:   status,
		})
	}
	if valid < 2 {
		return nil, fmt.Errorf("need at least 2 valid strategies, got %d: %w",
			valid, ErrInvalidInput)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Cost < rows[j].Cost })

	// Strong dominance: some strictly cheaper valid strategy yields at least
	// as much effect. Invalid rows neither dominate nor get re-flagged.
	for i := range rows {
		if rows[i].Status == StatusInvalid {
			continue
		}
		for j := range rows {
			if rows[j].Status == StatusInvalid {
				continue
			}
			if rows[j].Cost < rows[i].Cost && rows[j].QALYs >= rows[i].QALYs {
				rows[i].Status = StatusDominated
				break
			}
		}
	}

	// Extended dominance: walking the remaining frontier in cost order, the
	// ICERs must be increasing. A strategy whose ICER exceeds the next one's
	// is beaten by a mixture of its neighbors; drop it and recompute until
	// the ladder is clean.
	for {
		frontier := frontierIndices(rows)
		if len(frontier) < 3 {
			break
		}
		icers := make([]float64, len(frontier))
		for k := 1; k < len(frontier); k++ {
			a, b := rows[frontier[k-1]], rows[frontier[k]]
			icers[k] = (b.Cost - a.Cost) / (b.QALYs - a.QALYs)
		}
		removed := false
		for k := 1; k < len(frontier)-1; k++ {
			if icers[k] > icers[k+1] {
				rows[frontier[k]].Status = StatusExtendedDominated
				removed = true
				break
			}
		}
		if !removed {
			break
		}
	}

	// Final increments along the surviving frontier; the cheapest strategy
	// keeps NaN increments.
	frontier := frontierIndices(rows)
	for k := 1; k < len(frontier); k++ {
		a := rows[frontier[k-1]]
		i := frontier[k]
		rows[i].IncCost = rows[i].Cost - a.Cost
		rows[i].IncQALYs = rows[i].QALYs - a.QALYs
		rows[i].ICER = rows[i].IncCost / rows[i].IncQALYs
	}

	return rows, nil
}

// frontierIndices returns the indices of the non-dominated rows, preserving
// cost order.
func frontierIndices(rows []CEARow) []int {
	idx := make([]int, 0, len(rows))
	for i := range rows {
		if rows[i].Status == StatusNonDominated {
			idx = append(idx, i)
		}
	}
	return idx
}

// Incremental computes the cost, QALY and ICER increments of one strategy
// against a comparator, straight from their totals. The sensitivity sweep
// uses this rather than the full ladder, since a one-way scan tracks a
// single pairwise comparison.
func Incremental(outcomes []StrategyOutcome, comparator, intervention Strategy) (incCost, incQALYs, icer float64, err error) {
	var comp, intv *StrategyOutcome
	for i := range outcomes {
		switch outcomes[i].Strategy {
		case comparator:
			comp = &outcomes[i]
		case intervention:
			intv = &outcomes[i]
		}
	}
	if comp == nil || intv == nil {
		return 0, 0, 0, fmt.Errorf("comparator or intervention missing from outcomes: %w", ErrInvalidInput)
	}
	if !comp.Valid || !intv.Valid {
		return 0, 0, 0, fmt.Errorf("comparator or intervention outcome invalid: %w", ErrInvariantViolation)
	}
	incCost = intv.Cost - comp.Cost
	incQALYs = intv.QALYs - comp.QALYs
	return incCost, incQALYs, incCost / incQALYs, nil
}
