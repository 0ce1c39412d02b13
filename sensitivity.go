// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"
)

// saTrial is one low/high pair of pipeline runs for a swept parameter.
type saTrial struct {
	idx int
	res SAResult
}

// OneWaySA reruns the full pipeline once per swept parameter at its low and
// high value and records the incremental outcome of the intervention arm
// against the comparator. Every trial owns its own copy of the parameter
// map and all intermediate arrays, so trials are independent and run on a
// worker pool. Trials whose pipeline errors produce NaN outcomes rather
// than failing the batch; sweeps run with lenient validation since extreme
// scan values may momentarily violate the matrix tolerance.
func OneWaySA(params Params, life *LifeTable, ranges []SAParamRange, opts SAOptions) ([]SAResult, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no parameters to sweep: %w", ErrInvalidInput)
	}
	for _, r := range ranges {
		if _, ok := params[r.Name]; !ok {
			return nil, fmt.Errorf("swept parameter %q not in parameter set: %w",
				r.Name, ErrConfiguration)
		}
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(ranges) {
		numWorkers = len(ranges)
	}

	jobs := make(chan int)
	resultsCh := make(chan saTrial, len(ranges))

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	worker := func() {
		defer wg.Done()
		for i := range jobs {
			r := ranges[i]
			res := SAResult{Param: r.Name, Low: r.Low, High: r.High}

			res.LowIncCost, res.LowIncQALYs, res.LowICER =
				runTrial(params, life, r.Name, r.Low, opts)
			res.HighIncCost, res.HighIncQALYs, res.HighICER =
				runTrial(params, life, r.Name, r.High, opts)

			resultsCh <- saTrial{idx: i, res: res}
		}
	}

	for w := 0; w < numWorkers; w++ {
		go worker()
	}

	go func() {
		for i := range ranges {
			jobs <- i
		}
		close(jobs)
	}()

	results := make([]SAResult, len(ranges))
	for range ranges {
		tr := <-resultsCh
		results[tr.idx] = tr.res
	}

	wg.Wait()
	close(resultsCh)

	return results, nil
}

// runTrial runs the pipeline with one parameter overridden and returns the
// pairwise incremental outcome, or NaNs if any stage failed.
func runTrial(params Params, life *LifeTable, name string, value float64, opts SAOptions) (incCost, incQALYs, icer float64) {
	nan := math.NaN()

	p := make(Params, len(params))
	for k, v := range params {
		p[k] = v
	}
	p[name] = value

	cfg, err := BuildConfig(p, life, WCCHalfCycle, false)
	if err != nil {
		log.Printf("sensitivity: %s=%g: %v", name, value, err)
		return nan, nan, nan
	}

	outcomes, err := RunModel(cfg)
	if err != nil {
		log.Printf("sensitivity: %s=%g: %v", name, value, err)
		return nan, nan, nan
	}

	incCost, incQALYs, icer, err = Incremental(outcomes, opts.Comparator, opts.Intervention)
	if err != nil {
		log.Printf("sensitivity: %s=%g: %v", name, value, err)
		return nan, nan, nan
	}
	return incCost, incQALYs, icer
}

// DefaultSARanges is the standard tornado set: each numeric driver of the
// base case scanned at +/-20%, with probabilities capped to stay in domain.
func DefaultSARanges(params Params) []SAParamRange {
	sweep := []string{
		"c_drug_B", "c_drug_A",
		"rr_prog_B", "hr_prog_A",
		"or_impr_B", "or_impr_A",
		"hr_mort_S", "hr_mort_OD",
		"u_S", "u_OD",
		"c_S", "c_OD",
		"discount_rate",
	}
	ranges := make([]SAParamRange, 0, len(sweep))
	for _, name := range sweep {
		base, ok := params[name]
		if !ok {
			continue
		}
		low, high := base*0.8, base*1.2
		if isProbParam(name) && high > 1 {
			high = 1
		}
		ranges = append(ranges, SAParamRange{Name: name, Low: low, High: high})
	}
	return ranges
}

// isProbParam reports whether a parameter key names a probability or a
// utility, both bounded by 1.
func isProbParam(name string) bool {
	return len(name) > 2 && (name[:2] == "p_" || name[:2] == "u_")
}
