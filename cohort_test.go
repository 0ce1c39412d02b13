// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPropagateMassConservation(t *testing.T) {
	cfg := testConfig(t, 50)
	mort, _ := BuildMortality(cfg)
	base, _ := BuildBaseline(cfg, mort)

	trace, err := Propagate(base, InitialDistribution(cfg))
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	// Mass must be conserved after every cycle, not just at the end.
	for cyc := 0; cyc <= trace.Cycles; cyc++ {
		sum := 0.0
		for s := 0; s < NumStates; s++ {
			sum += trace.Dist.At(cyc, s)
		}
		if !almostEqual(sum, 1, 1e-9) {
			t.Errorf("cycle %d: total mass = %v", cyc, sum)
		}
	}
}

func TestPropagateInitialDistribution(t *testing.T) {
	cfg := testConfig(t, 5)
	init := InitialDistribution(cfg)

	if !almostEqual(init[Moderate], 0.35, 1e-12) || !almostEqual(init[Severe], 0.65, 1e-12) {
		t.Errorf("initial split = %v/%v, want 0.35/0.65", init[Moderate], init[Severe])
	}
	if init[Remission] != 0 || init[OrganDamage] != 0 || init[Death] != 0 {
		t.Error("initial mass outside Moderate/Severe")
	}
}

func TestPropagateInvalidInit(t *testing.T) {
	cfg := testConfig(t, 5)
	mort, _ := BuildMortality(cfg)
	base, _ := BuildBaseline(cfg, mort)

	bad := []float64{0.5, 0.4, 0, 0, 0}
	if _, err := Propagate(base, bad); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unnormalized init: got %v, want ErrInvalidInput", err)
	}

	if _, err := Propagate(base, []float64{1, 0}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short init: got %v, want ErrInvalidInput", err)
	}
}

func TestDeathMassMonotoneAndAbsorbing(t *testing.T) {
	// Full base case: 200 six-month cycles from mean age 31.4.
	cfg := testConfig(t, 200)
	mort, _ := BuildMortality(cfg)
	base, _ := BuildBaseline(cfg, mort)

	trace, err := Propagate(base, InitialDistribution(cfg))
	if err != nil {
		t.Fatalf("Propagate failed: %v", err)
	}

	prev := trace.At(0, Death)
	for cyc := 1; cyc <= trace.Cycles; cyc++ {
		cur := trace.At(cyc, Death)
		if cur < prev-1e-12 {
			t.Fatalf("death mass decreased at cycle %d: %v -> %v", cyc, prev, cur)
		}
		prev = cur
	}

	// Over a 100-year horizon the cohort is essentially fully absorbed.
	if final := trace.At(trace.Cycles, Death); final < 0.99 {
		t.Errorf("final death mass = %v, want near 1", final)
	}
}

func TestAggregateHandComputed(t *testing.T) {
	dist := mat.NewDense(2, NumStates, nil)
	dist.SetRow(0, []float64{0, 0, 1, 0, 0})
	dist.SetRow(1, []float64{0, 0, 0.5, 0, 0.5})
	trace := &CohortTrace{Strategy: StandardOfCare, Cycles: 1, Dist: dist}

	costs := []float64{0, 0, 10, 0, 0}
	utils := []float64{0, 0, 0.6, 0, 0}
	wcc := []float64{1, 1}
	disc := []float64{1, 1}

	cost, qalys, err := Aggregate(trace, costs, utils, wcc, disc, 0.5)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if !almostEqual(cost, 15, 1e-12) {
		t.Errorf("cost = %v, want 15", cost)
	}
	// 0.6*0.5 at cycle 0 plus 0.3*0.5 at cycle 1.
	if !almostEqual(qalys, 0.45, 1e-12) {
		t.Errorf("qalys = %v, want 0.45", qalys)
	}
}

func TestAggregateWCCAndDiscount(t *testing.T) {
	dist := mat.NewDense(3, NumStates, nil)
	for cyc := 0; cyc < 3; cyc++ {
		dist.SetRow(cyc, []float64{1, 0, 0, 0, 0})
	}
	trace := &CohortTrace{Cycles: 2, Dist: dist}

	costs := []float64{100, 0, 0, 0, 0}
	utils := []float64{1, 0, 0, 0, 0}
	wcc := []float64{0.5, 1, 0.5}
	disc := []float64{1, 0.9, 0.81}

	cost, qalys, err := Aggregate(trace, costs, utils, wcc, disc, 1)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	wantCost := 100*0.5 + 100*0.9 + 100*0.5*0.81
	if !almostEqual(cost, wantCost, 1e-12) {
		t.Errorf("cost = %v, want %v", cost, wantCost)
	}
	wantQ := 0.5 + 0.9 + 0.5*0.81
	if !almostEqual(qalys, wantQ, 1e-12) {
		t.Errorf("qalys = %v, want %v", qalys, wantQ)
	}
}

func TestAggregateLengthChecks(t *testing.T) {
	dist := mat.NewDense(2, NumStates, nil)
	dist.SetRow(0, []float64{1, 0, 0, 0, 0})
	dist.SetRow(1, []float64{1, 0, 0, 0, 0})
	trace := &CohortTrace{Cycles: 1, Dist: dist}

	good := make([]float64, NumStates)
	if _, _, err := Aggregate(trace, []float64{1}, good, []float64{1, 1}, []float64{1, 1}, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short cost vector: got %v, want ErrInvalidInput", err)
	}
	if _, _, err := Aggregate(trace, good, good, []float64{1}, []float64{1, 1}, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("short wcc vector: got %v, want ErrInvalidInput", err)
	}
}

func TestRunModelBaseCase(t *testing.T) {
	cfg := testConfig(t, 200)

	outcomes, err := RunModel(cfg)
	if err != nil {
		t.Fatalf("RunModel failed: %v", err)
	}
	if len(outcomes) != NumStrategies {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), NumStrategies)
	}

	soc := outcomes[StandardOfCare]
	for _, o := range outcomes {
		if !o.Valid {
			t.Errorf("%s marked invalid", o.Name)
		}
		if o.Cost <= 0 || o.QALYs <= 0 {
			t.Errorf("%s: non-positive totals cost=%v qalys=%v", o.Name, o.Cost, o.QALYs)
		}
	}

	// The biologic arms trade higher cost for higher effect.
	for _, st := range []Strategy{DrugA, DrugB} {
		o := outcomes[st]
		if o.QALYs <= soc.QALYs {
			t.Errorf("%s QALYs %v not above standard care %v", o.Name, o.QALYs, soc.QALYs)
		}
		if o.Cost <= soc.Cost {
			t.Errorf("%s cost %v not above standard care %v", o.Name, o.Cost, soc.Cost)
		}
	}

	// Published validation point for the stronger biologic versus standard
	// care: roughly 0.69 incremental QALYs at close to $195,000 per QALY,
	// each within 5%.
	incCost, incQALYs, icer, err := Incremental(outcomes, StandardOfCare, DrugB)
	if err != nil {
		t.Fatalf("Incremental failed: %v", err)
	}
	if incCost <= 0 {
		t.Fatalf("incremental cost = %v, want positive", incCost)
	}
	if math.Abs(incQALYs-0.69)/0.69 > 0.05 {
		t.Errorf("incremental QALYs = %v, want 0.69 within 5%%", incQALYs)
	}
	if math.Abs(icer-195000)/195000 > 0.05 {
		t.Errorf("ICER = %v, want 195000 within 5%%", icer)
	}
}
