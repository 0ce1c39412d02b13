// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// requiredParamKeys enumerates the scalar inputs every parameter set must
// carry. The flat p_*_D death-probability keys are accepted but optional:
// the age-adjusted mortality pipeline is authoritative and those fields are
// placeholders (see BuildConfig).
var requiredParamKeys = []string{
	"n_cycles", "cycle_length", "start_age", "discount_rate",
	"init_moderate", "init_severe",
	"p_R_M", "p_R_S", "p_R_OD",
	"p_M_R", "p_M_S", "p_M_OD",
	"p_S_R", "p_S_M", "p_S_OD",
	"hr_mort_M", "hr_mort_S", "hr_mort_OD",
	"c_R", "c_M", "c_S", "c_OD", "c_D",
	"u_R", "u_M", "u_S", "u_OD", "u_D",
	"c_drug_A", "hr_prog_A", "or_impr_A",
	"c_drug_B", "rr_prog_B", "or_impr_B",
}

// optionalParamKeys are accepted without being required.
var optionalParamKeys = []string{"p_R_D", "p_M_D", "p_S_D", "p_OD_D"}

// DefaultParams returns the distributed base case: 65%/35% Severe/Moderate
// entry split, mean age 31.4, six-month cycles over a 100-year horizon,
// 3% annual discounting (about 0.0149 per cycle). With the built-in life
// table this set reproduces the published validation point for the second
// biologic versus standard care, about 0.69 incremental QALYs at an ICER
// near $195,000 per QALY.
func DefaultParams() Params {
	return Params{
		"n_cycles":      200,
		"cycle_length":  0.5,
		"start_age":     31.4,
		"discount_rate": 0.03,
		"init_moderate": 0.35,
		"init_severe":   0.65,

		// Standard-care transition proportions, conditional on survival.
		"p_R_M": 0.110, "p_R_S": 0.030, "p_R_OD": 0.041,
		"p_M_R": 0.145, "p_M_S": 0.116, "p_M_OD": 0.154,
		"p_S_R": 0.043, "p_S_M": 0.138, "p_S_OD": 0.336,

		// Flat death probabilities: placeholders, unused (age-adjusted
		// mortality is authoritative).
		"p_R_D": 0, "p_M_D": 0, "p_S_D": 0, "p_OD_D": 0,

		// Mortality hazard ratios vs Remission.
		"hr_mort_M": 1.2, "hr_mort_S": 2.6, "hr_mort_OD": 3.7,

		// Per-cycle state costs (USD) and utilities.
		"c_R": 2022.05, "c_M": 6053.55, "c_S": 13161.32, "c_OD": 18845.55, "c_D": 0,
		"u_R": 0.825, "u_M": 0.738, "u_S": 0.615, "u_OD": 0.513, "u_D": 0,

		// Drug A: progression hazard ratio on the rate scale.
		"c_drug_A": 14284.80, "hr_prog_A": 0.74, "or_impr_A": 1.86,

		// Drug B: progression relative risk on the probability scale.
		"c_drug_B": 22430.46, "rr_prog_B": 0.79, "or_impr_B": 2.41,
	}
}

// LoadParamsYAML reads a flat mapping of parameter name to value.
func LoadParamsYAML(path string) (Params, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	p := Params{}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", path, err, ErrConfiguration)
	}
	return p, nil
}

// ValidateParams checks that every required key is present, no unrecognized
// key appears, and every value is inside its domain.
func ValidateParams(p Params) error {
	known := make(map[string]bool, len(requiredParamKeys)+len(optionalParamKeys))
	for _, k := range requiredParamKeys {
		known[k] = true
		if _, ok := p[k]; !ok {
			return fmt.Errorf("required parameter %q missing: %w", k, ErrConfiguration)
		}
	}
	for _, k := range optionalParamKeys {
		known[k] = true
	}
	for k := range p {
		if !known[k] {
			return fmt.Errorf("unrecognized parameter %q: %w", k, ErrConfiguration)
		}
	}

	for k, v := range p {
		switch {
		case strings.HasPrefix(k, "p_") || strings.HasPrefix(k, "u_") || strings.HasPrefix(k, "init_"):
			if v < 0 || v > 1 {
				return fmt.Errorf("parameter %q = %g outside [0,1]: %w", k, v, ErrInvalidInput)
			}
		case strings.HasPrefix(k, "c_"):
			if v < 0 {
				return fmt.Errorf("parameter %q = %g is negative: %w", k, v, ErrInvalidInput)
			}
		case strings.HasPrefix(k, "hr_") || strings.HasPrefix(k, "rr_") || strings.HasPrefix(k, "or_"):
			if v <= 0 {
				return fmt.Errorf("parameter %q = %g must be > 0: %w", k, v, ErrInvalidInput)
			}
		case k == "n_cycles":
			if v < 1 || v != math.Trunc(v) {
				return fmt.Errorf("n_cycles = %g must be a positive integer: %w", v, ErrInvalidInput)
			}
		case k == "cycle_length":
			if v <= 0 {
				return fmt.Errorf("cycle_length = %g must be > 0: %w", v, ErrInvalidInput)
			}
		case k == "discount_rate":
			if v < 0 {
				return fmt.Errorf("discount_rate = %g is negative: %w", v, ErrInvalidInput)
			}
		case k == "start_age":
			if v < 0 {
				return fmt.Errorf("start_age = %g is negative: %w", v, ErrInvalidInput)
			}
		}
	}

	if s := p["init_moderate"] + p["init_severe"]; math.Abs(s-1) > massTolerance {
		return fmt.Errorf("initial split sums to %g, want 1: %w", s, ErrConfiguration)
	}

	return nil
}

// BuildConfig validates a parameter set and compiles it, together with a
// life table, into the immutable ModelConfig the pipeline runs on.
func BuildConfig(p Params, lt *LifeTable, wcc WCCMethod, strict bool) (*ModelConfig, error) {
	if err := ValidateParams(p); err != nil {
		return nil, err
	}
	if lt == nil || len(lt.Age) == 0 {
		return nil, fmt.Errorf("life table missing: %w", ErrConfiguration)
	}

	// The flat death-probability inputs are placeholders; the age-adjusted
	// mortality pipeline is authoritative. Surface a nonzero value instead
	// of silently ignoring it.
	for _, k := range optionalParamKeys {
		if p[k] != 0 {
			log.Printf("NOTE: %s = %g is ignored; death probabilities come from the age-adjusted life table", k, p[k])
		}
	}

	cfg := &ModelConfig{
		Cycles:           int(p["n_cycles"]),
		CycleLength:      p["cycle_length"],
		StartAge:         p["start_age"],
		DiscountRate:     p["discount_rate"],
		InitModerate:     p["init_moderate"],
		InitSevere:       p["init_severe"],
		WCC:              wcc,
		StrictValidation: strict,
		Life:             lt,
	}

	// Conditional transition rows among live states; the diagonal is the
	// survivor remainder so each live row sums to exactly 1.
	offDiag := map[State]map[State]float64{
		Remission: {Moderate: p["p_R_M"], Severe: p["p_R_S"], OrganDamage: p["p_R_OD"]},
		Moderate:  {Remission: p["p_M_R"], Severe: p["p_M_S"], OrganDamage: p["p_M_OD"]},
		Severe:    {Remission: p["p_S_R"], Moderate: p["p_S_M"], OrganDamage: p["p_S_OD"]},
	}
	for s, row := range offDiag {
		sum := 0.0
		for d, v := range row {
			cfg.Base[s][d] = v
			sum += v
		}
		if sum > 1 {
			return nil, fmt.Errorf("outgoing transition probabilities from %s sum to %g: %w",
				s, sum, ErrInvalidInput)
		}
		cfg.Base[s][s] = 1 - sum
	}
	// Organ damage is irreversible: survivors stay put.
	cfg.Base[OrganDamage][OrganDamage] = 1

	cfg.MortalityHR[Remission] = 1
	cfg.MortalityHR[Moderate] = p["hr_mort_M"]
	cfg.MortalityHR[Severe] = p["hr_mort_S"]
	cfg.MortalityHR[OrganDamage] = p["hr_mort_OD"]

	stateCosts := []float64{p["c_R"], p["c_M"], p["c_S"], p["c_OD"], p["c_D"]}
	utilities := []float64{p["u_R"], p["u_M"], p["u_S"], p["u_OD"], p["u_D"]}

	cfg.Strategies[StandardOfCare] = StrategyConfig{
		Strategy:       StandardOfCare,
		Name:           StandardOfCare.String(),
		Costs:          append([]float64(nil), stateCosts...),
		Utilities:      append([]float64(nil), utilities...),
		ProgMultiplier: 1,
		ProgScale:      RateScale,
		ImprovementOR:  1,
	}
	cfg.Strategies[DrugA] = armConfig(DrugA, stateCosts, utilities,
		p["c_drug_A"], p["hr_prog_A"], RateScale, p["or_impr_A"])
	cfg.Strategies[DrugB] = armConfig(DrugB, stateCosts, utilities,
		p["c_drug_B"], p["rr_prog_B"], ProbScale, p["or_impr_B"])

	return cfg, nil
}

// armConfig assembles a biologic arm: drug acquisition cost accrues in the
// states where treatment continues (Remission through Severe); treatment
// stops at irreversible organ damage.
func armConfig(st Strategy, stateCosts, utilities []float64, drugCost, progMult float64, scale EffectScale, improvementOR float64) StrategyConfig {
	costs := append([]float64(nil), stateCosts...)
	for s := Remission; s <= Severe; s++ {
		costs[s] += drugCost
	}
	return StrategyConfig{
		Strategy:       st,
		Name:           st.String(),
		Costs:          costs,
		Utilities:      append([]float64(nil), utilities...),
		ProgMultiplier: progMult,
		ProgScale:      scale,
		ImprovementOR:  improvementOR,
		DrugCost:       drugCost,
	}
}

// LoadLifeTableCSV reads an annual life table with header "age,rate" and one
// row per integer age.
func LoadLifeTableCSV(path string) (*LifeTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("life table %s needs age and rate columns: %w", path, ErrConfiguration)
	}

	lt := &LifeTable{}
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}
		age, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("parse age at row %d (%q): %w", row+2, record[0], err)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse rate at row %d (%q): %w", row+2, record[1], err)
		}
		if rate < 0 {
			return nil, fmt.Errorf("row %d: mortality rate %g is negative: %w", row+2, rate, ErrInvalidInput)
		}
		if row > 0 && age != lt.Age[row-1]+1 {
			return nil, fmt.Errorf("row %d: ages must be consecutive integers, got %d after %d: %w",
				row+2, age, lt.Age[row-1], ErrConfiguration)
		}
		lt.Age = append(lt.Age, age)
		lt.Rate = append(lt.Rate, rate)
		row++
	}
	if row == 0 {
		return nil, fmt.Errorf("no data rows in %s: %w", path, ErrConfiguration)
	}

	return lt, nil
}

// DefaultLifeTable returns a built-in annual life table for ages 0..110 from
// a Gompertz-Makeham fit to general-population all-cause mortality, so the
// model runs without an external file.
func DefaultLifeTable() *LifeTable {
	const (
		makeham  = 2.2e-4
		gompertz = 2.7e-5
		slope    = 0.093
	)
	lt := &LifeTable{
		Age:  make([]int, 111),
		Rate: make([]float64, 111),
	}
	for age := 0; age <= 110; age++ {
		lt.Age[age] = age
		lt.Rate[age] = makeham + gompertz*math.Exp(slope*float64(age))
	}
	return lt
}

// OutputTraceToCSV writes one strategy's cohort trace. Columns: cycle, then
// one column per state.
func OutputTraceToCSV(path string, trace *CohortTrace) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Cycle"}
	for s := Remission; s <= Death; s++ {
		header = append(header, s.String())
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for t := 0; t <= trace.Cycles; t++ {
		record := []string{fmt.Sprintf("%d", t)}
		for s := Remission; s <= Death; s++ {
			record = append(record, fmt.Sprintf("%f", trace.At(t, s)))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// OutputCEAToCSV writes the incremental cost-effectiveness table.
// Columns: Strategy, Cost, QALYs, IncCost, IncQALYs, ICER, Status.
func OutputCEAToCSV(path string, rows []CEARow) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Strategy", "Cost", "QALYs", "IncCost", "IncQALYs", "ICER", "Status"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Name,
			fmt.Sprintf("%.2f", row.Cost),
			fmt.Sprintf("%.4f", row.QALYs),
			naFmt(row.IncCost, "%.2f"),
			naFmt(row.IncQALYs, "%.4f"),
			naFmt(row.ICER, "%.2f"),
			row.Status.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// OutputSAToCSV writes the one-way sensitivity table.
// Columns: Parameter, Low, High, LowICER, HighICER, LowIncCost, HighIncCost,
// LowIncQALYs, HighIncQALYs.
func OutputSAToCSV(path string, results []SAResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Parameter", "Low", "High",
		"LowICER", "HighICER",
		"LowIncCost", "HighIncCost",
		"LowIncQALYs", "HighIncQALYs",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		record := []string{
			r.Param,
			fmt.Sprintf("%g", r.Low),
			fmt.Sprintf("%g", r.High),
			naFmt(r.LowICER, "%.2f"),
			naFmt(r.HighICER, "%.2f"),
			naFmt(r.LowIncCost, "%.2f"),
			naFmt(r.HighIncCost, "%.2f"),
			naFmt(r.LowIncQALYs, "%.4f"),
			naFmt(r.HighIncQALYs, "%.4f"),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// naFmt formats a float, mapping NaN to "NA".
func naFmt(v float64, format string) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return fmt.Sprintf(format, v)
}

// PrintCEATable prints the ICER table in a fixed-width layout.
func PrintCEATable(rows []CEARow) {
	fmt.Println("\n=== Cost-Effectiveness Results ===")
	fmt.Printf("%-18s | %12s | %8s | %12s | %9s | %12s | %s\n",
		"Strategy", "Cost", "QALYs", "Inc. Cost", "Inc. QALY", "ICER", "Status")
	fmt.Println(strings.Repeat("-", 100))
	for _, row := range rows {
		fmt.Printf("%-18s | %12.2f | %8.4f | %12s | %9s | %12s | %s\n",
			row.Name, row.Cost, row.QALYs,
			naFmt(row.IncCost, "%.2f"),
			naFmt(row.IncQALYs, "%.4f"),
			naFmt(row.ICER, "%.2f"),
			row.Status)
	}
	fmt.Println()
}

// PrintTraceSummary prints the cohort distribution at a handful of cycles.
func PrintTraceSummary(trace *CohortTrace) {
	fmt.Printf("\n=== Cohort trace: %s ===\n", trace.Strategy)
	fmt.Printf("%6s", "Cycle")
	for s := Remission; s <= Death; s++ {
		fmt.Printf("%13s", s)
	}
	fmt.Println()

	marks := []int{0, 1, 2, 5, 10, 20, 50, 100, trace.Cycles}
	last := -1
	for _, t := range marks {
		if t > trace.Cycles || t == last {
			continue
		}
		last = t
		fmt.Printf("%6d", t)
		for s := Remission; s <= Death; s++ {
			fmt.Printf("%13.6f", trace.At(t, s))
		}
		fmt.Println()
	}
}
