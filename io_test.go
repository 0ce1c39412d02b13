// Project: A Markov Cohort Cost-Effectiveness Analysis of Biologic Therapy
//          in Systemic Lupus Erythematosus
// Model: five-state cohort state-transition model with six-month cycles

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultParamsValid(t *testing.T) {
	if err := ValidateParams(DefaultParams()); err != nil {
		t.Fatalf("base case fails validation: %v", err)
	}
}

func TestValidateParamsMissingKey(t *testing.T) {
	p := DefaultParams()
	delete(p, "hr_mort_S")
	if err := ValidateParams(p); !errors.Is(err, ErrConfiguration) {
		t.Errorf("missing key: got %v, want ErrConfiguration", err)
	}
}

func TestValidateParamsUnknownKey(t *testing.T) {
	p := DefaultParams()
	p["p_typo"] = 0.5
	if err := ValidateParams(p); !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown key: got %v, want ErrConfiguration", err)
	}
}

func TestValidateParamsDomains(t *testing.T) {
	tests := []struct {
		key   string
		value float64
	}{
		{"p_R_M", 1.5},
		{"p_M_S", -0.1},
		{"u_S", 1.2},
		{"c_OD", -100},
		{"or_impr_A", 0},
		{"hr_prog_A", -0.5},
		{"n_cycles", 10.5},
		{"n_cycles", 0},
		{"cycle_length", 0},
		{"discount_rate", -0.03},
	}
	for i, test := range tests {
		p := DefaultParams()
		p[test.key] = test.value
		if err := ValidateParams(p); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Test %d (%s=%v): got %v, want ErrInvalidInput",
				i+1, test.key, test.value, err)
		}
	}
}

func TestValidateParamsInitSplit(t *testing.T) {
	p := DefaultParams()
	p["init_moderate"] = 0.5
	p["init_severe"] = 0.4
	if err := ValidateParams(p); !errors.Is(err, ErrConfiguration) {
		t.Errorf("bad split: got %v, want ErrConfiguration", err)
	}
}

func TestBuildConfigBaseRows(t *testing.T) {
	cfg := testConfig(t, 10)

	// The derived diagonals make every live conditional row sum to 1.
	for s := Remission; s <= OrganDamage; s++ {
		sum := 0.0
		for d := Remission; d <= OrganDamage; d++ {
			sum += cfg.Base[s][d]
		}
		if !almostEqual(sum, 1, 1e-12) {
			t.Errorf("conditional row %s sums to %v", s, sum)
		}
	}
	if cfg.Base[OrganDamage][OrganDamage] != 1 {
		t.Errorf("organ damage survivors must stay put, got %v", cfg.Base[OrganDamage][OrganDamage])
	}
}

func TestBuildConfigRowOverflow(t *testing.T) {
	p := DefaultParams()
	p["p_M_R"] = 0.5
	p["p_M_S"] = 0.4
	p["p_M_OD"] = 0.3
	if _, err := BuildConfig(p, DefaultLifeTable(), WCCHalfCycle, true); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("overflowing row: got %v, want ErrInvalidInput", err)
	}
}

func TestBuildConfigDrugCosts(t *testing.T) {
	cfg := testConfig(t, 10)
	p := DefaultParams()

	for _, st := range []Strategy{DrugA, DrugB} {
		sc := cfg.Strategies[st]
		for s := Remission; s <= Severe; s++ {
			base := cfg.Strategies[StandardOfCare].Costs[s]
			if !almostEqual(sc.Costs[s], base+sc.DrugCost, 1e-9) {
				t.Errorf("%s: cost in %s = %v, want state cost %v plus drug cost %v",
					sc.Name, s, sc.Costs[s], base, sc.DrugCost)
			}
		}
		// Treatment stops at organ damage; no drug cost there or in death.
		if sc.Costs[OrganDamage] != p["c_OD"] || sc.Costs[Death] != p["c_D"] {
			t.Errorf("%s: drug cost leaked into OrganDamage/Death", sc.Name)
		}
	}

	if cfg.Strategies[DrugA].ProgScale != RateScale {
		t.Error("drug A must adjust progression on the rate scale")
	}
	if cfg.Strategies[DrugB].ProgScale != ProbScale {
		t.Error("drug B must adjust progression on the probability scale")
	}
}

func TestLoadParamsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	content := "n_cycles: 10\ncycle_length: 0.5\nc_drug_B: 22430.46\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadParamsYAML(path)
	if err != nil {
		t.Fatalf("LoadParamsYAML failed: %v", err)
	}
	if p["n_cycles"] != 10 || p["cycle_length"] != 0.5 {
		t.Errorf("parsed %v", p)
	}
	if !almostEqual(p["c_drug_B"], 22430.46, 1e-9) {
		t.Errorf("c_drug_B = %v", p["c_drug_B"])
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("n_cycles: [not, a, scalar]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadParamsYAML(bad); !errors.Is(err, ErrConfiguration) {
		t.Errorf("bad yaml: got %v, want ErrConfiguration", err)
	}
}

func TestLoadLifeTableCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "life.csv")
	content := "age,rate\n0,0.005\n1,0.0004\n2,0.0003\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lt, err := LoadLifeTableCSV(path)
	if err != nil {
		t.Fatalf("LoadLifeTableCSV failed: %v", err)
	}
	if lt.MaxAge() != 2 {
		t.Errorf("max age = %d, want 2", lt.MaxAge())
	}
	if lt.RateAt(1) != 0.0004 {
		t.Errorf("RateAt(1) = %v, want 0.0004", lt.RateAt(1))
	}
	// Out-of-range lookups clamp to the table ends.
	if lt.RateAt(-5) != 0.005 || lt.RateAt(90) != 0.0003 {
		t.Errorf("clamping failed: %v, %v", lt.RateAt(-5), lt.RateAt(90))
	}

	gap := filepath.Join(dir, "gap.csv")
	if err := os.WriteFile(gap, []byte("age,rate\n0,0.005\n2,0.0003\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLifeTableCSV(gap); !errors.Is(err, ErrConfiguration) {
		t.Errorf("gapped ages: got %v, want ErrConfiguration", err)
	}
}

func TestDefaultLifeTable(t *testing.T) {
	lt := DefaultLifeTable()
	if lt.Age[0] != 0 || lt.MaxAge() != 110 {
		t.Fatalf("age span %d-%d, want 0-110", lt.Age[0], lt.MaxAge())
	}
	// Adult mortality rises with age.
	for age := 30; age < 110; age++ {
		if lt.RateAt(age+1) <= lt.RateAt(age) {
			t.Errorf("rate not increasing at age %d", age)
		}
	}
}
