package planner

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"testing"
)

const amountTolerance = 1e-6

func defaultBudgetEngine(t *testing.T) *BudgetEngine {
	t.Helper()
	engine, err := NewBudgetEngine(DefaultBracketTable(), DefaultCategoryMultipliers())
	if err != nil {
		t.Fatalf("budget engine: %v", err)
	}
	return engine
}

func TestComputeBudgetPremiumThreeDays(t *testing.T) {
	engine := defaultBudgetEngine(t)

	result, err := engine.Compute(BracketPremium, 3)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	expected := map[Category]float64{
		CategoryVenue:         1_800_000,
		CategoryCatering:      1_875_000,
		CategoryPhotography:   787_500,
		CategoryDecoration:    675_000,
		CategoryMakeup:        562_500,
		CategoryMiscellaneous: 450_000,
	}
	for cat, amount := range expected {
		if math.Abs(result.CategoryBreakdown[cat]-amount) > amountTolerance {
			t.Fatalf("category %s: expected %v got %v", cat, amount, result.CategoryBreakdown[cat])
		}
	}
	if math.Abs(result.TotalBudget-6_150_000) > amountTolerance {
		t.Fatalf("expected total 6150000 got %v", result.TotalBudget)
	}
}

func TestComputeBudgetTotalIsBreakdownSum(t *testing.T) {
	engine := defaultBudgetEngine(t)

	for _, bracket := range Brackets() {
		for _, days := range []int{1, 2, 7, 14} {
			result, err := engine.Compute(bracket, days)
			if err != nil {
				t.Fatalf("compute %s/%d: %v", bracket, days, err)
			}
			sum := 0.0
			for _, amount := range result.CategoryBreakdown {
				sum += amount
			}
			if math.Abs(sum-result.TotalBudget) > amountTolerance {
				t.Fatalf("%s/%d: breakdown sums to %v, total is %v", bracket, days, sum, result.TotalBudget)
			}
		}
	}
}

func TestComputeBudgetSingleDay(t *testing.T) {
	engine := defaultBudgetEngine(t)

	result, err := engine.Compute(BracketPremium, 1)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	// The multiplier table is authoritative even for one day, so the single-day
	// total lands below the nominal bracket total (effective factor 0.82).
	if math.Abs(result.TotalBudget-2_050_000) > amountTolerance {
		t.Fatalf("expected total 2050000 got %v", result.TotalBudget)
	}
	if math.Abs(result.CategoryBreakdown[CategoryVenue]-600_000) > amountTolerance {
		t.Fatalf("expected venue 600000 got %v", result.CategoryBreakdown[CategoryVenue])
	}
}

func TestComputeBudgetInvalidInput(t *testing.T) {
	engine := defaultBudgetEngine(t)

	tests := []struct {
		name     string
		bracket  BudgetBracket
		duration int
		field    string
	}{
		{"duration too long", BracketPremium, 15, "duration_days"},
		{"duration too short", BracketPremium, 0, "duration_days"},
		{"unknown bracket", "platinum", 3, "bracket"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Compute(tc.bracket, tc.duration); err == nil {
				t.Fatal("expected error")
			} else {
				var invalid *InvalidInputError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected InvalidInputError got %T", err)
				}
				if invalid.Field != tc.field {
					t.Fatalf("expected field %q got %q", tc.field, invalid.Field)
				}
			}
		})
	}
}

func TestNewBudgetEngineValidation(t *testing.T) {
	t.Run("split must sum to 100", func(t *testing.T) {
		brackets := DefaultBracketTable()
		cfg := brackets[BracketPremium]
		cfg.Split[CategoryVenue] = 40
		brackets[BracketPremium] = cfg
		if _, err := NewBudgetEngine(brackets, DefaultCategoryMultipliers()); err == nil {
			t.Fatal("expected split validation error")
		}
	})

	t.Run("missing multiplier", func(t *testing.T) {
		multipliers := DefaultCategoryMultipliers()
		delete(multipliers, CategoryMakeup)
		if _, err := NewBudgetEngine(DefaultBracketTable(), multipliers); err == nil {
			t.Fatal("expected multiplier validation error")
		}
	})

	t.Run("non positive total", func(t *testing.T) {
		brackets := DefaultBracketTable()
		cfg := brackets[BracketBudget]
		cfg.Total = 0
		brackets[BracketBudget] = cfg
		if _, err := NewBudgetEngine(brackets, DefaultCategoryMultipliers()); err == nil {
			t.Fatal("expected total validation error")
		}
	})
}

func TestLoadBracketTable(t *testing.T) {
	table := BracketTable{
		BracketBudget: {Total: 500_000, Split: defaultSplit()},
	}
	path := writeBracketFile(t, table)

	loaded, err := LoadBracketTable(path)
	if err != nil {
		t.Fatalf("load bracket table: %v", err)
	}
	engine, err := NewBudgetEngine(loaded, DefaultCategoryMultipliers())
	if err != nil {
		t.Fatalf("budget engine: %v", err)
	}

	result, err := engine.Compute(BracketBudget, 2)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if math.Abs(result.TotalBudget-820_000) > amountTolerance {
		t.Fatalf("expected total 820000 got %v", result.TotalBudget)
	}

	if _, err := engine.Compute(BracketPremium, 2); err == nil {
		t.Fatal("expected unknown bracket error for missing override entry")
	}
}

func writeBracketFile(t *testing.T, table BracketTable) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "brackets-*.json")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return f.Name()
}
