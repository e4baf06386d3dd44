package planner

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// splitTolerance bounds the float drift allowed when a bracket's category
// percentages are checked against 100.
const splitTolerance = 1e-6

// BracketConfig holds a bracket's single-day total and its category split.
// Split values are percentages and must sum to 100 per bracket.
type BracketConfig struct {
	Total float64              `json:"total"`
	Split map[Category]float64 `json:"split"`
}

// BracketTable maps bracket names to their configuration.
type BracketTable map[BudgetBracket]BracketConfig

// defaultSplit is shared by all brackets until per-bracket tuning diverges.
func defaultSplit() map[Category]float64 {
	return map[Category]float64{
		CategoryVenue:         30,
		CategoryCatering:      25,
		CategoryPhotography:   15,
		CategoryDecoration:    15,
		CategoryMakeup:        7.5,
		CategoryMiscellaneous: 7.5,
	}
}

// DefaultBracketTable returns the production bracket tuning. Totals are
// currency-agnostic units; the original deployment quoted them in lakh.
func DefaultBracketTable() BracketTable {
	return BracketTable{
		BracketBudget:      {Total: 1_000_000, Split: defaultSplit()},
		BracketPremium:     {Total: 2_500_000, Split: defaultSplit()},
		BracketLuxury:      {Total: 5_000_000, Split: defaultSplit()},
		BracketUltraLuxury: {Total: 10_000_000, Split: defaultSplit()},
	}
}

// DefaultCategoryMultipliers returns the per-day scaling factors. Categories
// that reuse setup across days (venue, decoration) sit below 1.0; per-head
// categories (catering, makeup) scale linearly.
func DefaultCategoryMultipliers() map[Category]float64 {
	return map[Category]float64{
		CategoryVenue:         0.8,
		CategoryCatering:      1.0,
		CategoryPhotography:   0.7,
		CategoryDecoration:    0.6,
		CategoryMakeup:        1.0,
		CategoryMiscellaneous: 0.8,
	}
}

// LoadBracketTable reads a bracket table override from the provided JSON file.
func LoadBracketTable(path string) (BracketTable, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read bracket table: %w", err)
	}
	var table BracketTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("unmarshal bracket table: %w", err)
	}
	return table, nil
}

// BudgetResult carries the scaled total and its per-category breakdown.
// The total always equals the sum of the breakdown.
type BudgetResult struct {
	Bracket           BudgetBracket        `json:"bracket"`
	DurationDays      int                  `json:"duration_days"`
	TotalBudget       float64              `json:"total_budget"`
	CategoryBreakdown map[Category]float64 `json:"category_breakdown"`
}

// BudgetEngine scales a single-day bracket into a multi-day budget using
// per-category day multipliers. Pure and safe for concurrent use.
type BudgetEngine struct {
	brackets    BracketTable
	multipliers map[Category]float64
}

// NewBudgetEngine validates the supplied tables and constructs an engine.
func NewBudgetEngine(brackets BracketTable, multipliers map[Category]float64) (*BudgetEngine, error) {
	if len(brackets) == 0 {
		return nil, invalidInput("brackets", "empty table")
	}
	for name, cfg := range brackets {
		if _, err := ParseBracket(string(name)); err != nil {
			return nil, err
		}
		if cfg.Total <= 0 {
			return nil, invalidInput("total", cfg.Total)
		}
		sum := 0.0
		for _, cat := range Categories() {
			pct, ok := cfg.Split[cat]
			if !ok {
				return nil, invalidInput("split", fmt.Sprintf("%s missing %s", name, cat))
			}
			if pct < 0 {
				return nil, invalidInput("split", pct)
			}
			sum += pct
		}
		if math.Abs(sum-100) > splitTolerance {
			return nil, invalidInput("split", fmt.Sprintf("%s sums to %v", name, sum))
		}
	}
	for _, cat := range Categories() {
		mult, ok := multipliers[cat]
		if !ok || mult <= 0 {
			return nil, invalidInput("multiplier", fmt.Sprintf("%s: %v", cat, mult))
		}
	}
	return &BudgetEngine{brackets: brackets, multipliers: multipliers}, nil
}

// Brackets lists the configured brackets in canonical order.
func (e *BudgetEngine) Brackets() []BudgetBracket {
	out := make([]BudgetBracket, 0, len(e.brackets))
	for _, b := range Brackets() {
		if _, ok := e.brackets[b]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Multipliers exposes the active per-day multiplier table.
func (e *BudgetEngine) Multipliers() map[Category]float64 {
	out := make(map[Category]float64, len(e.multipliers))
	for k, v := range e.multipliers {
		out[k] = v
	}
	return out
}

// BracketTotal returns the nominal single-day total for a bracket.
func (e *BudgetEngine) BracketTotal(bracket BudgetBracket) (float64, error) {
	cfg, ok := e.brackets[bracket]
	if !ok {
		return 0, invalidInput("bracket", bracket)
	}
	return cfg.Total, nil
}

// Compute scales the bracket's single-day split across the celebration days.
//
// Each category amount is baseShare x durationDays x multiplier; the grand
// total is the sum of the scaled categories, not bracketTotal x days. The
// multiplier applies to the full day count because it already encodes the
// discount relative to a naively linear projection.
func (e *BudgetEngine) Compute(bracket BudgetBracket, durationDays int) (BudgetResult, error) {
	cfg, ok := e.brackets[bracket]
	if !ok {
		return BudgetResult{}, invalidInput("bracket", bracket)
	}
	if durationDays < 1 || durationDays > 14 {
		return BudgetResult{}, invalidInput("duration_days", durationDays)
	}

	breakdown := make(map[Category]float64, len(cfg.Split))
	total := 0.0
	for _, cat := range Categories() {
		base := cfg.Total * cfg.Split[cat] / 100
		amount := base * float64(durationDays) * e.multipliers[cat]
		breakdown[cat] = amount
		total += amount
	}

	return BudgetResult{
		Bracket:           bracket,
		DurationDays:      durationDays,
		TotalBudget:       total,
		CategoryBreakdown: breakdown,
	}, nil
}
