package planner

import "math"

// ConfidenceWeights configures every tunable of the availability heuristic.
type ConfidenceWeights struct {
	RatingFactor      float64                 `json:"rating_factor"`
	BaseCap           float64                 `json:"base_cap"`
	FlexibilityBonus  map[DateFlexibility]int `json:"flexibility_bonus"`
	PerDayPenalty     int                     `json:"per_day_penalty"`
	RushWindowDays    int                     `json:"rush_window_days"`
	ComfortWindowDays int                     `json:"comfort_window_days"`
	RushAdjustment    int                     `json:"rush_adjustment"`
	NearAdjustment    int                     `json:"near_adjustment"`
	FarAdjustment     int                     `json:"far_adjustment"`
	Floor             int                     `json:"floor"`
	Ceiling           int                     `json:"ceiling"`
	HighCutoff        int                     `json:"high_cutoff"`
	MediumCutoff      int                     `json:"medium_cutoff"`
}

// DefaultConfidenceWeights returns the production heuristic tuning.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		RatingFactor: 20,
		BaseCap:      95,
		FlexibilityBonus: map[DateFlexibility]int{
			FlexWithinThreeMonths:  10,
			FlexWithinSixMonths:    15,
			FlexWithinTwelveMonths: 20,
		},
		PerDayPenalty:     5,
		RushWindowDays:    30,
		ComfortWindowDays: 90,
		RushAdjustment:    -20,
		NearAdjustment:    -5,
		FarAdjustment:     5,
		Floor:             60,
		Ceiling:           95,
		HighCutoff:        85,
		MediumCutoff:      70,
	}
}

// ConfidenceInput bundles the arguments of a confidence computation.
// DaysUntilWedding is required only for FlexSpecificDate and ignored otherwise.
type ConfidenceInput struct {
	Rating           float64
	Flexibility      DateFlexibility
	DurationDays     int
	DaysUntilWedding *int
}

// ConfidenceResult is the bounded percentage plus its badge tier.
type ConfidenceResult struct {
	Percentage int  `json:"percentage"`
	Tier       Tier `json:"tier"`
}

// ConfidenceEngine converts vendor quality and schedule flexibility into a
// bounded availability confidence. Pure and safe for concurrent use.
type ConfidenceEngine struct {
	weights ConfidenceWeights
}

// NewConfidenceEngine constructs an engine around the supplied weights.
func NewConfidenceEngine(weights ConfidenceWeights) *ConfidenceEngine {
	return &ConfidenceEngine{weights: weights}
}

// Weights exposes the active tuning (primarily for the config endpoint).
func (e *ConfidenceEngine) Weights() ConfidenceWeights {
	return e.weights
}

// Compute scores a single vendor/preference pairing.
//
// Base confidence is rating-scaled and capped, then either a flexibility bonus
// or a specific-date adjustment is applied, then the multi-day penalty is
// subtracted, and the result is clamped to [Floor, Ceiling].
func (e *ConfidenceEngine) Compute(in ConfidenceInput) (ConfidenceResult, error) {
	w := e.weights

	if err := ValidateRating(in.Rating); err != nil {
		return ConfidenceResult{}, err
	}
	if err := ValidateSchedule(in.Flexibility, in.DurationDays, in.DaysUntilWedding); err != nil {
		return ConfidenceResult{}, err
	}

	base := in.Rating * w.RatingFactor
	if base > w.BaseCap {
		base = w.BaseCap
	}

	var adjustment int
	if in.Flexibility == FlexSpecificDate {
		switch days := *in.DaysUntilWedding; {
		case days < w.RushWindowDays:
			adjustment = w.RushAdjustment
		case days < w.ComfortWindowDays:
			adjustment = w.NearAdjustment
		default:
			adjustment = w.FarAdjustment
		}
	} else {
		adjustment = w.FlexibilityBonus[in.Flexibility]
	}

	penalty := (in.DurationDays - 1) * w.PerDayPenalty

	raw := base + float64(adjustment) - float64(penalty)
	if raw < float64(w.Floor) {
		raw = float64(w.Floor)
	}
	if raw > float64(w.Ceiling) {
		raw = float64(w.Ceiling)
	}

	percentage := int(math.Round(raw))
	return ConfidenceResult{Percentage: percentage, Tier: e.tierFor(percentage)}, nil
}

// tierFor maps a clamped percentage to its badge tier. Boundaries are
// inclusive on the higher label: 85 is High, 70 is Medium.
func (e *ConfidenceEngine) tierFor(percentage int) Tier {
	switch {
	case percentage >= e.weights.HighCutoff:
		return TierHigh
	case percentage >= e.weights.MediumCutoff:
		return TierMedium
	default:
		return TierLow
	}
}
