package planner

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestComputeConfidence(t *testing.T) {
	engine := NewConfidenceEngine(DefaultConfidenceWeights())

	tests := []struct {
		name       string
		input      ConfidenceInput
		percentage int
		tier       Tier
	}{
		{"clamped ceiling single day", ConfidenceInput{Rating: 4.5, Flexibility: FlexWithinSixMonths, DurationDays: 1}, 95, TierHigh},
		{"clamped ceiling three days", ConfidenceInput{Rating: 4.5, Flexibility: FlexWithinSixMonths, DurationDays: 3}, 95, TierHigh},
		{"week long penalty", ConfidenceInput{Rating: 4.5, Flexibility: FlexWithinSixMonths, DurationDays: 7}, 75, TierMedium},
		{"rush specific date floors", ConfidenceInput{Rating: 4.0, Flexibility: FlexSpecificDate, DurationDays: 1, DaysUntilWedding: intPtr(20)}, 60, TierLow},
		{"specific date near window", ConfidenceInput{Rating: 4.0, Flexibility: FlexSpecificDate, DurationDays: 1, DaysUntilWedding: intPtr(45)}, 75, TierMedium},
		{"specific date far ahead", ConfidenceInput{Rating: 4.0, Flexibility: FlexSpecificDate, DurationDays: 1, DaysUntilWedding: intPtr(120)}, 85, TierHigh},
		{"perfect rating base capped", ConfidenceInput{Rating: 5.0, Flexibility: FlexWithinTwelveMonths, DurationDays: 1}, 95, TierHigh},
		{"high boundary inclusive", ConfidenceInput{Rating: 3.5, Flexibility: FlexWithinSixMonths, DurationDays: 1}, 85, TierHigh},
		{"just below high", ConfidenceInput{Rating: 3.7, Flexibility: FlexWithinThreeMonths, DurationDays: 1}, 84, TierMedium},
		{"medium boundary inclusive", ConfidenceInput{Rating: 3.0, Flexibility: FlexWithinThreeMonths, DurationDays: 1}, 70, TierMedium},
		{"just below medium", ConfidenceInput{Rating: 2.95, Flexibility: FlexWithinThreeMonths, DurationDays: 1}, 69, TierLow},
		{"floor never undercut", ConfidenceInput{Rating: 0, Flexibility: FlexSpecificDate, DurationDays: 14, DaysUntilWedding: intPtr(0)}, 60, TierLow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := engine.Compute(tc.input)
			if err != nil {
				t.Fatalf("compute: %v", err)
			}
			if result.Percentage != tc.percentage {
				t.Fatalf("expected percentage %d got %d", tc.percentage, result.Percentage)
			}
			if result.Tier != tc.tier {
				t.Fatalf("expected tier %s got %s", tc.tier, result.Tier)
			}
		})
	}
}

func TestComputeConfidenceInvalidInput(t *testing.T) {
	engine := NewConfidenceEngine(DefaultConfidenceWeights())

	tests := []struct {
		name  string
		input ConfidenceInput
		field string
	}{
		{"rating above range", ConfidenceInput{Rating: 6, Flexibility: FlexWithinSixMonths, DurationDays: 1}, "rating"},
		{"rating below range", ConfidenceInput{Rating: -0.1, Flexibility: FlexWithinSixMonths, DurationDays: 1}, "rating"},
		{"duration too short", ConfidenceInput{Rating: 4, Flexibility: FlexWithinSixMonths, DurationDays: 0}, "duration_days"},
		{"duration too long", ConfidenceInput{Rating: 4, Flexibility: FlexWithinSixMonths, DurationDays: 15}, "duration_days"},
		{"unknown flexibility", ConfidenceInput{Rating: 4, Flexibility: "someday", DurationDays: 1}, "flexibility"},
		{"missing days until", ConfidenceInput{Rating: 4, Flexibility: FlexSpecificDate, DurationDays: 1}, "days_until_wedding"},
		{"negative days until", ConfidenceInput{Rating: 4, Flexibility: FlexSpecificDate, DurationDays: 1, DaysUntilWedding: intPtr(-1)}, "days_until_wedding"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Compute(tc.input); err == nil {
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

func TestComputeConfidenceBounds(t *testing.T) {
	engine := NewConfidenceEngine(DefaultConfidenceWeights())
	flexibilities := []DateFlexibility{FlexWithinThreeMonths, FlexWithinSixMonths, FlexWithinTwelveMonths, FlexSpecificDate}

	for rating := 0.0; rating <= 5.0; rating += 0.5 {
		for _, flex := range flexibilities {
			for duration := 1; duration <= 14; duration++ {
				input := ConfidenceInput{Rating: rating, Flexibility: flex, DurationDays: duration}
				if flex == FlexSpecificDate {
					input.DaysUntilWedding = intPtr(10)
				}
				result, err := engine.Compute(input)
				if err != nil {
					t.Fatalf("compute rating=%v flex=%s duration=%d: %v", rating, flex, duration, err)
				}
				if result.Percentage < 60 || result.Percentage > 95 {
					t.Fatalf("percentage %d out of [60,95] for rating=%v flex=%s duration=%d", result.Percentage, rating, flex, duration)
				}
			}
		}
	}
}

func TestComputeConfidenceDeterministic(t *testing.T) {
	engine := NewConfidenceEngine(DefaultConfidenceWeights())
	input := ConfidenceInput{Rating: 4.2, Flexibility: FlexWithinTwelveMonths, DurationDays: 5}

	first, err := engine.Compute(input)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := engine.Compute(input)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		if again != first {
			t.Fatalf("expected identical results, got %+v and %+v", first, again)
		}
	}
}
