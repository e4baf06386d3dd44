package planner

// ValidateSchedule fail-fast checks the schedule-preference triple shared by
// confidence scoring and the preference boundary. DaysUntilWedding is
// mandatory (and non-negative) only for FlexSpecificDate.
func ValidateSchedule(flexibility DateFlexibility, durationDays int, daysUntilWedding *int) error {
	if durationDays < 1 || durationDays > 14 {
		return invalidInput("duration_days", durationDays)
	}
	switch flexibility {
	case FlexSpecificDate:
		if daysUntilWedding == nil {
			return invalidInput("days_until_wedding", nil)
		}
		if *daysUntilWedding < 0 {
			return invalidInput("days_until_wedding", *daysUntilWedding)
		}
	case FlexWithinThreeMonths, FlexWithinSixMonths, FlexWithinTwelveMonths:
	default:
		return invalidInput("flexibility", flexibility)
	}
	return nil
}

// ValidateRating checks the [0,5] vendor rating bound.
func ValidateRating(rating float64) error {
	if rating < 0 || rating > 5 {
		return invalidInput("rating", rating)
	}
	return nil
}
