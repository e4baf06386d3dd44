package planner

import "sort"

// VendorProfile is the immutable vendor view consumed by ranking.
type VendorProfile struct {
	ID       uint
	Name     string
	Category Category
	Rating   float64
	PriceMin float64
	PriceMax float64
}

// RankedVendor pairs a vendor with its computed confidence.
type RankedVendor struct {
	Vendor     VendorProfile
	Confidence ConfidenceResult
}

// RankVendors scores every vendor against the shared schedule preferences and
// orders the result best-first: percentage desc, then rating desc, then name.
// Any invalid vendor aborts the whole ranking; callers validate upstream if
// they want partial results.
func RankVendors(engine *ConfidenceEngine, vendors []VendorProfile, flexibility DateFlexibility, durationDays int, daysUntilWedding *int) ([]RankedVendor, error) {
	ranked := make([]RankedVendor, 0, len(vendors))
	for _, vendor := range vendors {
		result, err := engine.Compute(ConfidenceInput{
			Rating:           vendor.Rating,
			Flexibility:      flexibility,
			DurationDays:     durationDays,
			DaysUntilWedding: daysUntilWedding,
		})
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedVendor{Vendor: vendor, Confidence: result})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Confidence.Percentage != b.Confidence.Percentage {
			return a.Confidence.Percentage > b.Confidence.Percentage
		}
		if a.Vendor.Rating != b.Vendor.Rating {
			return a.Vendor.Rating > b.Vendor.Rating
		}
		return a.Vendor.Name < b.Vendor.Name
	})

	return ranked, nil
}
