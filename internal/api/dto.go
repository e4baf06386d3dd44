package api

import (
	"time"

	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/planner"
	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/store"
)

// VendorDTO is the API representation of a catalog vendor, optionally carrying
// the confidence computed for the request's schedule preferences.
type VendorDTO struct {
	ID         uint          `json:"id"`
	Name       string        `json:"name"`
	Category   string        `json:"category"`
	Rating     float64       `json:"rating"`
	PriceMin   float64       `json:"price_min"`
	PriceMax   float64       `json:"price_max"`
	City       string        `json:"city,omitempty"`
	Percentage *int          `json:"confidence,omitempty"`
	Tier       *planner.Tier `json:"tier,omitempty"`
}

// VendorFromModel converts a store.Vendor into the DTO representation.
func VendorFromModel(v store.Vendor) VendorDTO {
	return VendorDTO{
		ID:       v.ID,
		Name:     v.Name,
		Category: v.Category,
		Rating:   v.Rating,
		PriceMin: v.PriceMin,
		PriceMax: v.PriceMax,
		City:     v.City,
	}
}

// VendorDataResponse lists ranked vendors for a category query.
type VendorDataResponse struct {
	Category string      `json:"category"`
	Items    []VendorDTO `json:"items"`
	Total    int         `json:"total"`
}

// BudgetAnalysisRequest is the computation input for /budget-analysis.
type BudgetAnalysisRequest struct {
	Bracket      string `json:"bracket"`
	DurationDays int    `json:"duration_days"`
}

// BudgetAnalysisDTO is the persisted/returned budget breakdown.
type BudgetAnalysisDTO struct {
	ID                uint               `json:"id,omitempty"`
	Bracket           string             `json:"bracket"`
	DurationDays      int                `json:"duration_days"`
	TotalBudget       float64            `json:"total_budget"`
	CategoryBreakdown map[string]float64 `json:"category_breakdown"`
	CreatedAt         time.Time          `json:"created_at,omitempty"`
}

// BudgetAnalysisFromModel converts a stored analysis into the DTO.
func BudgetAnalysisFromModel(a store.BudgetAnalysis) BudgetAnalysisDTO {
	return BudgetAnalysisDTO{
		ID:                a.ID,
		Bracket:           a.Bracket,
		DurationDays:      a.DurationDays,
		TotalBudget:       round2(a.TotalBudget),
		CategoryBreakdown: a.Breakdown(),
		CreatedAt:         a.CreatedAt,
	}
}

// PreferenceDTO mirrors the stored preference snapshot.
type PreferenceDTO struct {
	Flexibility      string `json:"flexibility"`
	DaysUntilWedding *int   `json:"days_until_wedding,omitempty"`
	DurationDays     int    `json:"duration_days"`
	Bracket          string `json:"bracket,omitempty"`
	GuestCount       int    `json:"guest_count,omitempty"`
}

// PreferenceFromModel converts a stored preference into the DTO.
func PreferenceFromModel(p store.Preference) PreferenceDTO {
	return PreferenceDTO{
		Flexibility:      p.Flexibility,
		DaysUntilWedding: p.DaysUntilWedding,
		DurationDays:     p.DurationDays,
		Bracket:          p.Bracket,
		GuestCount:       p.GuestCount,
	}
}

// UploadResponse reports catalog statistics after a CSV import.
type UploadResponse struct {
	Imported     int `json:"imported"`
	CatalogTotal int `json:"catalog_total"`
}

// ScoreDTO is the API representation of a persisted vendor score.
type ScoreDTO struct {
	ID               uint      `json:"id"`
	VendorID         uint      `json:"vendor_id"`
	VendorName       string    `json:"vendor_name"`
	Category         string    `json:"category"`
	Rating           float64   `json:"rating"`
	Percentage       int       `json:"percentage"`
	Tier             string    `json:"tier"`
	Flexibility      string    `json:"flexibility"`
	DurationDays     int       `json:"duration_days"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// ScoreFromModel converts a store.VendorScore into the DTO representation.
func ScoreFromModel(s store.VendorScore) ScoreDTO {
	return ScoreDTO{
		ID:               s.ID,
		VendorID:         s.VendorID,
		VendorName:       s.VendorName,
		Category:         s.Category,
		Rating:           round2(s.Rating),
		Percentage:       s.Percentage,
		Tier:             s.Tier,
		Flexibility:      s.Flexibility,
		DurationDays:     s.DurationDays,
		ProcessingTimeMs: s.ProcessingTimeMs,
		CreatedAt:        s.CreatedAt,
	}
}

// ResultsResponse holds persisted scores and totals.
type ResultsResponse struct {
	Items []ScoreDTO `json:"items"`
	Total int64      `json:"total"`
}

// StartScoreResponse describes the asynchronous scoring kickoff payload.
type StartScoreResponse struct {
	JobID     string    `json:"job_id"`
	RequestID uint      `json:"request_id"`
	Total     int64     `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// ScoreStatusResponse describes the state of the active scoring job.
type ScoreStatusResponse struct {
	Running   bool      `json:"running"`
	JobID     string    `json:"job_id,omitempty"`
	RequestID uint      `json:"request_id,omitempty"`
	State     string    `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
	Processed int       `json:"processed"`
	Total     int64     `json:"total"`
	LastScore *ScoreDTO `json:"last_score,omitempty"`
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
