package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Vendor is an externally supplied service provider record.
type Vendor struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:255;index"`
	NameNormalized string `gorm:"size:255;uniqueIndex"`
	Category       string `gorm:"size:32;index"`
	Rating         float64
	PriceMin       float64
	PriceMax       float64
	City           string `gorm:"size:128"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Preference is the couple's planning snapshot. A single row is kept and
// overwritten on update.
type Preference struct {
	ID               uint   `gorm:"primaryKey"`
	Flexibility      string `gorm:"size:32"`
	DaysUntilWedding *int
	DurationDays     int
	Bracket          string `gorm:"size:32"`
	GuestCount       int
	UpdatedAt        time.Time
}

// VendorScore is the persisted confidence output for a single vendor,
// recomputed (and upserted) on every scoring run.
type VendorScore struct {
	ID               uint   `gorm:"primaryKey"`
	VendorID         uint   `gorm:"uniqueIndex"`
	VendorName       string `gorm:"size:255;index"`
	Category         string `gorm:"size:32;index"`
	Rating           float64
	Percentage       int    `gorm:"index"`
	Tier             string `gorm:"size:16;index"`
	Flexibility      string `gorm:"size:32"`
	DurationDays     int
	ProcessingTimeMs int64
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time
}

// BudgetAnalysis records a computed multi-day budget breakdown.
type BudgetAnalysis struct {
	ID            uint   `gorm:"primaryKey"`
	Bracket       string `gorm:"size:32;index"`
	DurationDays  int
	TotalBudget   float64
	BreakdownJSON string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// SetBreakdown stores the per-category amounts as JSON.
func (b *BudgetAnalysis) SetBreakdown(breakdown map[string]float64) {
	payload, _ := json.Marshal(breakdown)
	b.BreakdownJSON = string(payload)
}

// Breakdown returns the decoded per-category amounts.
func (b *BudgetAnalysis) Breakdown() map[string]float64 {
	if strings.TrimSpace(b.BreakdownJSON) == "" {
		return nil
	}
	var out map[string]float64
	if err := json.Unmarshal([]byte(b.BreakdownJSON), &out); err != nil {
		return nil
	}
	return out
}

// ScoreRequest tracks a catalog scoring job (initial run, rescore).
type ScoreRequest struct {
	ID         uint   `gorm:"primaryKey"`
	Type       string `gorm:"size:32"`
	Status     string `gorm:"size:32"`
	JobID      string `gorm:"size:64"`
	StartedAt  time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
}
