package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Vendor{}, &Preference{}, &VendorScore{}, &BudgetAnalysis{}, &ScoreRequest{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NormalizeVendorKey collapses a vendor name into its dedupe key.
func NormalizeVendorKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UpsertVendor inserts or updates the vendor keyed by its normalized name.
func (d *Database) UpsertVendor(vendor *Vendor) error {
	if vendor == nil {
		return errors.New("vendor is nil")
	}
	vendor.Name = strings.TrimSpace(vendor.Name)
	vendor.NameNormalized = NormalizeVendorKey(vendor.Name)
	if vendor.NameNormalized == "" {
		return errors.New("vendor name is empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name_normalized"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "rating", "price_min", "price_max", "city", "updated_at"}),
	}).Create(vendor).Error
}

// GetVendorByKey loads a vendor by normalized name.
func (d *Database) GetVendorByKey(key string) (*Vendor, error) {
	var vendor Vendor
	if err := d.gorm.Where("name_normalized = ?", key).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// ListVendorsByCategory returns vendors of a category ordered by rating.
func (d *Database) ListVendorsByCategory(category string, minRating float64, limit int) ([]Vendor, error) {
	query := d.gorm.Model(&Vendor{}).Where("category = ?", category)
	if minRating > 0 {
		query = query.Where("rating >= ?", minRating)
	}
	query = query.Order("rating DESC, name ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var vendors []Vendor
	if err := query.Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	return vendors, nil
}

// ListVendors pages through the whole catalog in insertion order.
func (d *Database) ListVendors(offset, limit int) ([]Vendor, error) {
	var vendors []Vendor
	query := d.gorm.Model(&Vendor{}).Order("id ASC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&vendors).Error; err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	return vendors, nil
}

// CountVendors returns the catalog size.
func (d *Database) CountVendors() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Vendor{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count vendors: %w", err)
	}
	return count, nil
}

// SavePreference overwrites the singleton preference snapshot.
func (d *Database) SavePreference(pref *Preference) error {
	if pref == nil {
		return errors.New("preference is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	pref.ID = 1
	pref.UpdatedAt = time.Now().UTC()
	return d.gorm.Save(pref).Error
}

// GetPreference loads the preference snapshot, if one was ever saved.
func (d *Database) GetPreference() (*Preference, error) {
	var pref Preference
	err := d.gorm.First(&pref, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preference: %w", err)
	}
	return &pref, nil
}

// SaveVendorScore upserts the score row for a vendor.
func (d *Database) SaveVendorScore(score *VendorScore) error {
	if score == nil {
		return errors.New("score is nil")
	}
	score.UpdatedAt = time.Now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vendor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"vendor_name", "category", "rating", "percentage", "tier",
			"flexibility", "duration_days", "processing_time_ms", "updated_at",
		}),
	}).Create(score).Error
}

// ScoreQuery filters and pages persisted vendor scores.
type ScoreQuery struct {
	Category      string
	Tier          string
	MinPercentage int
	Sort          string
	Offset        int
	Limit         int
}

// ListVendorScores returns matching scores plus the unpaged total.
func (d *Database) ListVendorScores(q ScoreQuery) ([]VendorScore, int64, error) {
	query := d.gorm.Model(&VendorScore{})
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Tier != "" {
		query = query.Where("tier = ?", q.Tier)
	}
	if q.MinPercentage > 0 {
		query = query.Where("percentage >= ?", q.MinPercentage)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count scores: %w", err)
	}

	switch q.Sort {
	case "rating":
		query = query.Order("rating DESC, vendor_name ASC")
	case "name":
		query = query.Order("vendor_name ASC")
	default:
		query = query.Order("percentage DESC, rating DESC, vendor_name ASC")
	}

	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var rows []VendorScore
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list scores: %w", err)
	}
	return rows, total, nil
}

// SaveBudgetAnalysis appends a budget analysis record.
func (d *Database) SaveBudgetAnalysis(analysis *BudgetAnalysis) error {
	if analysis == nil {
		return errors.New("analysis is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(analysis).Error
}

// ListBudgetAnalyses returns the most recent analyses.
func (d *Database) ListBudgetAnalyses(limit int) ([]BudgetAnalysis, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []BudgetAnalysis
	if err := d.gorm.Model(&BudgetAnalysis{}).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list budget analyses: %w", err)
	}
	return rows, nil
}

// CreateScoreRequest records the start of a scoring job.
func (d *Database) CreateScoreRequest(requestType, status, jobID string) (*ScoreRequest, error) {
	request := &ScoreRequest{
		Type:      requestType,
		Status:    status,
		JobID:     jobID,
		StartedAt: time.Now().UTC(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(request).Error; err != nil {
		return nil, fmt.Errorf("create score request: %w", err)
	}
	return request, nil
}

// UpdateScoreRequest finalizes a scoring job record.
func (d *Database) UpdateScoreRequest(id uint, status string) error {
	now := time.Now().UTC()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&ScoreRequest{}).Where("id = ?", id).Updates(map[string]any{
		"status":      status,
		"finished_at": &now,
	}).Error
}
