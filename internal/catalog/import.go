package catalog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/planner"
	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/store"
)

// Service manages vendor catalog persistence and lookup.
type Service struct {
	db      *store.Database
	cache   map[string]cacheEntry
	cacheMu sync.RWMutex
}

type cacheEntry struct {
	vendor store.Vendor
	found  bool
}

// NewService constructs a catalog service over the shared database.
func NewService(db *store.Database) *Service {
	return &Service{
		db:    db,
		cache: make(map[string]cacheEntry),
	}
}

// LoadFromCSV ingests the provided CSV file into the vendor catalog.
func (s *Service) LoadFromCSV(path string, minRating float64) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("vendor csv path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open vendor csv: %w", err)
	}
	defer file.Close()

	return s.ImportReader(file, minRating)
}

// columnLayout maps the recognized CSV headers to their positions.
type columnLayout struct {
	name     int
	category int
	rating   int
	priceMin int
	priceMax int
	city     int
}

func defaultLayout() columnLayout {
	return columnLayout{name: 0, category: 1, rating: 2, priceMin: 3, priceMax: 4, city: 5}
}

// ImportReader parses vendor rows and upserts them keyed by normalized name.
// Rows with an unknown category or an out-of-range rating are skipped, not
// coerced; the engine layer never sees them.
func (s *Service) ImportReader(r io.Reader, minRating float64) (int, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1

	layout := defaultLayout()
	headerSeen := false
	imported := 0
	skipped := 0
	seen := make(map[string]struct{})

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read vendor csv: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		if !headerSeen {
			headerSeen = true
			if detected, ok := detectLayout(row); ok {
				layout = detected
				continue
			}
		}

		vendor, ok := parseRow(row, layout)
		if !ok {
			skipped++
			continue
		}
		if vendor.Rating < minRating {
			skipped++
			continue
		}

		key := store.NormalizeVendorKey(vendor.Name)
		if key == "" {
			skipped++
			continue
		}
		if _, dup := seen[key]; dup {
			skipped++
			continue
		}
		seen[key] = struct{}{}

		if err := s.db.UpsertVendor(&vendor); err != nil {
			return imported, fmt.Errorf("save vendor %s: %w", vendor.Name, err)
		}
		imported++
	}

	s.cacheMu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.cacheMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"imported": imported,
		"skipped":  skipped,
	}).Info("vendor catalog import finished")

	return imported, nil
}

// detectLayout maps header names to columns; returns false when the first row
// looks like data rather than a header.
func detectLayout(row []string) (columnLayout, bool) {
	layout := columnLayout{name: -1, category: -1, rating: -1, priceMin: -1, priceMax: -1, city: -1}
	matched := false
	for i, cell := range row {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "name", "vendor", "vendor_name":
			layout.name = i
			matched = true
		case "category", "type":
			layout.category = i
			matched = true
		case "rating", "stars":
			layout.rating = i
			matched = true
		case "price", "price_min", "min_price":
			layout.priceMin = i
			matched = true
		case "price_max", "max_price":
			layout.priceMax = i
			matched = true
		case "city", "location":
			layout.city = i
			matched = true
		}
	}
	if !matched || layout.name < 0 || layout.category < 0 || layout.rating < 0 {
		return columnLayout{}, false
	}
	return layout, true
}

func parseRow(row []string, layout columnLayout) (store.Vendor, bool) {
	cell := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	name := cell(layout.name)
	if name == "" {
		return store.Vendor{}, false
	}

	category, err := planner.ParseCategory(cell(layout.category))
	if err != nil {
		return store.Vendor{}, false
	}

	rating, err := strconv.ParseFloat(cell(layout.rating), 64)
	if err != nil || rating < 0 || rating > 5 {
		return store.Vendor{}, false
	}

	priceMin, _ := strconv.ParseFloat(strings.ReplaceAll(cell(layout.priceMin), ",", ""), 64)
	priceMax, _ := strconv.ParseFloat(strings.ReplaceAll(cell(layout.priceMax), ",", ""), 64)
	if priceMax < priceMin {
		priceMax = priceMin
	}

	return store.Vendor{
		Name:     name,
		Category: string(category),
		Rating:   rating,
		PriceMin: priceMin,
		PriceMax: priceMax,
		City:     cell(layout.city),
	}, true
}

// Lookup finds a vendor by display name, consulting the in-memory cache first.
func (s *Service) Lookup(name string) (store.Vendor, bool, error) {
	key := store.NormalizeVendorKey(name)
	if key == "" {
		return store.Vendor{}, false, nil
	}

	s.cacheMu.RLock()
	entry, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if ok {
		return entry.vendor, entry.found, nil
	}

	vendor, err := s.db.GetVendorByKey(key)
	if err != nil {
		s.cacheMu.Lock()
		s.cache[key] = cacheEntry{found: false}
		s.cacheMu.Unlock()
		return store.Vendor{}, false, nil
	}

	s.cacheMu.Lock()
	s.cache[key] = cacheEntry{vendor: *vendor, found: true}
	s.cacheMu.Unlock()
	return *vendor, true, nil
}

// Count reports the catalog size, or zero when the store is unreachable.
func (s *Service) Count() int {
	count, err := s.db.CountVendors()
	if err != nil {
		logrus.WithError(err).Warn("count vendors")
		return 0
	}
	return int(count)
}
