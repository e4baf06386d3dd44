package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/catalog"
	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/store"
)

// multiFlag collects repeatable CSV path flags.
type multiFlag []string

func (m *multiFlag) String() string {
	return fmt.Sprint(*m)
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	var (
		dbPath     = flag.String("db", filepath.FromSlash("data/planner.db"), "Path to SQLite database")
		csvPaths   multiFlag
		minRating  = flag.Float64("min-rating", 0, "Skip vendors rated below this value")
		outputPath = flag.String("output", "", "Optional path to write the imported catalog as JSON")
	)
	flag.Var(&csvPaths, "csv", "Vendor CSV file (repeatable)")
	flag.Parse()

	if len(csvPaths) == 0 {
		logrus.Fatal("at least one -csv file is required")
	}

	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	service := catalog.NewService(db)

	totalImported := 0
	for _, path := range csvPaths {
		imported, err := service.LoadFromCSV(path, *minRating)
		if err != nil {
			logrus.Fatalf("import %s: %v", path, err)
		}
		logrus.WithFields(logrus.Fields{
			"file":     path,
			"imported": imported,
		}).Info("vendor csv ingested")
		totalImported += imported
	}

	count, err := db.CountVendors()
	if err != nil {
		logrus.Fatalf("count vendors: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"imported": totalImported,
		"catalog":  count,
	}).Info("vendor import finished")

	if *outputPath == "" {
		return
	}

	vendors, err := db.ListVendors(0, 0)
	if err != nil {
		logrus.Fatalf("list vendors: %v", err)
	}
	payload, err := json.MarshalIndent(vendors, "", "  ")
	if err != nil {
		logrus.Fatalf("marshal catalog: %v", err)
	}
	if err := os.WriteFile(*outputPath, payload, 0o644); err != nil {
		logrus.Fatalf("write catalog: %v", err)
	}
	logrus.WithField("path", *outputPath).Info("catalog snapshot written")
}
