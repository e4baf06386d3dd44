package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/snehaaiyer/shehn.ai-local-sub002/internal/store"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	server, err := NewServer(Config{
		DBPath:   filepath.Join(t.TempDir(), "planner.db"),
		SilentDB: true,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() {
		if err := server.db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})

	router, err := server.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return server, router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		payload = bytes.NewBuffer(data)
	} else {
		payload = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func seedVendor(t *testing.T, server *Server, name, category string, rating float64) {
	t.Helper()
	vendor := store.Vendor{Name: name, Category: category, Rating: rating, PriceMin: 1000, PriceMax: 2000}
	if err := server.db.UpsertVendor(&vendor); err != nil {
		t.Fatalf("seed vendor %s: %v", name, err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestServer(t)
	rec := doJSON(t, router, http.MethodGet, "/api/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestBudgetAnalysisEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/budget-analysis", BudgetAnalysisRequest{
		Bracket:      "premium",
		DurationDays: 3,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", rec.Code, rec.Body.String())
	}

	var result BudgetAnalysisDTO
	decodeBody(t, rec, &result)
	if math.Abs(result.TotalBudget-6_150_000) > 1 {
		t.Fatalf("expected total 6150000 got %v", result.TotalBudget)
	}
	if len(result.CategoryBreakdown) != 6 {
		t.Fatalf("expected 6 categories got %d", len(result.CategoryBreakdown))
	}

	sum := 0.0
	for _, amount := range result.CategoryBreakdown {
		sum += amount
	}
	if math.Abs(sum-result.TotalBudget) > 1 {
		t.Fatalf("breakdown sums to %v, total is %v", sum, result.TotalBudget)
	}
}

func TestBudgetAnalysisRejectsInvalidInput(t *testing.T) {
	_, router := newTestServer(t)

	tests := []struct {
		name  string
		req   BudgetAnalysisRequest
		field string
	}{
		{"duration too long", BudgetAnalysisRequest{Bracket: "premium", DurationDays: 15}, "duration_days"},
		{"unknown bracket", BudgetAnalysisRequest{Bracket: "platinum", DurationDays: 3}, "bracket"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/budget-analysis", tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
			var payload map[string]any
			decodeBody(t, rec, &payload)
			if payload["field"] != tc.field {
				t.Fatalf("expected field %q got %v", tc.field, payload["field"])
			}
		})
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/preferences", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before save got %d", rec.Code)
	}

	days := 45
	rec = doJSON(t, router, http.MethodPut, "/api/preferences", PreferenceDTO{
		Flexibility:      "specific_date",
		DaysUntilWedding: &days,
		DurationDays:     3,
		Bracket:          "premium",
		GuestCount:       250,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/preferences", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var pref PreferenceDTO
	decodeBody(t, rec, &pref)
	if pref.Flexibility != "specific_date" || pref.DurationDays != 3 || pref.DaysUntilWedding == nil || *pref.DaysUntilWedding != 45 {
		t.Fatalf("unexpected preference %+v", pref)
	}
}

func TestPreferencesRejectMissingDaysUntil(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPut, "/api/preferences", PreferenceDTO{
		Flexibility:  "specific_date",
		DurationDays: 2,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestVendorDataRanked(t *testing.T) {
	server, router := newTestServer(t)

	seedVendor(t, server, "Lotus Banquets", "venue", 4.8)
	seedVendor(t, server, "Royal Gardens", "venue", 3.0)
	seedVendor(t, server, "Spice Route", "catering", 4.5)

	rec := doJSON(t, router, http.MethodGet, "/api/vendor-data/venue?flexibility=within_3_months&duration_days=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", rec.Code, rec.Body.String())
	}

	var resp VendorDataResponse
	decodeBody(t, rec, &resp)
	if resp.Total != 2 {
		t.Fatalf("expected 2 venue vendors got %d", resp.Total)
	}
	if resp.Items[0].Name != "Lotus Banquets" {
		t.Fatalf("expected highest confidence first, got %s", resp.Items[0].Name)
	}
	if resp.Items[0].Percentage == nil || *resp.Items[0].Percentage != 95 {
		t.Fatalf("expected 95 confidence, got %+v", resp.Items[0].Percentage)
	}
	if resp.Items[1].Percentage == nil || *resp.Items[1].Percentage != 70 {
		t.Fatalf("expected 70 confidence, got %+v", resp.Items[1].Percentage)
	}
}

func TestVendorDataRequiresSchedule(t *testing.T) {
	server, router := newTestServer(t)
	seedVendor(t, server, "Lotus Banquets", "venue", 4.8)

	rec := doJSON(t, router, http.MethodGet, "/api/vendor-data/venue", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without schedule got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/vendor-data/venue?flexibility=someday&duration_days=1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad flexibility got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/vendor-data/astrology?flexibility=within_3_months&duration_days=1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category got %d", rec.Code)
	}
}

func TestVendorUpload(t *testing.T) {
	_, router := newTestServer(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "vendors.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprintln(part, "name,category,rating,price_min,price_max,city")
	fmt.Fprintln(part, "Lotus Banquets,venue,4.8,500000,900000,Jaipur")
	fmt.Fprintln(part, "Spice Route,catering,4.5,1200,1800,Delhi")
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/vendors/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body %s", rec.Code, rec.Body.String())
	}
	var resp UploadResponse
	decodeBody(t, rec, &resp)
	if resp.Imported != 2 || resp.CatalogTotal != 2 {
		t.Fatalf("unexpected upload response %+v", resp)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/vendors/Lotus%20Banquets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 lookup got %d", rec.Code)
	}
	var vendor VendorDTO
	decodeBody(t, rec, &vendor)
	if vendor.Name != "Lotus Banquets" || vendor.Category != "venue" {
		t.Fatalf("unexpected vendor %+v", vendor)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/vendors/Nobody", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 lookup got %d", rec.Code)
	}
}

func TestScoreJobEndToEnd(t *testing.T) {
	server, router := newTestServer(t)

	seedVendor(t, server, "Lotus Banquets", "venue", 4.8)
	seedVendor(t, server, "Royal Gardens", "venue", 3.0)
	seedVendor(t, server, "Spice Route", "catering", 4.5)

	rec := doJSON(t, router, http.MethodPost, "/api/score", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without preferences got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/preferences", PreferenceDTO{
		Flexibility:  "within_3_months",
		DurationDays: 1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save preferences: %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/score", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body %s", rec.Code, rec.Body.String())
	}
	var started StartScoreResponse
	decodeBody(t, rec, &started)
	if started.JobID == "" || started.Total != 3 {
		t.Fatalf("unexpected start response %+v", started)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		server.jobMu.Lock()
		running := server.activeJob != nil
		server.jobMu.Unlock()
		if !running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("scoring job did not finish in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/results?sort=name", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var results ResultsResponse
	decodeBody(t, rec, &results)
	if results.Total != 3 {
		t.Fatalf("expected 3 scores got %d", results.Total)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/results?tier=High", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	decodeBody(t, rec, &results)
	if results.Total != 2 {
		t.Fatalf("expected 2 high-tier scores got %d", results.Total)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/export.csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("Lotus Banquets")) {
		t.Fatal("expected export to contain scored vendor")
	}
}
